package dify

import (
	"context"
	"net/http"
	"strings"

	"github.com/petal-labs/dify/core"
)

// ChatStream is a stream of chat, completion or workflow events.
type ChatStream = core.Stream[StreamEvent]

// ChatService calls the /chat-messages endpoints of chat and agent apps.
type ChatService struct {
	c *core.Client
}

// Send posts a chat message in blocking mode and returns the full answer.
func (s *ChatService) Send(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := validateChat(req); err != nil {
		return nil, err
	}
	body, err := withResponseMode(req, ResponseModeBlocking)
	if err != nil {
		return nil, err
	}
	return core.Do[ChatResponse](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   "/chat-messages",
		Body:   body,
	})
}

// Stream posts a chat message in streaming mode. The caller must close the
// returned stream.
func (s *ChatService) Stream(ctx context.Context, req *ChatRequest) (*ChatStream, error) {
	if err := validateChat(req); err != nil {
		return nil, err
	}
	body, err := withResponseMode(req, ResponseModeStreaming)
	if err != nil {
		return nil, err
	}
	return core.OpenStream[StreamEvent](ctx, s.c, &core.Request{
		Method:    http.MethodPost,
		Path:      "/chat-messages",
		Body:      body,
		Accept:    eventStreamAccept,
		Operation: "chat",
	})
}

// Stop stops a streaming generation. Only streaming tasks can be stopped.
func (s *ChatService) Stop(ctx context.Context, taskID, user string) error {
	if err := require("stop chat", "task id", taskID, "user", user); err != nil {
		return err
	}
	_, err := core.Do[Result](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   pathf("/chat-messages", taskID, "stop"),
		Body:   userBody{User: user},
	})
	return err
}

func validateChat(req *ChatRequest) error {
	if req == nil {
		return core.NewValidationError("chat: request is nil")
	}
	return require("chat", "query", req.Query, "user", req.User)
}

// CollectAnswer drains stream into a ChatResponse, concatenating message
// fragments. An in-stream error event is returned as a KindStatus error. The
// stream is closed on return.
func CollectAnswer(stream *ChatStream) (*ChatResponse, error) {
	defer stream.Close()

	var (
		out    ChatResponse
		answer strings.Builder
	)
	for stream.Next() {
		ev := stream.Current()
		if out.TaskID == "" {
			out.TaskID = ev.TaskID
		}
		if ev.MessageID != "" {
			out.MessageID = ev.MessageID
		}
		if ev.ConversationID != "" {
			out.ConversationID = ev.ConversationID
		}
		switch ev.Event {
		case EventMessage, EventAgentMessage:
			answer.WriteString(ev.Answer)
		case EventMessageReplace:
			answer.Reset()
			answer.WriteString(ev.Answer)
		case EventMessageEnd:
			out.Metadata = ev.Metadata
		case EventError:
			return nil, streamError(ev)
		}
		if ev.CreatedAt != 0 && out.CreatedAt == 0 {
			out.CreatedAt = ev.CreatedAt
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	out.Answer = answer.String()
	return &out, nil
}

func streamError(ev StreamEvent) *core.Error {
	status := ev.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &core.Error{
		Kind:       core.KindStatus,
		StatusCode: status,
		Reason:     http.StatusText(status),
		Code:       ev.Code,
		APIMessage: ev.Message,
		Message:    "stream error: " + ev.Message,
	}
}

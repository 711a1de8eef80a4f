package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify/core"
)

// CompletionRequest is the body of POST /completion-messages. Text generation
// apps take their prompt from Inputs.
type CompletionRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode,omitempty"`
	User         string         `json:"user"`
	Files        []InputFile    `json:"files,omitempty"`
}

// CompletionResponse is the blocking completion result.
type CompletionResponse struct {
	Event     string    `json:"event,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	ID        string    `json:"id,omitempty"`
	MessageID string    `json:"message_id"`
	Mode      string    `json:"mode,omitempty"`
	Answer    string    `json:"answer"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	CreatedAt int64     `json:"created_at,omitempty"`
}

// CompletionService calls the /completion-messages endpoints of text
// generation apps.
type CompletionService struct {
	c *core.Client
}

// Send runs a completion in blocking mode.
func (s *CompletionService) Send(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := validateCompletion(req); err != nil {
		return nil, err
	}
	body, err := withResponseMode(req, ResponseModeBlocking)
	if err != nil {
		return nil, err
	}
	return core.Do[CompletionResponse](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   "/completion-messages",
		Body:   body,
	})
}

// Stream runs a completion in streaming mode.
func (s *CompletionService) Stream(ctx context.Context, req *CompletionRequest) (*ChatStream, error) {
	if err := validateCompletion(req); err != nil {
		return nil, err
	}
	body, err := withResponseMode(req, ResponseModeStreaming)
	if err != nil {
		return nil, err
	}
	return core.OpenStream[StreamEvent](ctx, s.c, &core.Request{
		Method:    http.MethodPost,
		Path:      "/completion-messages",
		Body:      body,
		Accept:    eventStreamAccept,
		Operation: "completion",
	})
}

// Stop stops a streaming completion.
func (s *CompletionService) Stop(ctx context.Context, taskID, user string) error {
	if err := require("stop completion", "task id", taskID, "user", user); err != nil {
		return err
	}
	_, err := core.Do[Result](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   pathf("/completion-messages", taskID, "stop"),
		Body:   userBody{User: user},
	})
	return err
}

func validateCompletion(req *CompletionRequest) error {
	if req == nil {
		return core.NewValidationError("completion: request is nil")
	}
	return require("completion", "user", req.User)
}

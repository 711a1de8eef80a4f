package dify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/petal-labs/dify/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c := New("test-key", append([]Option{WithBaseURL(server.URL)}, opts...)...)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestChatSendBlocking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/chat-messages" {
			t.Errorf("Path = %q, want /chat-messages", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if mode := gjson.GetBytes(body, "response_mode").String(); mode != "blocking" {
			t.Errorf("response_mode = %q, want blocking", mode)
		}
		if q := gjson.GetBytes(body, "query").String(); q != "hi" {
			t.Errorf("query = %q", q)
		}
		if !gjson.GetBytes(body, "inputs").IsObject() {
			t.Errorf("inputs = %s, want object", gjson.GetBytes(body, "inputs").Raw)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"event":"message","message_id":"m1","conversation_id":"c1","mode":"chat","answer":"hello",
			"metadata":{"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}},"created_at":1705395332}`)
	})

	resp, err := c.Chat.Send(context.Background(), &ChatRequest{
		Query:        "hi",
		User:         "u1",
		ResponseMode: ResponseModeStreaming,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.MessageID != "m1" || resp.ConversationID != "c1" || resp.Answer != "hello" {
		t.Errorf("Send() = %+v", resp)
	}
	if resp.Metadata == nil || resp.Metadata.Usage == nil || resp.Metadata.Usage.TotalTokens != 4 {
		t.Errorf("Metadata = %+v", resp.Metadata)
	}
}

func TestChatSendValidation(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	tests := []struct {
		name string
		req  *ChatRequest
	}{
		{"nil", nil},
		{"no query", &ChatRequest{User: "u1"}},
		{"no user", &ChatRequest{Query: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Chat.Send(context.Background(), tt.req)
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if called {
		t.Error("HTTP call made for invalid request")
	}
}

func TestChatStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if mode := gjson.GetBytes(body, "response_mode").String(); mode != "streaming" {
			t.Errorf("response_mode = %q, want streaming", mode)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, strings.Join([]string{
			`data: {"event":"message","task_id":"t1","message_id":"m1","conversation_id":"c1","answer":"Hel"}`,
			``,
			`event: ping`,
			``,
			`data: {"event":"message","task_id":"t1","message_id":"m1","conversation_id":"c1","answer":"lo"}`,
			``,
			`data: {"event":"message_end","task_id":"t1","message_id":"m1","conversation_id":"c1","metadata":{"usage":{"total_tokens":9}}}`,
			``,
		}, "\n"))
	})

	stream, err := c.Chat.Stream(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	var events []StreamEvent
	for stream.Next() {
		events = append(events, stream.Current())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Answer != "Hel" || events[1].Answer != "lo" {
		t.Errorf("answers = %q, %q", events[0].Answer, events[1].Answer)
	}
	if !events[2].IsTerminal() || events[0].IsTerminal() {
		t.Error("IsTerminal() mismatch")
	}
}

func TestCollectAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Join([]string{
			`data: {"event":"message","task_id":"t1","message_id":"m1","conversation_id":"c1","answer":"Hel","created_at":7}`,
			`data: {"event":"message","task_id":"t1","message_id":"m1","conversation_id":"c1","answer":"lo"}`,
			`data: {"event":"message_end","task_id":"t1","message_id":"m1","conversation_id":"c1","metadata":{"usage":{"total_tokens":9}}}`,
			``,
		}, "\n"))
	})

	stream, err := c.Chat.Stream(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	resp, err := CollectAnswer(stream)
	if err != nil {
		t.Fatalf("CollectAnswer() error = %v", err)
	}
	if resp.Answer != "Hello" || resp.MessageID != "m1" || resp.ConversationID != "c1" || resp.TaskID != "t1" {
		t.Errorf("CollectAnswer() = %+v", resp)
	}
	if resp.CreatedAt != 7 {
		t.Errorf("CreatedAt = %d", resp.CreatedAt)
	}
	if resp.Metadata == nil || resp.Metadata.Usage.TotalTokens != 9 {
		t.Errorf("Metadata = %+v", resp.Metadata)
	}
}

func TestCollectAnswerReplace(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Join([]string{
			`data: {"event":"message","answer":"unsafe"}`,
			`data: {"event":"message_replace","answer":"redacted"}`,
			`data: {"event":"message_end"}`,
			``,
		}, "\n"))
	})
	stream, err := c.Chat.Stream(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	resp, err := CollectAnswer(stream)
	if err != nil {
		t.Fatalf("CollectAnswer() error = %v", err)
	}
	if resp.Answer != "redacted" {
		t.Errorf("Answer = %q, want redacted", resp.Answer)
	}
}

func TestCollectAnswerErrorEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Join([]string{
			`data: {"event":"message","answer":"partial"}`,
			`data: {"event":"error","status":429,"code":"too_many_requests","message":"quota exceeded"}`,
			``,
		}, "\n"))
	})
	stream, err := c.Chat.Stream(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	_, err = CollectAnswer(stream)
	if !errors.Is(err, core.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	e, _ := core.AsError(err)
	if e.Kind != core.KindStatus || e.Code != "too_many_requests" || e.APIMessage != "quota exceeded" {
		t.Errorf("error = %+v", e)
	}
}

func TestChatStreamStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"code":"unauthorized","message":"Access token is invalid","status":401}`)
	})
	stream, err := c.Chat.Stream(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if stream != nil {
		t.Error("stream returned for 401")
	}
	if !errors.Is(err, core.ErrUnauthorized) || core.StatusCode(err) != 401 {
		t.Errorf("err = %v", err)
	}
}

func TestChatStop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/chat-messages/task%201/stop" {
			t.Errorf("Path = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"user":"u1"}` {
			t.Errorf("body = %s", body)
		}
		io.WriteString(w, `{"result":"success"}`)
	})
	if err := c.Chat.Stop(context.Background(), "task 1", "u1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := c.Chat.Stop(context.Background(), "", "u1"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Stop(empty task) err = %v", err)
	}
}

func TestStreamEventHelpers(t *testing.T) {
	tests := []struct {
		event    string
		terminal bool
		isErr    bool
	}{
		{EventMessage, false, false},
		{EventAgentThought, false, false},
		{EventMessageEnd, true, false},
		{EventWorkflowFinished, true, false},
		{EventError, true, true},
		{EventPing, false, false},
	}
	for _, tt := range tests {
		ev := StreamEvent{Event: tt.event}
		if ev.IsTerminal() != tt.terminal || ev.IsError() != tt.isErr {
			t.Errorf("%s: IsTerminal/IsError = %v/%v", tt.event, ev.IsTerminal(), ev.IsError())
		}
	}
}

func TestStreamEventErr(t *testing.T) {
	if err := (StreamEvent{Event: EventMessage}).Err(); err != nil {
		t.Errorf("message event Err() = %v, want nil", err)
	}

	err := StreamEvent{Event: EventError, Status: 429, Code: "too_many_requests", Message: "slow down"}.Err()
	if !errors.Is(err, core.ErrRateLimited) {
		t.Errorf("Err() = %v, want ErrRateLimited", err)
	}
	var apiErr *core.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "too_many_requests" || apiErr.APIMessage != "slow down" {
		t.Errorf("Err() = %#v", err)
	}
}

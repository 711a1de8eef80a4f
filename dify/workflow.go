package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/internal/json"
)

// WorkflowRequest is the body of POST /workflows/run.
type WorkflowRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode,omitempty"`
	User         string         `json:"user"`
	Files        []InputFile    `json:"files,omitempty"`
}

// WorkflowRunData describes one workflow execution.
type WorkflowRunData struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      string          `json:"status"` // running, succeeded, failed, stopped
	Inputs      json.RawMessage `json:"inputs,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	Error       string          `json:"error,omitempty"`
	ElapsedTime float64         `json:"elapsed_time"`
	TotalTokens int             `json:"total_tokens"`
	TotalSteps  int             `json:"total_steps"`
	CreatedAt   int64           `json:"created_at"`
	FinishedAt  int64           `json:"finished_at,omitempty"`
}

// WorkflowResponse is the blocking workflow result.
type WorkflowResponse struct {
	WorkflowRunID string          `json:"workflow_run_id"`
	TaskID        string          `json:"task_id"`
	Data          WorkflowRunData `json:"data"`
}

// WorkflowService calls the /workflows endpoints of workflow apps.
type WorkflowService struct {
	c *core.Client
}

// Run executes the app workflow in blocking mode.
func (s *WorkflowService) Run(ctx context.Context, req *WorkflowRequest) (*WorkflowResponse, error) {
	if err := validateWorkflow(req); err != nil {
		return nil, err
	}
	body, err := withResponseMode(req, ResponseModeBlocking)
	if err != nil {
		return nil, err
	}
	return core.Do[WorkflowResponse](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   "/workflows/run",
		Body:   body,
	})
}

// Stream executes the app workflow in streaming mode. Node and workflow events
// carry their payload in StreamEvent.Data.
func (s *WorkflowService) Stream(ctx context.Context, req *WorkflowRequest) (*ChatStream, error) {
	if err := validateWorkflow(req); err != nil {
		return nil, err
	}
	body, err := withResponseMode(req, ResponseModeStreaming)
	if err != nil {
		return nil, err
	}
	return core.OpenStream[StreamEvent](ctx, s.c, &core.Request{
		Method:    http.MethodPost,
		Path:      "/workflows/run",
		Body:      body,
		Accept:    eventStreamAccept,
		Operation: "workflow",
	})
}

// Stop stops a streaming workflow task.
func (s *WorkflowService) Stop(ctx context.Context, taskID, user string) error {
	if err := require("stop workflow", "task id", taskID, "user", user); err != nil {
		return err
	}
	_, err := core.Do[Result](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   pathf("/workflows/tasks", taskID, "stop"),
		Body:   userBody{User: user},
	})
	return err
}

// RunDetail fetches a workflow execution by run id.
func (s *WorkflowService) RunDetail(ctx context.Context, workflowRunID string) (*WorkflowRunData, error) {
	if err := require("workflow run detail", "workflow run id", workflowRunID); err != nil {
		return nil, err
	}
	return core.Do[WorkflowRunData](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   pathf("/workflows/run", workflowRunID),
	})
}

func validateWorkflow(req *WorkflowRequest) error {
	if req == nil {
		return core.NewValidationError("workflow: request is nil")
	}
	return require("workflow", "user", req.User)
}

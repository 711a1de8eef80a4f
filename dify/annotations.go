package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify/core"
)

// Annotation is a curated question/answer pair used for annotation replies.
type Annotation struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	HitCount  int    `json:"hit_count"`
	CreatedAt int64  `json:"created_at"`
}

// ListAnnotationsParams pages GET /apps/annotations.
type ListAnnotationsParams struct {
	Page    int
	Limit   int
	Keyword string
}

// AnnotationList is a page of annotations.
type AnnotationList struct {
	Data    []Annotation `json:"data"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
}

// AnnotationRequest creates or updates an annotation.
type AnnotationRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Annotation reply actions.
const (
	AnnotationReplyEnable  = "enable"
	AnnotationReplyDisable = "disable"
)

// AnnotationReplySettings configures annotation replies. EmbeddingProvider and
// EmbeddingModel are required when enabling.
type AnnotationReplySettings struct {
	EmbeddingProviderName string  `json:"embedding_provider_name,omitempty"`
	EmbeddingModelName    string  `json:"embedding_model_name,omitempty"`
	ScoreThreshold        float64 `json:"score_threshold"`
}

// AnnotationReplyJob tracks the asynchronous job started by SetReply.
type AnnotationReplyJob struct {
	JobID     string `json:"job_id"`
	JobStatus string `json:"job_status"` // waiting, processing, completed, error
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// AnnotationService manages annotations and annotation replies.
type AnnotationService struct {
	c *core.Client
}

// List returns a page of annotations.
func (s *AnnotationService) List(ctx context.Context, p ListAnnotationsParams) (*AnnotationList, error) {
	q := core.Query{}.
		AddIf("page", itoa(p.Page)).
		AddIf("limit", itoa(p.Limit)).
		AddIf("keyword", p.Keyword)
	return core.Do[AnnotationList](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   "/apps/annotations",
		Query:  q,
	})
}

// Create adds an annotation.
func (s *AnnotationService) Create(ctx context.Context, req *AnnotationRequest) (*Annotation, error) {
	if err := validateAnnotation("create annotation", req); err != nil {
		return nil, err
	}
	return core.Do[Annotation](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   "/apps/annotations",
		Body:   req,
	})
}

// Update replaces the question and answer of an annotation.
func (s *AnnotationService) Update(ctx context.Context, annotationID string, req *AnnotationRequest) (*Annotation, error) {
	if err := require("update annotation", "annotation id", annotationID); err != nil {
		return nil, err
	}
	if err := validateAnnotation("update annotation", req); err != nil {
		return nil, err
	}
	return core.Do[Annotation](ctx, s.c, &core.Request{
		Method: http.MethodPut,
		Path:   pathf("/apps/annotations", annotationID),
		Body:   req,
	})
}

// Delete removes an annotation.
func (s *AnnotationService) Delete(ctx context.Context, annotationID string) error {
	if err := require("delete annotation", "annotation id", annotationID); err != nil {
		return err
	}
	return s.c.ExecuteNoBody(ctx, &core.Request{
		Method: http.MethodDelete,
		Path:   pathf("/apps/annotations", annotationID),
	})
}

// SetReply enables or disables annotation replies. Any action other than
// "enable" or "disable" fails before a request is sent.
func (s *AnnotationService) SetReply(ctx context.Context, action string, settings AnnotationReplySettings) (*AnnotationReplyJob, error) {
	if err := validateReplyAction(action); err != nil {
		return nil, err
	}
	if action == AnnotationReplyEnable {
		if err := require("annotation reply", "embedding provider", settings.EmbeddingProviderName,
			"embedding model", settings.EmbeddingModelName); err != nil {
			return nil, err
		}
	}
	return core.Do[AnnotationReplyJob](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   pathf("/apps/annotation-reply", action),
		Body:   settings,
	})
}

// ReplyStatus polls the job started by SetReply.
func (s *AnnotationService) ReplyStatus(ctx context.Context, action, jobID string) (*AnnotationReplyJob, error) {
	if err := validateReplyAction(action); err != nil {
		return nil, err
	}
	if err := require("annotation reply status", "job id", jobID); err != nil {
		return nil, err
	}
	return core.Do[AnnotationReplyJob](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   pathf("/apps/annotation-reply", action, "status", jobID),
	})
}

func validateReplyAction(action string) error {
	switch action {
	case AnnotationReplyEnable, AnnotationReplyDisable:
		return nil
	default:
		return core.NewValidationError("annotation reply: action must be %q or %q, got %q",
			AnnotationReplyEnable, AnnotationReplyDisable, action)
	}
}

func validateAnnotation(op string, req *AnnotationRequest) error {
	if req == nil {
		return core.NewValidationError("%s: request is nil", op)
	}
	return require(op, "question", req.Question, "answer", req.Answer)
}

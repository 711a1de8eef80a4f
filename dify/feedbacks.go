package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify/core"
)

// AppFeedback is one end-user rating recorded for the app.
type AppFeedback struct {
	ID             string `json:"id"`
	AppID          string `json:"app_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Rating         string `json:"rating"`
	Content        string `json:"content"`
	FromSource     string `json:"from_source"`
	FromEndUserID  string `json:"from_end_user_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// FeedbackList is a page of app feedbacks.
type FeedbackList struct {
	Data []AppFeedback `json:"data"`
}

// FeedbackService lists feedback left on the app's messages.
type FeedbackService struct {
	c *core.Client
}

// List returns one page of feedbacks. Zero page or limit use the service
// defaults.
func (s *FeedbackService) List(ctx context.Context, page, limit int) (*FeedbackList, error) {
	return core.Do[FeedbackList](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   "/apps/feedbacks",
		Query:  core.Query{}.AddIf("page", itoa(page)).AddIf("limit", itoa(limit)),
	})
}

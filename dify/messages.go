package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/internal/json"
)

// Message is one query/answer pair of a conversation.
type Message struct {
	ID                 string              `json:"id"`
	ConversationID     string              `json:"conversation_id"`
	Inputs             json.RawMessage     `json:"inputs,omitempty"`
	Query              string              `json:"query"`
	Answer             string              `json:"answer"`
	MessageFiles       []MessageFile       `json:"message_files,omitempty"`
	Feedback           *MessageFeedback    `json:"feedback,omitempty"`
	RetrieverResources []RetrieverResource `json:"retriever_resources,omitempty"`
	CreatedAt          int64               `json:"created_at"`
}

// MessageFile is a file attached to a message.
type MessageFile struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	BelongsTo string `json:"belongs_to"`
}

// MessageFeedback is the rating left on a message.
type MessageFeedback struct {
	Rating string `json:"rating"`
}

// ListMessagesParams filters GET /messages.
type ListMessagesParams struct {
	ConversationID string
	User           string
	// FirstID is the id of the first message of the current page; older
	// messages are returned.
	FirstID string
	Limit   int
}

// MessageList is a page of messages, oldest first.
type MessageList struct {
	Data    []Message `json:"data"`
	HasMore bool      `json:"has_more"`
	Limit   int       `json:"limit"`
}

// Feedback ratings.
const (
	RatingLike    = "like"
	RatingDislike = "dislike"
)

// FeedbackRequest rates a message. An empty Rating revokes a previous one.
type FeedbackRequest struct {
	Rating  *string `json:"rating"`
	User    string  `json:"user"`
	Content string  `json:"content,omitempty"`
}

// SuggestedQuestions are the follow-up questions proposed for a message.
type SuggestedQuestions struct {
	Result string   `json:"result"`
	Data   []string `json:"data"`
}

// MessageService reads message history and rates messages.
type MessageService struct {
	c *core.Client
}

// List returns the message history of a conversation.
func (s *MessageService) List(ctx context.Context, p ListMessagesParams) (*MessageList, error) {
	if err := require("list messages", "conversation id", p.ConversationID, "user", p.User); err != nil {
		return nil, err
	}
	q := core.Query{}.
		Add("conversation_id", p.ConversationID).
		Add("user", p.User).
		AddIf("first_id", p.FirstID).
		AddIf("limit", itoa(p.Limit))
	return core.Do[MessageList](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   "/messages",
		Query:  q,
	})
}

// Feedback rates a message with "like" or "dislike", or clears the rating
// when rating is empty.
func (s *MessageService) Feedback(ctx context.Context, messageID, rating, user, content string) error {
	if err := require("message feedback", "message id", messageID, "user", user); err != nil {
		return err
	}
	body := FeedbackRequest{User: user, Content: content}
	switch rating {
	case RatingLike, RatingDislike:
		body.Rating = &rating
	case "":
	default:
		return core.NewValidationError("message feedback: rating must be %q or %q, got %q", RatingLike, RatingDislike, rating)
	}
	_, err := core.Do[Result](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   pathf("/messages", messageID, "feedbacks"),
		Body:   body,
	})
	return err
}

// Suggested returns follow-up questions for a message.
func (s *MessageService) Suggested(ctx context.Context, messageID, user string) (*SuggestedQuestions, error) {
	if err := require("suggested questions", "message id", messageID, "user", user); err != nil {
		return nil, err
	}
	return core.Do[SuggestedQuestions](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   pathf("/messages", messageID, "suggested"),
		Query:  core.Query{}.Add("user", user),
	})
}

package dify

import (
	"context"
	"net/http"
	"strconv"

	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/internal/json"
)

// Conversation is one conversation of an end user.
type Conversation struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Inputs       json.RawMessage `json:"inputs,omitempty"`
	Status       string          `json:"status"`
	Introduction string          `json:"introduction,omitempty"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
}

// ListConversationsParams filters GET /conversations.
type ListConversationsParams struct {
	User string
	// LastID is the id of the last conversation of the previous page.
	LastID string
	Limit  int
	// SortBy is one of created_at, -created_at, updated_at, -updated_at.
	SortBy string
	// Pinned restricts the page to pinned (true) or unpinned (false)
	// conversations when set.
	Pinned *bool
}

// ConversationList is a page of conversations.
type ConversationList struct {
	Data    []Conversation `json:"data"`
	HasMore bool           `json:"has_more"`
	Limit   int            `json:"limit"`
}

// RenameConversationRequest renames a conversation. With AutoGenerate set the
// service picks the name and Name is ignored.
type RenameConversationRequest struct {
	Name         string `json:"name,omitempty"`
	AutoGenerate bool   `json:"auto_generate"`
	User         string `json:"user"`
}

// ConversationVariable is one variable captured in a conversation.
type ConversationVariable struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ValueType   string          `json:"value_type"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	UpdatedAt   int64           `json:"updated_at"`
}

// ListVariablesParams filters GET /conversations/{id}/variables.
type ListVariablesParams struct {
	User         string
	LastID       string
	Limit        int
	VariableName string
}

// ConversationVariableList is a page of conversation variables.
type ConversationVariableList struct {
	Data    []ConversationVariable `json:"data"`
	HasMore bool                   `json:"has_more"`
	Limit   int                    `json:"limit"`
}

// ConversationService manages conversations.
type ConversationService struct {
	c *core.Client
}

// List returns the user's conversations, most recently active first by default.
func (s *ConversationService) List(ctx context.Context, p ListConversationsParams) (*ConversationList, error) {
	if err := require("list conversations", "user", p.User); err != nil {
		return nil, err
	}
	q := core.Query{}.
		Add("user", p.User).
		AddIf("last_id", p.LastID).
		AddIf("limit", itoa(p.Limit)).
		AddIf("sort_by", p.SortBy)
	if p.Pinned != nil {
		q = q.Add("pinned", strconv.FormatBool(*p.Pinned))
	}
	return core.Do[ConversationList](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   "/conversations",
		Query:  q,
	})
}

// Delete removes a conversation. The user is sent as a query parameter.
func (s *ConversationService) Delete(ctx context.Context, conversationID, user string) error {
	if err := require("delete conversation", "conversation id", conversationID, "user", user); err != nil {
		return err
	}
	return s.c.ExecuteNoBody(ctx, &core.Request{
		Method: http.MethodDelete,
		Path:   pathf("/conversations", conversationID),
		Query:  core.Query{}.Add("user", user),
	})
}

// Rename sets or auto-generates the conversation name.
func (s *ConversationService) Rename(ctx context.Context, conversationID string, req *RenameConversationRequest) (*Conversation, error) {
	if req == nil {
		return nil, core.NewValidationError("rename conversation: request is nil")
	}
	if err := require("rename conversation", "conversation id", conversationID, "user", req.User); err != nil {
		return nil, err
	}
	if !req.AutoGenerate && req.Name == "" {
		return nil, core.NewValidationError("rename conversation: name is required unless auto_generate is set")
	}
	return core.Do[Conversation](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   pathf("/conversations", conversationID, "name"),
		Body:   req,
	})
}

// Variables lists the variables captured in a conversation.
func (s *ConversationService) Variables(ctx context.Context, conversationID string, p ListVariablesParams) (*ConversationVariableList, error) {
	if err := require("conversation variables", "conversation id", conversationID, "user", p.User); err != nil {
		return nil, err
	}
	q := core.Query{}.
		Add("user", p.User).
		AddIf("last_id", p.LastID).
		AddIf("limit", itoa(p.Limit)).
		AddIf("variable_name", p.VariableName)
	return core.Do[ConversationVariableList](ctx, s.c, &core.Request{
		Method: http.MethodGet,
		Path:   pathf("/conversations", conversationID, "variables"),
		Query:  q,
	})
}

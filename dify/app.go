package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/internal/json"
)

// AppInfo is the basic description of the app behind the API key.
type AppInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Mode        string   `json:"mode,omitempty"`
	AuthorName  string   `json:"author_name,omitempty"`
}

// AppParameters describes the inputs and features configured for the app.
// Form and feature blocks are kept raw because their shape depends on the app.
type AppParameters struct {
	OpeningStatement              string          `json:"opening_statement"`
	SuggestedQuestions            []string        `json:"suggested_questions"`
	SuggestedQuestionsAfterAnswer json.RawMessage `json:"suggested_questions_after_answer,omitempty"`
	SpeechToText                  json.RawMessage `json:"speech_to_text,omitempty"`
	TextToSpeech                  json.RawMessage `json:"text_to_speech,omitempty"`
	RetrieverResource             json.RawMessage `json:"retriever_resource,omitempty"`
	AnnotationReply               json.RawMessage `json:"annotation_reply,omitempty"`
	UserInputForm                 json.RawMessage `json:"user_input_form,omitempty"`
	FileUpload                    json.RawMessage `json:"file_upload,omitempty"`
	SystemParameters              json.RawMessage `json:"system_parameters,omitempty"`
}

// AppMeta holds tool icons used by the app.
type AppMeta struct {
	ToolIcons map[string]json.RawMessage `json:"tool_icons"`
}

// AppSite is the WebApp settings of the app.
type AppSite struct {
	Title                  string `json:"title"`
	ChatColorTheme         string `json:"chat_color_theme,omitempty"`
	ChatColorThemeInverted bool   `json:"chat_color_theme_inverted"`
	IconType               string `json:"icon_type,omitempty"`
	Icon                   string `json:"icon,omitempty"`
	IconBackground         string `json:"icon_background,omitempty"`
	IconURL                string `json:"icon_url,omitempty"`
	Description            string `json:"description,omitempty"`
	Copyright              string `json:"copyright,omitempty"`
	PrivacyPolicy          string `json:"privacy_policy,omitempty"`
	CustomDisclaimer       string `json:"custom_disclaimer,omitempty"`
	DefaultLanguage        string `json:"default_language,omitempty"`
	ShowWorkflowSteps      bool   `json:"show_workflow_steps"`
	UseIconAsAnswerIcon    bool   `json:"use_icon_as_answer_icon"`
}

// AppService reads app configuration.
type AppService struct {
	c *core.Client
}

// Info returns the app name, description and tags.
func (s *AppService) Info(ctx context.Context) (*AppInfo, error) {
	return core.Do[AppInfo](ctx, s.c, &core.Request{Method: http.MethodGet, Path: "/info"})
}

// Parameters returns the app input form and feature switches.
func (s *AppService) Parameters(ctx context.Context) (*AppParameters, error) {
	return core.Do[AppParameters](ctx, s.c, &core.Request{Method: http.MethodGet, Path: "/parameters"})
}

// Meta returns tool icons.
func (s *AppService) Meta(ctx context.Context) (*AppMeta, error) {
	return core.Do[AppMeta](ctx, s.c, &core.Request{Method: http.MethodGet, Path: "/meta"})
}

// Site returns the WebApp settings.
func (s *AppService) Site(ctx context.Context) (*AppSite, error) {
	return core.Do[AppSite](ctx, s.c, &core.Request{Method: http.MethodGet, Path: "/site"})
}

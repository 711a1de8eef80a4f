package dify

import "github.com/petal-labs/dify/internal/json"

// InputFile references a file attached to a message, either by remote URL or
// by the id returned from FileService.Upload.
type InputFile struct {
	Type           string `json:"type"`            // "image", "document", "audio", "video", "custom"
	TransferMethod string `json:"transfer_method"` // "remote_url" or "local_file"
	URL            string `json:"url,omitempty"`
	UploadFileID   string `json:"upload_file_id,omitempty"`
}

// ChatRequest is the body of POST /chat-messages. ResponseMode is overwritten
// by ChatService.Send and ChatService.Stream.
type ChatRequest struct {
	Inputs           map[string]any `json:"inputs"`
	Query            string         `json:"query"`
	ResponseMode     string         `json:"response_mode,omitempty"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	User             string         `json:"user"`
	Files            []InputFile    `json:"files,omitempty"`
	AutoGenerateName *bool          `json:"auto_generate_name,omitempty"`
}

// ChatResponse is the blocking chat result.
type ChatResponse struct {
	Event          string    `json:"event,omitempty"`
	TaskID         string    `json:"task_id,omitempty"`
	ID             string    `json:"id,omitempty"`
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Mode           string    `json:"mode,omitempty"`
	Answer         string    `json:"answer"`
	Metadata       *Metadata `json:"metadata,omitempty"`
	CreatedAt      int64     `json:"created_at,omitempty"`
}

// Metadata carries usage and retrieval citations of a message.
type Metadata struct {
	Usage              *Usage              `json:"usage,omitempty"`
	RetrieverResources []RetrieverResource `json:"retriever_resources,omitempty"`
}

// Usage is the model usage of one message.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TotalPrice       string  `json:"total_price,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	Latency          float64 `json:"latency,omitempty"`
}

// RetrieverResource is one knowledge citation.
type RetrieverResource struct {
	Position     int     `json:"position"`
	DatasetID    string  `json:"dataset_id"`
	DatasetName  string  `json:"dataset_name"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	SegmentID    string  `json:"segment_id"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

// Stream event tags emitted by the service. The list is not exhaustive;
// unknown tags are delivered unchanged.
const (
	EventMessage          = "message"
	EventAgentMessage     = "agent_message"
	EventAgentThought     = "agent_thought"
	EventMessageFile      = "message_file"
	EventMessageEnd       = "message_end"
	EventMessageReplace   = "message_replace"
	EventTTSMessage       = "tts_message"
	EventTTSMessageEnd    = "tts_message_end"
	EventWorkflowStarted  = "workflow_started"
	EventNodeStarted      = "node_started"
	EventNodeFinished     = "node_finished"
	EventWorkflowFinished = "workflow_finished"
	EventTextChunk        = "text_chunk"
	EventError            = "error"
	EventPing             = "ping"
)

// StreamEvent is one decoded "data:" line of a streaming response.
type StreamEvent struct {
	Event          string `json:"event"`
	TaskID         string `json:"task_id,omitempty"`
	ID             string `json:"id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	WorkflowRunID  string `json:"workflow_run_id,omitempty"`

	// Answer is the text fragment of message and agent_message events.
	Answer string `json:"answer,omitempty"`

	// Agent thought fields.
	Position    int    `json:"position,omitempty"`
	Thought     string `json:"thought,omitempty"`
	Observation string `json:"observation,omitempty"`
	Tool        string `json:"tool,omitempty"`
	ToolInput   string `json:"tool_input,omitempty"`

	// Audio is a base64 chunk of tts_message events.
	Audio string `json:"audio,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`

	// Data is the payload of workflow and node events.
	Data json.RawMessage `json:"data,omitempty"`

	CreatedAt int64 `json:"created_at,omitempty"`

	// Error event fields.
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// IsTerminal reports whether the event ends a chat, completion or workflow
// stream.
func (e StreamEvent) IsTerminal() bool {
	switch e.Event {
	case EventMessageEnd, EventWorkflowFinished, EventError:
		return true
	default:
		return false
	}
}

// IsError reports whether the event is an in-stream error.
func (e StreamEvent) IsError() bool {
	return e.Event == EventError
}

// Err returns the failure carried by an error event as a KindStatus
// *core.Error, and nil for every other event.
func (e StreamEvent) Err() error {
	if !e.IsError() {
		return nil
	}
	return streamError(e)
}

package dify

import (
	"context"
	"io"
	"net/http"

	"github.com/petal-labs/dify/core"
)

// SpeechToTextResponse is the transcription of an uploaded recording.
type SpeechToTextResponse struct {
	Text string `json:"text"`
}

// TextToAudioRequest asks for speech synthesis of either a stored message or
// free text. One of MessageID and Text is required.
type TextToAudioRequest struct {
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	User      string `json:"user"`
}

// AudioService converts between speech and text.
type AudioService struct {
	c *core.Client
}

// SpeechToText uploads a recording (mp3, mp4, mpeg, mpga, m4a, wav or webm)
// and returns its transcription.
func (s *AudioService) SpeechToText(ctx context.Context, filename string, r io.Reader, user string) (*SpeechToTextResponse, error) {
	if err := require("speech to text", "filename", filename, "user", user); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, core.NewValidationError("speech to text: reader is nil")
	}
	return core.Do[SpeechToTextResponse](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   "/audio-to-text",
		Form: &core.Form{
			Fields:    []core.QueryParam{{Key: "user", Value: user}},
			FileField: "file",
			FileName:  filename,
			File:      r,
		},
	})
}

// TextToAudio synthesizes speech. The audio is streamed back undecoded and the
// caller must close the returned body.
func (s *AudioService) TextToAudio(ctx context.Context, req *TextToAudioRequest) (*core.RawResponse, error) {
	if req == nil {
		return nil, core.NewValidationError("text to audio: request is nil")
	}
	if err := require("text to audio", "user", req.User); err != nil {
		return nil, err
	}
	if req.MessageID == "" && req.Text == "" {
		return nil, core.NewValidationError("text to audio: message id or text is required")
	}
	return s.c.OpenRaw(ctx, &core.Request{
		Method:    http.MethodPost,
		Path:      "/text-to-audio",
		Body:      req,
		Accept:    "audio/*",
		Operation: "audio",
	})
}

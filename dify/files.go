package dify

import (
	"context"
	"io"
	"net/http"

	"github.com/petal-labs/dify/core"
)

// UploadedFile describes a file stored by FileService.Upload. Its ID is
// referenced from InputFile.UploadFileID.
type UploadedFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

// FileService uploads files for use in messages.
type FileService struct {
	c *core.Client
}

// Upload sends r as a multipart "file" part named filename.
func (s *FileService) Upload(ctx context.Context, filename string, r io.Reader, user string) (*UploadedFile, error) {
	if err := require("upload file", "filename", filename, "user", user); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, core.NewValidationError("upload file: reader is nil")
	}
	return core.Do[UploadedFile](ctx, s.c, &core.Request{
		Method: http.MethodPost,
		Path:   "/files/upload",
		Form: &core.Form{
			Fields:    []core.QueryParam{{Key: "user", Value: user}},
			FileField: "file",
			FileName:  filename,
			File:      r,
		},
	})
}

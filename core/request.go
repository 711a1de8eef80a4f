package core

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petal-labs/dify/internal/json"
)

// QueryParam is one key/value pair of a query string.
type QueryParam struct {
	Key   string
	Value string
}

// Query is an ordered list of query parameters. Unlike url.Values it keeps
// insertion order when encoded.
type Query []QueryParam

// Add appends a parameter.
func (q Query) Add(key, value string) Query {
	return append(q, QueryParam{Key: key, Value: value})
}

// AddIf appends a parameter only when value is non-empty.
func (q Query) AddIf(key, value string) Query {
	if value == "" {
		return q
	}
	return q.Add(key, value)
}

// Encode renders the parameters as an escaped query string without the
// leading "?".
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Form is a multipart/form-data body with plain fields and one file part.
type Form struct {
	Fields    []QueryParam
	FileField string
	FileName  string
	File      io.Reader
}

// Request describes one call. It is built per call and never mutated by the
// client.
type Request struct {
	Method string
	// Path is relative to the client base URL and must start with "/".
	Path  string
	Query Query

	// Body is JSON encoded unless it is already []byte or json.RawMessage.
	Body any
	// Form replaces Body with a multipart payload.
	Form *Form

	// Accept overrides the Accept header ("application/json" by default).
	Accept string

	// Timeout overrides the client timeout for this call.
	Timeout time.Duration

	// Retriable opts a non-GET call into the resilience policy. GET calls are
	// always retriable.
	Retriable bool

	// Group names the circuit breaker this call shares. Defaults to the first
	// path segment.
	Group string

	// Operation is the logical operation name used for stream metrics
	// (for example "chat"). Defaults to Group.
	Operation string
}

func (r *Request) group() string {
	if r.Group != "" {
		return r.Group
	}
	p := strings.TrimPrefix(r.Path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

func (r *Request) operation() string {
	if r.Operation != "" {
		return r.Operation
	}
	return r.group()
}

// payload is the encoded body of a Request. It is encoded once so that retries
// replay identical bytes.
type payload struct {
	data        []byte
	contentType string
}

func (p *payload) reader() io.Reader {
	if p == nil || p.data == nil {
		return nil
	}
	return bytes.NewReader(p.data)
}

func encodePayload(r *Request) (*payload, error) {
	switch {
	case r.Form != nil:
		return encodeForm(r.Form)
	case r.Body == nil:
		return nil, nil
	}

	switch b := r.Body.(type) {
	case json.RawMessage:
		return &payload{data: b, contentType: "application/json"}, nil
	case []byte:
		return &payload{data: b, contentType: "application/json"}, nil
	}

	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "request body could not be encoded", Err: err}
	}
	return &payload{data: data, contentType: "application/json"}, nil
}

func encodeForm(f *Form) (*payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range f.Fields {
		if err := w.WriteField(field.Key, field.Value); err != nil {
			return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("failed to write %s field", field.Key), Err: err}
		}
	}

	if f.File != nil {
		part, err := w.CreateFormFile(f.FileField, f.FileName)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "failed to create form file", Err: err}
		}
		if _, err := io.Copy(part, f.File); err != nil {
			return nil, &Error{Kind: KindValidation, Message: "failed to copy file content", Err: err}
		}
	}

	if err := w.Close(); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "failed to close multipart writer", Err: err}
	}
	return &payload{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

func isRetriableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

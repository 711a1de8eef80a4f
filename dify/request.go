package dify

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/internal/json"
)

// Response modes accepted by the message and workflow endpoints.
const (
	ResponseModeBlocking  = "blocking"
	ResponseModeStreaming = "streaming"
)

const eventStreamAccept = "text/event-stream"

// withResponseMode encodes body and forces its response_mode field, whatever
// the caller set. Nil inputs are sent as an empty object.
func withResponseMode(body any, mode string) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err == nil {
		data, err = sjson.SetBytes(data, "response_mode", mode)
	}
	if err == nil && gjson.GetBytes(data, "inputs").Type == gjson.Null {
		data, err = sjson.SetRawBytes(data, "inputs", []byte("{}"))
	}
	if err != nil {
		return nil, &core.Error{Kind: core.KindValidation, Message: "request body could not be encoded", Err: err}
	}
	return data, nil
}

// pathf joins escaped segments onto a path template root.
func pathf(root string, segments ...string) string {
	var b strings.Builder
	b.WriteString(root)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// require reports the first empty value as a validation error.
func require(op string, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return core.NewValidationError("%s: %s is required", op, fields[i])
		}
	}
	return nil
}

func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// userBody is the {"user": ...} payload of stop and similar calls.
type userBody struct {
	User string `json:"user"`
}

// Result is the {"result": "success"} acknowledgement most mutations return.
type Result struct {
	Result string `json:"result"`
}

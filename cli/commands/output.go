package commands

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/petal-labs/dify/core"
	"github.com/petal-labs/dify/internal/json"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAPI        = 2
	ExitNetwork    = 3
)

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	switch core.KindOf(err) {
	case core.KindTransport:
		return ExitNetwork
	case core.KindStatus, core.KindDecode:
		return ExitAPI
	default:
		return ExitValidation
	}
}

// fail tags an error returned by the client with its exit code.
func fail(err error) error {
	if err == nil {
		return nil
	}
	return exitWithCode(exitCodeFor(err), err)
}

func (a *App) reportError(err error) {
	if !a.jsonOutput {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		var apiErr *core.Error
		if a.verbose && errors.As(err, &apiErr) && apiErr.RequestID != "" {
			fmt.Fprintf(a.stderr, "  Request ID: %s\n", apiErr.RequestID)
		}
		return
	}

	output := map[string]any{
		"type":    "error",
		"message": err.Error(),
	}
	var apiErr *core.Error
	if errors.As(err, &apiErr) {
		output["type"] = apiErr.Kind.String()
		if apiErr.StatusCode != 0 {
			output["status"] = apiErr.StatusCode
		}
		if apiErr.Code != "" {
			output["code"] = apiErr.Code
		}
		if apiErr.RequestID != "" {
			output["request_id"] = apiErr.RequestID
		}
	}

	enc := json.NewEncoder(a.stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"error": output})
}

// printJSON writes v as indented JSON, or only the --select path of it.
func (a *App) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("encode output: %w", err))
	}
	return a.writeJSON(data)
}

// printJSONLine writes v as one compact JSON line.
func (a *App) printJSONLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("encode output: %w", err))
	}
	return a.writeJSON(data)
}

func (a *App) writeJSON(data []byte) error {
	if a.selectPath != "" {
		res := gjson.GetBytes(data, a.selectPath)
		if !res.Exists() {
			return nil
		}
		if res.Type == gjson.String {
			data = []byte(res.Str)
		} else {
			data = []byte(res.Raw)
		}
	}
	if _, err := a.stdout.Write(append(data, '\n')); err != nil {
		return exitWithCode(ExitValidation, err)
	}
	return nil
}

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

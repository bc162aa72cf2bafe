package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chis/regman/internal/registry"
)

// Version is the regman version, overridden at build time via -ldflags.
var Version = "dev"

// Response is a standardized JSON wrapper for all command outputs
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"` // registry error kind, when known
	Timestamp string      `json:"timestamp"`            // RFC3339 format
	Version   string      `json:"version"`
}

// SuccessResponse creates a successful response with data
func SuccessResponse(data interface{}) Response {
	return Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
	}
}

// ErrorResponse creates an error response. Registry errors carry their kind.
func ErrorResponse(err error) Response {
	resp := Response{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
	}
	var regErr *registry.Error
	if errors.As(err, &regErr) {
		resp.ErrorKind = regErr.Kind.String()
	}
	return resp
}

// WriteJSON writes a Response as indented JSON to the given writer
func WriteJSON(w io.Writer, response Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteJSONData wraps data in a success response and writes it
func WriteJSONData(w io.Writer, data interface{}) error {
	return WriteJSON(w, SuccessResponse(data))
}

// WriteJSONError wraps an error in a response and writes it
func WriteJSONError(w io.Writer, err error) error {
	return WriteJSON(w, ErrorResponse(err))
}

// WriteJSONErrorWithData writes a failed response that still carries data,
// e.g. a deletion report where some tags could not be removed.
func WriteJSONErrorWithData(w io.Writer, err error, data interface{}) error {
	resp := ErrorResponse(err)
	resp.Data = data
	return WriteJSON(w, resp)
}

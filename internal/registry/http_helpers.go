package registry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// registryErrors is the V2 error body: {"errors":[{"code":..,"message":..}]}.
type registryErrors struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// statusError reads the response body and returns a classified error for a
// response the caller did not expect.
func statusError(kind ErrorKind, op, repository, ref string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	e := &Error{
		Kind:       kind,
		Op:         op,
		Repository: repository,
		Reference:  ref,
		StatusCode: resp.StatusCode,
	}

	var parsed registryErrors
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		e.Code = parsed.Errors[0].Code
		if parsed.Errors[0].Message != "" {
			e.Err = errors.New(parsed.Errors[0].Message)
		}
		return e
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		e.Err = errors.New(text)
	}
	return e
}

// transportError wraps a failure that happened before a response was read.
func transportError(kind ErrorKind, op, repository, ref string, err error) *Error {
	return &Error{
		Kind:       kind,
		Op:         op,
		Repository: repository,
		Reference:  ref,
		Err:        err,
	}
}

// drain discards the rest of a body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

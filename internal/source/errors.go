package source

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError reports a request that never produced an HTTP response:
// connection failures, timeouts, or a cancelled context.
type TransportError struct {
	Op  string // "fetch dashboard" or "refresh source".
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("source: %s %s: %s", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError reports a non-success HTTP status from the data source.
type UpstreamError struct {
	Status  int
	Message string // Response body text, if any.
}

func (e *UpstreamError) Error() string {
	text := http.StatusText(e.Status)
	switch {
	case e.Message != "" && text != "":
		return fmt.Sprintf("source: %d %s: %s", e.Status, text, e.Message)
	case e.Message != "":
		return fmt.Sprintf("source: %d: %s", e.Status, e.Message)
	case text != "":
		return fmt.Sprintf("source: %d %s", e.Status, text)
	default:
		return fmt.Sprintf("source: status %d", e.Status)
	}
}

// DecodeError reports a success response whose body could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("source: decoding dashboard: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// fromResponse builds an UpstreamError from a response status and body.
func fromResponse(status int, body []byte) error {
	return &UpstreamError{
		Status:  status,
		Message: strings.TrimSpace(string(body)),
	}
}

// IsUpstream reports whether err is an UpstreamError with the given status.
// A zero status matches any UpstreamError.
func IsUpstream(err error, status int) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return status == 0 || ue.Status == status
}

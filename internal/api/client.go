package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UserAgent is sent with every outbound request.
const UserAgent = "meetupnotify/1.0"

// maxErrorBody caps how much of a failed response is echoed into errors.
const maxErrorBody = 512

// HTTPClient interface for HTTP operations (allows mocking in tests).
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the single client shared by every outbound call of a
// run. No retries are performed on top of it.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %s: %s", e.Status, e.Body)
}

// CheckResponse returns a *StatusError for non-2xx responses. It reads a
// bounded prefix of the body but leaves closing to the caller.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var snippet string
	if resp.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		snippet = strings.TrimSpace(string(b))
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &StatusError{StatusCode: resp.StatusCode, Status: status, Body: snippet}
}

package embedder

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/54b3r/pdfchat-go/internal/errkind"
)

// maxErrorBody caps how much of a failed response body is kept for the message.
const maxErrorBody = 4 << 10

// HTTPError is returned when an embedding endpoint answers with a non-2xx
// status. It is always wrapped in an [errkind.Error] whose kind follows
// [errkind.FromHTTPStatus].
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// statusError builds a tagged HTTPError from resp. extract pulls a
// backend-specific message out of the body and may return "".
func statusError(op string, resp *http.Response, extract func([]byte) string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := ""
	if extract != nil {
		msg = extract(body)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return errkind.Wrap(errkind.FromHTTPStatus(resp.StatusCode), op,
		&HTTPError{Status: resp.StatusCode, Message: msg})
}

// transportError tags a failed round trip as the service being unavailable.
func transportError(op string, err error) error {
	return errkind.Wrap(errkind.ServiceUnavailable, op, fmt.Errorf("request failed: %w", err))
}

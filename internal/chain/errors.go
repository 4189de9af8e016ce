package chain

import (
	"context"
	"errors"
	"strings"

	"github.com/54b3r/pdfchat-go/internal/errkind"
)

// credentialMarkers are fragments the supported providers put in the error
// text of a rejected key.
var credentialMarkers = []string{
	"status code: 401",
	"status code: 403",
	"401 unauthorized",
	"403 forbidden",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"api key not valid",
	"authentication",
}

// classify tags a model error. Errors that already carry a kind keep it;
// rejected keys become credential errors and everything else means the
// provider is unavailable.
func classify(op string, err error) error {
	if errkind.KindOf(err) != errkind.Unknown {
		return errkind.Wrap(errkind.Unknown, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errkind.Wrap(errkind.ServiceUnavailable, op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range credentialMarkers {
		if strings.Contains(msg, marker) {
			return errkind.Wrap(errkind.Credential, op, err)
		}
	}
	return errkind.Wrap(errkind.ServiceUnavailable, op, err)
}

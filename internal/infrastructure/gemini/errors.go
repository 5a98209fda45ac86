// Package gemini calls Gemini-style inference backends through the SDK and the raw REST API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/cigarlens/backend/internal/domain"
)

// unavailableMarkers identify "model does not exist or cannot serve this method" failures
var unavailableMarkers = []string{
	"not found",
	"notfound",
	"not_found",
	"not supported",
	"unsupported",
	"is not found for api version",
}

var apiKeyPattern = regexp.MustCompile(`key=[^&\s"]+`)

// RedactKey hides API keys carried in URLs or error text.
func RedactKey(s string) string {
	return apiKeyPattern.ReplaceAllString(s, "key=REDACTED")
}

// classifyError maps a transport failure onto a *domain.BackendError.
// Status 404 and not-found/unsupported messages are unavailable; everything else is rejected.
func classifyError(err error, statusCode int, model, transport string) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	// Context cancellation is the caller's decision, not a backend verdict
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && statusCode == 0 {
		statusCode = apiErr.Code
	}

	msg := ""
	if err != nil {
		msg = RedactKey(err.Error())
	}
	lower := strings.ToLower(msg)

	kind := domain.ErrBackendRejected
	if statusCode == http.StatusNotFound {
		kind = domain.ErrBackendUnavailable
	} else {
		for _, marker := range unavailableMarkers {
			if strings.Contains(lower, marker) {
				kind = domain.ErrBackendUnavailable
				break
			}
		}
	}

	var cause error
	if err != nil {
		cause = errors.New(msg)
	}
	return &domain.BackendError{
		Kind:       kind,
		Model:      model,
		Transport:  transport,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

func parseError(model, transport, message string) error {
	return &domain.BackendError{
		Kind:      domain.ErrParse,
		Model:     model,
		Transport: transport,
		Message:   message,
	}
}

func missingKeyError() error {
	return &domain.ConfigurationError{
		Setting:     "inference.api_key",
		Remediation: "set CIGARLENS_INFERENCE_API_KEY to a key with access to the generative language API",
	}
}

func statusError(statusCode int, body []byte) error {
	return fmt.Errorf("status %d: %s", statusCode, truncate(string(body), 512))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

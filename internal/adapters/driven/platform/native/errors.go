package native

import (
	"errors"
	"net/http"

	"github.com/jomei/notionapi"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// statusCode extracts the HTTP status from a Google or Notion API error.
func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var nerr *notionapi.Error
	if errors.As(err, &nerr) {
		return nerr.Status
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode
	}
	return 0
}

// wrapError classifies an API failure as an integration error.
func wrapError(call domain.ToolCall, err error) error {
	if err == nil {
		return nil
	}

	cause := err
	switch statusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		cause = errors.Join(domain.ErrAuthInvalid, err)
	case http.StatusNotFound:
		cause = errors.Join(domain.ErrNotFound, err)
	case http.StatusTooManyRequests:
		cause = errors.Join(domain.ErrRateLimited, err)
	}

	return &domain.IntegrationError{
		Operation:   call.Operation,
		Integration: call.Integration,
		Strategy:    StrategyName,
		Message:     err.Error(),
		Err:         cause,
	}
}

// errorsJoinAuth marks a token refresh failure as invalid credentials.
func errorsJoinAuth(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return errors.Join(domain.ErrAuthInvalid, err)
	}
	return err
}

package api

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a business error reported by the API: either success:false in the
// envelope or a non-2xx status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return e.Message
}

// ValidationError is raised before a request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var ErrNoData = errors.New("api: response carried no data")

// Message picks the text to show for err: the server or validation message
// when there is one, otherwise fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	if errors.As(err, &validation) && validation.Message != "" {
		return validation.Message
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}

	return fallback
}

// IsUnauthorized reports whether err is a 401/403 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
}

package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/recipients"
	"github.com/dazzlo/bulkmail/pkg/storage"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

// HTTPError represents an HTTP error with all data needed for rendering.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to users).
	Err error

	// Message is the user-facing error message.
	Message string

	// Fields holds per-field validation messages.
	Fields map[string]string

	// RequestID is the request tracking ID.
	RequestID string

	// Code is the HTTP status code.
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string, err error) *HTTPError {
	return &HTTPError{Code: code, Message: message, Err: err}
}

func errBadRequest(message string, err error) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, err)
}

func errUnprocessable(message string, err error) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, message, err)
}

func errNotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, nil)
}

// AsHTTPError maps err to an HTTPError. Known domain errors become 4xx
// responses carrying their message; anything else is a 500.
func AsHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var missing *recipients.MissingColumnsError
	var invalidFile *storage.FileValidationError
	switch {
	case errors.As(err, &missing):
		return errUnprocessable("CSV file must contain columns: "+strings.Join(missing.Missing, ", "), err)
	case errors.As(err, &invalidFile):
		return errUnprocessable(invalidFile.Error(), err)
	case errors.Is(err, templates.ErrUnknownKind):
		return errBadRequest("Unknown template type.", err)
	case errors.Is(err, dispatch.ErrNoCredentials):
		return errBadRequest("Email and Password are required.", err)
	case errors.Is(err, dispatch.ErrSenderRequired):
		return errBadRequest("Sender name and designation are required for partnership templates.", err)
	case errors.Is(err, recipients.ErrEmptyInput),
		errors.Is(err, recipients.ErrNoRecipients),
		errors.Is(err, dispatch.ErrNoRecipients):
		return errUnprocessable("The recipient list contains no recipients.", err)
	case errors.Is(err, recipients.ErrMalformedInput):
		return errUnprocessable("The recipient file could not be read.", err)
	case errors.Is(err, dispatch.ErrAttachmentsTooLarge):
		return errUnprocessable("Attachments exceed the 100 MB total limit.", err)
	case errors.Is(err, storage.ErrFileTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, "Uploaded file is too large.", err)
	}
	return NewHTTPError(http.StatusInternalServerError, "An error occurred while sending emails.", err)
}

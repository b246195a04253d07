package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dimaystinov/bot-hnushka/internal/api/shared"
	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/source"
	"github.com/dimaystinov/bot-hnushka/internal/store"
	"github.com/dimaystinov/bot-hnushka/internal/task"
)

// Errors raised by the handlers themselves.
var (
	ErrUnsupportedUpload = errors.New("unsupported upload")
	ErrLocalLocator      = errors.New("local file locators must be uploaded")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking their types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, source.ErrUnsupportedLocator),
		errors.Is(err, ErrUnsupportedUpload),
		errors.Is(err, ErrLocalLocator):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, source.ErrTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, task.ErrOwnerQueueFull):
		return http.StatusTooManyRequests

	case errors.Is(err, task.ErrRunnerStopped):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, store.ErrNotFound):
		return "Item not found"
	case errors.Is(err, task.ErrOwnerQueueFull):
		return "Too many unfinished items, try again later"
	case errors.Is(err, task.ErrRunnerStopped):
		return "Service is shutting down"
	case errors.Is(err, source.ErrTooLarge):
		return fmt.Sprintf("Recording exceeds %d MB", domain.MaxMediaBytes>>20)
	case errors.Is(err, source.ErrUnsupportedLocator):
		return "Unsupported source locator"
	case errors.Is(err, ErrLocalLocator):
		return "Local files must be uploaded as multipart form data"
	case errors.Is(err, ErrUnsupportedUpload):
		return "Invalid upload"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid item data"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the full error. A non-empty message overrides the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}

// SanitizeValidationError turns validator errors into a short message
// naming the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

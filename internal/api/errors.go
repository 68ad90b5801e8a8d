package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/email"
	"github.com/phrazzld/stack-api/internal/service"
	"github.com/phrazzld/stack-api/internal/sso"
	"github.com/phrazzld/stack-api/internal/store"
	"github.com/phrazzld/stack-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so internal
// error types never reach clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Credentials and tokens
	case errors.Is(err, service.ErrIncorrectCredentials),
		errors.Is(err, service.ErrInactiveUser),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrIncorrectPassword),
		errors.Is(err, service.ErrSamePassword),
		errors.Is(err, service.ErrActivationExpired):
		return http.StatusBadRequest

	// SSO
	case errors.Is(err, sso.ErrUserInfo),
		errors.Is(err, sso.ErrMissingEmail),
		errors.Is(err, sso.ErrInvalidState),
		errors.Is(err, sso.ErrExchangeFailed),
		errors.Is(err, sso.ErrProviderRefused):
		return http.StatusUnauthorized
	case errors.Is(err, sso.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, sso.ErrUnknownApp):
		return http.StatusNotFound

	// Authorization errors
	case errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrSuperuserSelfDelete):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, task.ErrInvalidArguments):
		return http.StatusBadRequest

	// Dependencies
	case errors.Is(err, email.ErrEmailsDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, task.ErrTaskFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the client facing detail for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrIncorrectCredentials):
		return "Incorrect email or password"
	case errors.Is(err, service.ErrInactiveUser):
		return "Inactive user"
	case errors.Is(err, service.ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, service.ErrActivationExpired):
		return "Activation token expired, a new activation email has been sent"
	case errors.Is(err, service.ErrIncorrectPassword):
		return "Incorrect password"
	case errors.Is(err, service.ErrSamePassword):
		return "New password cannot be the same as the current one"
	case errors.Is(err, service.ErrRegistrationClosed):
		return "Open user registration is forbidden on this server"
	case errors.Is(err, service.ErrSuperuserSelfDelete):
		return "Super users are not allowed to delete themselves"

	case errors.Is(err, sso.ErrMissingEmail):
		return "Failed to fetch email information"
	case errors.Is(err, sso.ErrUserInfo),
		errors.Is(err, sso.ErrExchangeFailed),
		errors.Is(err, sso.ErrProviderRefused):
		return "Failed to fetch user information"
	case errors.Is(err, sso.ErrInvalidState):
		return "Invalid or expired login state"
	case errors.Is(err, sso.ErrMissingCode):
		return "Missing authorization code"
	case errors.Is(err, sso.ErrUnknownApp):
		return "Unknown SSO application"

	case errors.Is(err, store.ErrUserNotFound):
		return "The user with this email does not exist in the system."
	case errors.Is(err, store.ErrEmailExists):
		return "The user with this email already exists in the system."

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, task.ErrInvalidArguments):
		return validationDetail(err)

	case errors.Is(err, email.ErrEmailsDisabled):
		return "Emails are not enabled on this server"
	case errors.Is(err, task.ErrTaskFailed):
		return "Task failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for task result"

	default:
		return "An unexpected error occurred"
	}
}

// validationDetail keeps the message of a domain or task validation error and
// drops the wrapping context added by lower layers.
func validationDetail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrValidation, task.ErrInvalidArguments} {
		prefix := sentinel.Error() + ": "
		if i := strings.LastIndex(msg, prefix); i >= 0 {
			return msg[i+len(prefix):]
		}
	}
	return "Validation error"
}

// HandleAPIError writes the mapped status and safe detail for err.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// HandleValidationError writes a 422 for a request that failed decoding or
// struct validation.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusUnprocessableEntity, SanitizeValidationError(err), err)
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", jsonFieldName(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	if errors.Is(err, shared.ErrEmptyBody) {
		return "Request body is required"
	}
	return "Invalid request format"
}

// jsonFieldName converts a Go field name such as NewPassword to new_password.
func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt", "gte":
		return "too small"
	case "lt", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

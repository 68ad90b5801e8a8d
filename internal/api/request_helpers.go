package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/stack-api/internal/api/middleware"
	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/platform/logger"
)

// Pagination defaults of list endpoints.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// currentUser returns the user loaded by the auth middleware. It writes a 401
// and returns false when the route was mounted without authentication.
func currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := middleware.GetCurrentUser(r)
	if !ok {
		logger.FromContext(r.Context()).Warn("current user missing from request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated",
			shared.WithHeader("WWW-Authenticate", "Bearer"))
		return nil, false
	}
	return user, true
}

// getPathUUID parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// handlePathUUID extracts a UUID path parameter, writing a 422 on failure.
func handlePathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	id, err := getPathUUID(r, paramName)
	if err != nil {
		logger.FromContext(r.Context()).Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Invalid "+paramName)
		return uuid.Nil, false
	}
	return id, true
}

// decodeAndValidate decodes a JSON body into v and validates it, writing a
// 422 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		HandleValidationError(w, r, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleValidationError(w, r, err)
		return false
	}
	return true
}

// paginationParams reads skip and limit query parameters.
func paginationParams(r *http.Request) (skip, limit int, err error) {
	skip, limit = 0, DefaultLimit
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("%w: skip must be a non-negative integer", domain.ErrValidation)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 || limit > MaxLimit {
			return 0, 0, fmt.Errorf("%w: limit must be between 0 and %d", domain.ErrValidation, MaxLimit)
		}
	}
	return skip, limit, nil
}

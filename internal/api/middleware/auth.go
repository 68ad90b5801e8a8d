package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/service/auth"
	"github.com/phrazzld/stack-api/internal/store"
)

// AuthMiddleware authenticates bearer tokens and loads the current user.
type AuthMiddleware struct {
	jwtService auth.JWTService
	users      store.UserStore
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, users store.UserStore) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		users:      users,
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// Authenticate validates the access token and stores the active user it was
// issued for in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated",
				shared.WithHeader("WWW-Authenticate", "Bearer"))
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken),
				errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Could not validate credentials", err)
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if store.IsNotFoundError(err) {
				shared.RespondWithError(w, r, http.StatusNotFound, "User not found")
				return
			}
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			return
		}
		if !user.IsActive {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Inactive user")
			return
		}

		ctx := shared.WithCurrentUser(r.Context(), user)
		log := logger.FromContext(ctx).With(slog.String("user_id", user.ID.String()))
		ctx = logger.WithLogger(ctx, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperuser rejects users without the superuser flag. It must run
// after Authenticate.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetCurrentUser(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated",
				shared.WithHeader("WWW-Authenticate", "Bearer"))
			return
		}
		if !user.IsSuperuser {
			shared.RespondWithError(w, r, http.StatusForbidden, "The user doesn't have enough privileges")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetCurrentUser returns the user stored by Authenticate.
func GetCurrentUser(r *http.Request) (*domain.User, bool) {
	return shared.CurrentUser(r.Context())
}

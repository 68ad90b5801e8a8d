package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/service"
	"github.com/phrazzld/stack-api/internal/service/auth"
	"github.com/phrazzld/stack-api/internal/store"
)

// AuthHandler handles the login and password recovery endpoints.
type AuthHandler struct {
	users      service.UserService
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users service.UserService,
	jwtService auth.JWTService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "auth_handler")),
	}
}

// AccessToken handles POST /login/access-token. It takes an OAuth2 password
// grant form where username holds the email.
func (h *AuthHandler) AccessToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Invalid form data")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), username, password)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to generate authentication token", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTokenResponse(token))
}

// TestToken handles POST /login/test-token and echoes the current user.
func (h *AuthHandler) TestToken(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// PasswordRecovery handles POST /password-recovery/{email}.
func (h *AuthHandler) PasswordRecovery(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "email")
	if err := h.users.RecoverPassword(r.Context(), address); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Password recovery email sent"})
}

// ResetPassword handles POST /reset-password/.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req NewPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.users.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("password reset through recovery token")
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// PasswordRecoveryHTMLContent handles POST /password-recovery-html-content/{email}.
// It renders the recovery email without sending it and returns the subject
// in a header.
func (h *AuthHandler) PasswordRecoveryHTMLContent(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "email")
	msg, err := h.users.RecoveryEmail(r.Context(), address)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound,
				"The user with this username does not exist in the system.")
			return
		}
		HandleAPIError(w, r, err)
		return
	}

	w.Header().Set("subject", msg.Subject)
	shared.RespondWithHTML(w, r, http.StatusOK, msg.HTML)
}

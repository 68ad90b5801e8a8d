package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/service"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// healthCheckTimeout bounds the dependency ping of the health check.
const healthCheckTimeout = 2 * time.Second

// UtilsHandler handles the /utils endpoints.
type UtilsHandler struct {
	users  service.UserService
	db     Pinger
	logger *slog.Logger
}

// NewUtilsHandler creates a new UtilsHandler. db may be nil.
func NewUtilsHandler(users service.UserService, db Pinger, logger *slog.Logger) *UtilsHandler {
	return &UtilsHandler{
		users:  users,
		db:     db,
		logger: logger.With(slog.String("component", "utils_handler")),
	}
}

// TestEmail handles POST /utils/test-email/?email_to=.
func (h *UtilsHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("email_to")
	if err := shared.ValidateVar(to, "required,email"); err != nil {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, "Invalid email_to: invalid email format")
		return
	}

	if err := h.users.SendTestEmail(r.Context(), to); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, MessageResponse{Message: "Test email sent"})
}

// HealthCheck handles GET /utils/health-check/. It answers true, or 503 when
// the database does not respond.
func (h *UtilsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, true)
}

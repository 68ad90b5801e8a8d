package api

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/platform/logger"
	"github.com/phrazzld/stack-api/internal/service"
	"github.com/phrazzld/stack-api/internal/service/auth"
	"github.com/phrazzld/stack-api/internal/sso"
)

// SSOProvider runs the authorization code flow against an identity provider.
type SSOProvider interface {
	LoginURL(ctx context.Context, app, redirectURL string) (string, error)
	Callback(ctx context.Context, app string, p sso.CallbackParams) (*sso.Identity, error)
}

// tokenPage hands the access token to the window that opened the login popup.
var tokenPage = template.Must(template.New("token").Parse(`<html>
    <script>
        window.opener.postMessage({"access_token": {{.}}}, "*");
        window.close();
    </script>
</html>
`))

// SSOHandler serves the login and callback routes of each SSO app.
type SSOHandler struct {
	provider   SSOProvider
	users      service.UserService
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewSSOHandler creates a new SSOHandler.
func NewSSOHandler(
	provider SSOProvider,
	users service.UserService,
	jwtService auth.JWTService,
	logger *slog.Logger,
) *SSOHandler {
	return &SSOHandler{
		provider:   provider,
		users:      users,
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "sso_handler")),
	}
}

// Routes mounts login, login-html, callback and callback-html for each app.
func (h *SSOHandler) Routes(apps []string) func(chi.Router) {
	return func(r chi.Router) {
		for _, app := range apps {
			r.Route("/"+app, func(r chi.Router) {
				r.Get("/login", h.Login(app, false))
				r.Get("/login-html", h.Login(app, true))
				r.Get("/callback", h.Callback(app, false))
				r.Get("/callback-html", h.Callback(app, true))
			})
		}
	}
}

// callbackURL returns the absolute URL of the callback route matching the
// login route of r.
func callbackURL(r *http.Request, html bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	route := "callback"
	if html {
		route = "callback-html"
	}
	return scheme + "://" + r.Host + path.Join(path.Dir(r.URL.Path), route)
}

// Login redirects to the provider's authorize URL.
func (h *SSOHandler) Login(app string, html bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.provider.LoginURL(r.Context(), app, callbackURL(r, html))
		if err != nil {
			HandleAPIError(w, r, err)
			return
		}
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}

// Callback completes the login, creating the local user on first login, and
// returns an access token as JSON or as a postMessage page.
func (h *SSOHandler) Callback(app string, html bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContextOrDefault(r.Context(), h.logger)
		q := r.URL.Query()

		identity, err := h.provider.Callback(r.Context(), app, sso.CallbackParams{
			State:            q.Get("state"),
			Code:             q.Get("code"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
		})
		if err != nil {
			HandleAPIError(w, r, err)
			return
		}

		user, err := h.users.GetOrCreateSSOUser(r.Context(), identity.Email, identity.Provider, identity.Subject)
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
		log.Info("sso login", "app", app, "user_id", user.ID)

		if !html {
			shared.RespondWithJSON(w, r, http.StatusOK, newTokenResponse(token))
			return
		}
		var page strings.Builder
		if err := tokenPage.Execute(&page, token); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to render page", err)
			return
		}
		shared.RespondWithHTML(w, r, http.StatusOK, page.String())
	}
}

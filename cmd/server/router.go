package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/stack-api/internal/api"
	apiMiddleware "github.com/phrazzld/stack-api/internal/api/middleware"
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/v1"

// setupRouter builds the router with middleware and all API routes.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	if origins := app.config.Project.AllCORSOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{apiMiddleware.TraceIDHeader, "subject"},
			AllowCredentials: true,
			MaxAge:           600,
		}))
	}

	if app.config.Metrics.Enabled {
		r.Use(apiMiddleware.NewHTTPMetrics(app.registry).Handler)
		r.Method(http.MethodGet, app.config.Metrics.Path,
			promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))
	}

	// A nil *sql.DB must not become a non-nil Pinger.
	var db api.Pinger
	if app.db != nil {
		db = app.db
	}

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.userStore)
	authenticated := authMiddleware.Authenticate
	superuser := apiMiddleware.RequireSuperuser

	authHandler := api.NewAuthHandler(app.users, app.jwtService, app.logger)
	userHandler := api.NewUserHandler(app.users, app.logger)
	utilsHandler := api.NewUtilsHandler(app.users, db, app.logger)
	ssoHandler := api.NewSSOHandler(app.sso, app.users, app.jwtService, app.logger)
	taskHandler := api.NewTaskHandler(app.tasks, 0, app.logger)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login/access-token", authHandler.AccessToken)
			r.Post("/password-recovery/{email}", authHandler.PasswordRecovery)
			r.Post("/reset-password/", authHandler.ResetPassword)
			r.Route("/sso/fusionauth", ssoHandler.Routes(app.ssoApps))

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Post("/login/test-token", authHandler.TestToken)
				r.With(superuser).Post("/password-recovery-html-content/{email}",
					authHandler.PasswordRecoveryHTMLContent)
			})
		})

		r.Route("/sso/fusionauth", ssoHandler.Routes(app.ssoApps))

		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", userHandler.Signup)
			r.Post("/activate", userHandler.Activate)

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Get("/me", userHandler.Me)
				r.Patch("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)
				r.Patch("/me/password", userHandler.UpdatePassword)
				r.Get("/{id}", userHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(superuser)
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Patch("/{id}", userHandler.Update)
					r.Delete("/{id}", userHandler.Delete)
				})
			})
		})

		r.Route("/utils", func(r chi.Router) {
			r.Get("/health-check/", utilsHandler.HealthCheck)
			r.With(authenticated, superuser).Post("/test-email/", utilsHandler.TestEmail)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(authenticated, superuser)
			r.Post("/add", taskHandler.Add)
			r.Post("/add-wait", taskHandler.AddWait)
			r.Post("/multiply-wait", taskHandler.MultiplyWait)
			r.Post("/multiply-by-summation-wait", taskHandler.MultiplyBySummationWait)
			r.Post("/sample-normal-wait", taskHandler.SampleNormalWait)
		})
	})

	return r
}

package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestUser(email string, superuser bool) *domain.User {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: "hashed",
		IsActive:       true,
		IsSuperuser:    superuser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// route mounts h on a chi router so URL parameters resolve.
func route(method, pattern string, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	return r
}

// serve runs a request through h with user as the authenticated user.
func serve(t *testing.T, h http.Handler, method, target, body string, user *domain.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req = req.WithContext(shared.WithCurrentUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[shared.ErrorResponse](t, rec).Detail
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func record(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

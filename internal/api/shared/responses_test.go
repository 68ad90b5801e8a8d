package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDefaultLogger routes slog.Default to a JSON buffer for the test.
func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	original := slog.Default()
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(original) })
	return &buf
}

func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func tracedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(SetTraceID(req.Context()))
}

func TestRespondWithJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithJSON(rec, httptest.NewRequest(http.MethodGet, "/api/v1/utils/health-check/", nil), http.StatusOK, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "true\n", rec.Body.String())
}

func TestRespondWithJSON_UnencodableValue(t *testing.T) {
	buf := captureDefaultLogger(t)
	rec := httptest.NewRecorder()

	RespondWithJSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code, "status is written before encoding")
	assert.Equal(t, "failed to encode JSON response", lastLogEntry(t, buf)["msg"])
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		detail         string
		opts           []ResponseOption
		expectedHeader string
	}{
		{
			name:           "not authenticated",
			status:         http.StatusUnauthorized,
			detail:         "Not authenticated",
			opts:           []ResponseOption{WithHeader("WWW-Authenticate", "Bearer")},
			expectedHeader: "Bearer",
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			detail: "The user doesn't have enough privileges",
		},
		{
			name:   "incorrect login",
			status: http.StatusBadRequest,
			detail: "Incorrect email or password",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := tracedRequest(http.MethodPost, "/api/v1/auth/login/access-token")
			rec := httptest.NewRecorder()

			RespondWithError(rec, req, tc.status, tc.detail, tc.opts...)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.expectedHeader, rec.Header().Get("WWW-Authenticate"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.detail, body["detail"])
			assert.Equal(t, GetTraceID(req.Context()), body["trace_id"])
			assert.NotContains(t, body, "code", "status code stays out of the body")
		})
	}
}

func TestRespondWithError_WithoutTraceID(t *testing.T) {
	rec := httptest.NewRecorder()

	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "User not found")

	assert.JSONEq(t, `{"detail": "User not found"}`, rec.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	cause := errors.New("dial postgres://stack:s3cretpw@db:5432/app failed for admin@example.com")

	tests := []struct {
		name          string
		status        int
		opts          []ResponseOption
		expectedLevel string
	}{
		{"server error", http.StatusInternalServerError, nil, "ERROR"},
		{"bad gateway", http.StatusBadGateway, nil, "ERROR"},
		{"rate limited", http.StatusTooManyRequests, nil, "WARN"},
		{"client error", http.StatusForbidden, nil, "DEBUG"},
		{"elevated client error", http.StatusForbidden, []ResponseOption{WithElevatedLogLevel()}, "WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureDefaultLogger(t)
			req := tracedRequest(http.MethodPost, "/api/v1/tasks/add-wait")
			rec := httptest.NewRecorder()

			RespondWithErrorAndLog(rec, req, tc.status, "Task failed", cause, tc.opts...)

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"detail": "Task failed", "trace_id": "`+GetTraceID(req.Context())+`"}`, rec.Body.String())

			entry := lastLogEntry(t, buf)
			assert.Equal(t, tc.expectedLevel, entry["level"])
			assert.Equal(t, "API error response", entry["msg"])
			assert.Equal(t, float64(tc.status), entry["status_code"])
			assert.Equal(t, GetTraceID(req.Context()), entry["trace_id"])

			logged, _ := entry["error"].(string)
			assert.NotEmpty(t, logged)
			assert.NotContains(t, logged, "s3cretpw")
			assert.NotContains(t, logged, "admin@example.com")
			assert.NotContains(t, rec.Body.String(), "postgres://")
		})
	}
}

func TestRespondWithErrorAndLog_HeaderAndNilError(t *testing.T) {
	buf := captureDefaultLogger(t)
	rec := httptest.NewRecorder()

	RespondWithErrorAndLog(rec, tracedRequest(http.MethodGet, "/api/v1/users/me"),
		http.StatusUnauthorized, "Not authenticated", nil, WithHeader("WWW-Authenticate", "Bearer"))

	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.NotContains(t, lastLogEntry(t, buf), "error")
}

func TestRespondWithHTML(t *testing.T) {
	rec := httptest.NewRecorder()

	RespondWithHTML(rec, httptest.NewRequest(http.MethodPost, "/", nil), http.StatusOK, "<p>Reset your password</p>")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<p>Reset your password</p>", rec.Body.String())
}

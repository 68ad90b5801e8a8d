package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/email"
	"github.com/phrazzld/stack-api/internal/mocks"
	"github.com/phrazzld/stack-api/internal/service"
	"github.com/phrazzld/stack-api/internal/store"
)

func postForm(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login/access-token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthHandler_AccessToken(t *testing.T) {
	t.Parallel()

	user := newTestUser("user@example.com", false)

	tests := []struct {
		name           string
		form           url.Values
		authErr        error
		tokenErr       error
		expectedStatus int
		expectedDetail string
	}{
		{
			name:           "valid credentials",
			form:           url.Values{"username": {"user@example.com"}, "password": {"password123"}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "incorrect credentials",
			form:           url.Values{"username": {"user@example.com"}, "password": {"wrong"}},
			authErr:        service.ErrIncorrectCredentials,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Incorrect email or password",
		},
		{
			name:           "inactive user",
			form:           url.Values{"username": {"user@example.com"}, "password": {"password123"}},
			authErr:        service.ErrInactiveUser,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Inactive user",
		},
		{
			name:           "missing password",
			form:           url.Values{"username": {"user@example.com"}},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedDetail: "username and password are required",
		},
		{
			name:           "token generation failure",
			form:           url.Values{"username": {"user@example.com"}, "password": {"password123"}},
			tokenErr:       errors.New("signing failed"),
			expectedStatus: http.StatusInternalServerError,
			expectedDetail: "Failed to generate authentication token",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			users := &mocks.MockUserService{
				AuthenticateFn: func(ctx context.Context, email, password string) (*domain.User, error) {
					if tc.authErr != nil {
						return nil, tc.authErr
					}
					return user, nil
				},
			}
			jwtService := &mocks.MockJWTService{Token: "jwt-token", Err: tc.tokenErr}
			h := NewAuthHandler(users, jwtService, discardLogger)

			rec := postForm(http.HandlerFunc(h.AccessToken), tc.form)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedStatus == http.StatusOK {
				resp := decodeBody[TokenResponse](t, rec)
				assert.Equal(t, TokenResponse{AccessToken: "jwt-token", TokenType: "bearer"}, resp)
				return
			}
			assert.Equal(t, tc.expectedDetail, detail(t, rec))
		})
	}
}

func TestAuthHandler_TestToken(t *testing.T) {
	t.Parallel()

	user := newTestUser("user@example.com", false)
	user.FullName = "Jane Doe"
	h := NewAuthHandler(&mocks.MockUserService{}, &mocks.MockJWTService{}, discardLogger)

	rec := serve(t, http.HandlerFunc(h.TestToken), http.MethodPost, "/login/test-token", "", user)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[UserPublic](t, rec)
	assert.Equal(t, user.ID, resp.ID)
	assert.Equal(t, "user@example.com", resp.Email)
	if assert.NotNil(t, resp.FullName) {
		assert.Equal(t, "Jane Doe", *resp.FullName)
	}
	assert.Nil(t, resp.SSOProvider)

	rec = serve(t, http.HandlerFunc(h.TestToken), http.MethodPost, "/login/test-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_PasswordRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "email sent",
			expectedStatus: http.StatusOK,
			expectedBody:   "Password recovery email sent",
		},
		{
			name:           "unknown email",
			err:            fmt.Errorf("failed to retrieve user by email: %w", store.ErrUserNotFound),
			expectedStatus: http.StatusNotFound,
			expectedBody:   "The user with this email does not exist in the system.",
		},
		{
			name:           "emails disabled",
			err:            fmt.Errorf("failed to send password recovery email: %w", email.ErrEmailsDisabled),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "Emails are not enabled on this server",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got string
			users := &mocks.MockUserService{
				RecoverPasswordFn: func(ctx context.Context, address string) error {
					got = address
					return tc.err
				},
			}
			h := NewAuthHandler(users, &mocks.MockJWTService{}, discardLogger)
			router := route(http.MethodPost, "/password-recovery/{email}", h.PasswordRecovery)

			rec := serve(t, router, http.MethodPost, "/password-recovery/user@example.com", "", nil)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, "user@example.com", got)
			if tc.err == nil {
				assert.Equal(t, tc.expectedBody, decodeBody[MessageResponse](t, rec).Message)
			} else {
				assert.Equal(t, tc.expectedBody, detail(t, rec))
			}
		})
	}
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedDetail string
	}{
		{
			name:           "password reset",
			body:           `{"token": "tok", "new_password": "newpassword"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid token",
			body:           `{"token": "tok", "new_password": "newpassword"}`,
			err:            service.ErrInvalidToken,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Invalid token",
		},
		{
			name:           "unknown user",
			body:           `{"token": "tok", "new_password": "newpassword"}`,
			err:            fmt.Errorf("failed to retrieve user for password reset: %w", store.ErrUserNotFound),
			expectedStatus: http.StatusNotFound,
			expectedDetail: "The user with this email does not exist in the system.",
		},
		{
			name:           "inactive user",
			body:           `{"token": "tok", "new_password": "newpassword"}`,
			err:            service.ErrInactiveUser,
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Inactive user",
		},
		{
			name:           "password too short",
			body:           `{"token": "tok", "new_password": "short"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedDetail: "Invalid new_password: too short",
		},
		{
			name:           "missing token",
			body:           `{"new_password": "newpassword"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedDetail: "Invalid token: required field",
		},
		{
			name:           "empty body",
			body:           "",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedDetail: "Request body is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			users := &mocks.MockUserService{
				ResetPasswordFn: func(ctx context.Context, token, newPassword string) error {
					assert.Equal(t, "tok", token)
					assert.Equal(t, "newpassword", newPassword)
					return tc.err
				},
			}
			h := NewAuthHandler(users, &mocks.MockJWTService{}, discardLogger)

			rec := serve(t, http.HandlerFunc(h.ResetPassword), http.MethodPost, "/reset-password/", tc.body, nil)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedStatus == http.StatusOK {
				assert.Equal(t, "Password updated successfully", decodeBody[MessageResponse](t, rec).Message)
				return
			}
			assert.Equal(t, tc.expectedDetail, detail(t, rec))
		})
	}
}

func TestAuthHandler_PasswordRecoveryHTMLContent(t *testing.T) {
	t.Parallel()

	msg := email.Message{
		To:      "user@example.com",
		Subject: "Stack - Password recovery for user user@example.com",
		HTML:    "<p>reset</p>",
	}
	users := &mocks.MockUserService{
		RecoveryEmailFn: func(ctx context.Context, address string) (email.Message, error) {
			if address != msg.To {
				return email.Message{}, fmt.Errorf("lookup: %w", store.ErrUserNotFound)
			}
			return msg, nil
		},
	}
	h := NewAuthHandler(users, &mocks.MockJWTService{}, discardLogger)
	router := route(http.MethodPost, "/password-recovery-html-content/{email}", h.PasswordRecoveryHTMLContent)
	admin := newTestUser("admin@example.com", true)

	rec := serve(t, router, http.MethodPost, "/password-recovery-html-content/user@example.com", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msg.Subject, rec.Header().Get("subject"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, msg.HTML, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/password-recovery-html-content/nobody@example.com", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "The user with this username does not exist in the system.", detail(t, rec))
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stack-api/internal/config"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestJWTService(t *testing.T, secret string, lifetime time.Duration, now time.Time) *hmacJWTService {
	t.Helper()
	svc, err := newHMACJWTService(secret, lifetime, func() time.Time { return now })
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.AuthConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     config.AuthConfig{SecretKey: testSecret, AccessTokenLifetime: time.Hour},
			wantErr: false,
		},
		{
			name:    "short secret",
			cfg:     config.AuthConfig{SecretKey: "short", AccessTokenLifetime: time.Hour},
			wantErr: true,
		},
		{
			name:    "zero lifetime",
			cfg:     config.AuthConfig{SecretKey: testSecret},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, err := NewJWTService(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	lifetime := 8 * 24 * time.Hour
	userID := uuid.New()
	svc := newTestJWTService(t, testSecret, lifetime, fixedTime)

	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(lifetime).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	lifetime := 60 * time.Minute
	wrongSecret := "wrong-secret-that-is-long-enough-for-testing"
	userID := uuid.New()

	sign := func(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key any) string {
		t.Helper()
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) (JWTService, string)
		wantErr   error
	}{
		{
			name: "valid token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestJWTService(t, testSecret, lifetime, fixedTime)
				token, _ := svc.GenerateToken(context.Background(), userID)
				return svc, token
			},
		},
		{
			name: "within clock skew after expiry",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestJWTService(t, testSecret, lifetime, fixedTime)
				token, _ := gen.GenerateToken(context.Background(), userID)
				return newTestJWTService(t, testSecret, lifetime, fixedTime.Add(lifetime+time.Minute)), token
			},
		},
		{
			name: "expired token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestJWTService(t, testSecret, lifetime, fixedTime)
				token, _ := gen.GenerateToken(context.Background(), userID)
				return newTestJWTService(t, testSecret, lifetime, fixedTime.Add(lifetime+time.Hour)), token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "not yet valid",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := sign(t, jwt.RegisteredClaims{
					Subject:   userID.String(),
					NotBefore: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(2 * time.Hour)),
				}, jwt.SigningMethodHS256, []byte(testSecret))
				return newTestJWTService(t, testSecret, lifetime, fixedTime), token
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "invalid signature",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestJWTService(t, testSecret, lifetime, fixedTime)
				token, _ := gen.GenerateToken(context.Background(), userID)
				return newTestJWTService(t, wrongSecret, lifetime, fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "malformed token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				return newTestJWTService(t, testSecret, lifetime, fixedTime), "this.is.not.a.valid.jwt.token"
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing expiry",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := sign(t, jwt.RegisteredClaims{Subject: userID.String()},
					jwt.SigningMethodHS256, []byte(testSecret))
				return newTestJWTService(t, testSecret, lifetime, fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "subject is not a uuid",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := sign(t, jwt.RegisteredClaims{
					Subject:   "someone@example.com",
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
				}, jwt.SigningMethodHS256, []byte(testSecret))
				return newTestJWTService(t, testSecret, lifetime, fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "none algorithm",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := sign(t, jwt.RegisteredClaims{
					Subject:   userID.String(),
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
				}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)
				return newTestJWTService(t, testSecret, lifetime, fixedTime), token
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc(t)
			claims, err := svc.ValidateToken(context.Background(), token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerificationTokens(t *testing.T, now time.Time) *VerificationTokens {
	t.Helper()
	v, err := NewVerificationTokens(testSecret, 30*time.Minute)
	require.NoError(t, err)
	v.timeFunc = func() time.Time { return now }
	return v
}

func TestNewVerificationTokens(t *testing.T) {
	t.Parallel()

	_, err := NewVerificationTokens("short", time.Minute)
	assert.Error(t, err)

	_, err = NewVerificationTokens(testSecret, 0)
	assert.Error(t, err)

	v, err := NewVerificationTokens(testSecret, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, v.Lifetime())
}

func TestVerificationTokens(t *testing.T) {
	t.Parallel()

	issued := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	email := "user@example.com"

	token, err := newTestVerificationTokens(t, issued).Generate(email)
	require.NoError(t, err)

	signed := func(t *testing.T, claims jwt.RegisteredClaims, key string) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name        string
		token       string
		at          time.Time
		wantEmail   string
		wantExpired bool
		wantErr     error
	}{
		{
			name:      "valid",
			token:     token,
			at:        issued.Add(10 * time.Minute),
			wantEmail: email,
		},
		{
			name:        "expired still decoded",
			token:       token,
			at:          issued.Add(2 * time.Hour),
			wantEmail:   email,
			wantExpired: true,
		},
		{
			name:    "wrong secret",
			token:   signed(t, jwt.RegisteredClaims{Subject: email, NotBefore: jwt.NewNumericDate(issued), ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour))}, "another-secret-that-is-long-enough-too"),
			at:      issued,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "expired with wrong secret",
			token:   signed(t, jwt.RegisteredClaims{Subject: email, NotBefore: jwt.NewNumericDate(issued), ExpiresAt: jwt.NewNumericDate(issued.Add(time.Minute))}, "another-secret-that-is-long-enough-too"),
			at:      issued.Add(time.Hour),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing nbf",
			token:   signed(t, jwt.RegisteredClaims{Subject: email, ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour))}, testSecret),
			at:      issued,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "expired and missing nbf",
			token:   signed(t, jwt.RegisteredClaims{Subject: email, ExpiresAt: jwt.NewNumericDate(issued.Add(time.Minute))}, testSecret),
			at:      issued.Add(time.Hour),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing exp",
			token:   signed(t, jwt.RegisteredClaims{Subject: email, NotBefore: jwt.NewNumericDate(issued)}, testSecret),
			at:      issued,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "not yet valid",
			token:   token,
			at:      issued.Add(-time.Hour),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not-a-token",
			at:      issued,
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := newTestVerificationTokens(t, tt.at)

			gotEmail, expired, err := v.Verify(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, gotEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, gotEmail)
			assert.Equal(t, tt.wantExpired, expired)
		})
	}
}

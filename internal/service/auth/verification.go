package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// errMissingNotBefore marks verification tokens issued without an nbf claim.
var errMissingNotBefore = errors.New("nbf claim is required")

// VerificationTokens signs the short-lived tokens mailed for account
// activation and password recovery. The subject is the email address.
type VerificationTokens struct {
	signingKey []byte
	lifetime   time.Duration
	timeFunc   func() time.Time
}

// verificationClaims requires nbf on top of the registered claim checks.
type verificationClaims struct {
	jwt.RegisteredClaims
}

func (c verificationClaims) Validate() error {
	if c.NotBefore == nil {
		return errMissingNotBefore
	}
	return nil
}

// NewVerificationTokens creates a token issuer sharing the access token secret.
func NewVerificationTokens(secret string, lifetime time.Duration) (*VerificationTokens, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("verification token lifetime must be positive, got %s", lifetime)
	}
	return &VerificationTokens{
		signingKey: []byte(secret),
		lifetime:   lifetime,
		timeFunc:   time.Now,
	}, nil
}

// Lifetime returns how long issued tokens stay valid.
func (v *VerificationTokens) Lifetime() time.Duration {
	return v.lifetime
}

// Generate returns a token for email valid from now until now + lifetime.
func (v *VerificationTokens) Generate(email string) (string, error) {
	now := v.timeFunc()
	claims := verificationClaims{jwt.RegisteredClaims{
		Subject:   email,
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.lifetime)),
	}}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}
	return signed, nil
}

// Verify returns the email a token was issued for. A token whose only defect
// is its expiry is still decoded and reported with expired set. Any other
// failure returns ErrInvalidToken.
func (v *VerificationTokens) Verify(token string) (email string, expired bool, err error) {
	claims := &verificationClaims{}
	_, err = jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.timeFunc),
	)
	if err == nil {
		return claims.Subject, false, nil
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return "", false, ErrInvalidToken
	}

	// Expired: decode again without time checks, keeping nbf enforced.
	claims = &verificationClaims{}
	if _, err = jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return "", false, ErrInvalidToken
	}
	if claims.Validate() != nil || claims.NotBefore.After(v.timeFunc()) {
		return "", false, ErrInvalidToken
	}
	return claims.Subject, true, nil
}

func (v *VerificationTokens) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.signingKey, nil
}

package mocks

import "errors"

// ErrPasswordMismatch is returned by MockPasswordVerifier on a failed comparison.
var ErrPasswordMismatch = errors.New("password mismatch")

// MockPasswordVerifier implements auth.PasswordVerifier against the hashes
// produced by MockUserStore.
type MockPasswordVerifier struct {
	CompareFn func(hashedPassword, password string) error

	// CompareCallCount tracks how many times Compare was called
	CompareCallCount int
}

// Compare implements the auth.PasswordVerifier interface
func (m *MockPasswordVerifier) Compare(hashedPassword, password string) error {
	m.CompareCallCount++
	if m.CompareFn != nil {
		return m.CompareFn(hashedPassword, password)
	}
	if hashedPassword != HashedPasswordFor(password) {
		return ErrPasswordMismatch
	}
	return nil
}

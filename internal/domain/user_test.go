package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	user, err := NewUser("  Test@Example.com ", "password123")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "password123", user.Password)
	assert.False(t, user.IsActive, "new users start inactive")
	assert.False(t, user.IsSuperuser)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestNewUserErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"empty email", "", "password123", ErrEmptyEmail},
		{"invalid email", "invalidemail", "password123", ErrInvalidEmail},
		{"missing domain", "user@", "password123", ErrInvalidEmail},
		{"empty password", "user@example.com", "", ErrEmptyHashedPassword},
		{"short password", "user@example.com", "short", ErrPasswordTooShort},
		{"long password", "user@example.com", strings.Repeat("a", 73), ErrPasswordTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewUser(tc.email, tc.password)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestUserValidate(t *testing.T) {
	t.Parallel()

	valid := User{
		ID:             uuid.New(),
		Email:          "valid@example.com",
		HashedPassword: "$2a$10$abcdefghijklmnopqrstuv",
	}
	require.NoError(t, valid.Validate())

	noID := valid
	noID.ID = uuid.Nil
	assert.ErrorIs(t, noID.Validate(), ErrEmptyUserID)

	longName := valid
	longName.FullName = strings.Repeat("n", 256)
	assert.ErrorIs(t, longName.Validate(), ErrFullNameTooLong)

	withPassword := valid
	withPassword.Password = "short"
	assert.ErrorIs(t, withPassword.Validate(), ErrPasswordTooShort)
}

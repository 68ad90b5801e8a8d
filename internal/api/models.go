package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/stack-api/internal/domain"
)

// TokenResponse is returned by the login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func newTokenResponse(token string) TokenResponse {
	return TokenResponse{AccessToken: token, TokenType: "bearer"}
}

// MessageResponse is the generic {"message": ...} body.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewPasswordRequest is the body of the reset-password endpoint.
type NewPasswordRequest struct {
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ActivateRequest is the body of the activation endpoint.
type ActivateRequest struct {
	Token string `json:"token" validate:"required"`
}

// UserPublic is the public representation of a user.
type UserPublic struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	SSOProvider *string   `json:"sso_provider"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsersPublic is a page of users with the total count.
type UsersPublic struct {
	Data  []UserPublic `json:"data"`
	Count int          `json:"count"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func userToPublic(u *domain.User) UserPublic {
	return UserPublic{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    optional(u.FullName),
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		SSOProvider: optional(u.SSOProvider),
		CreatedAt:   u.CreatedAt,
	}
}

// UserCreateRequest is the body of the superuser create endpoint.
type UserCreateRequest struct {
	Email       string `json:"email"        validate:"required,email,max=255"`
	Password    string `json:"password"     validate:"required,min=8,max=72"`
	FullName    string `json:"full_name"    validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

// UserRegisterRequest is the body of the signup endpoint.
type UserRegisterRequest struct {
	Email    string `json:"email"     validate:"required,email,max=255"`
	Password string `json:"password"  validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=255"`
}

// UserUpdateRequest is the body of the superuser update endpoint. Omitted
// fields are left unchanged.
type UserUpdateRequest struct {
	Email       *string `json:"email"        validate:"omitempty,email,max=255"`
	Password    *string `json:"password"     validate:"omitempty,min=8,max=72"`
	FullName    *string `json:"full_name"    validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// UserUpdateMeRequest is the body of PATCH /users/me.
type UserUpdateMeRequest struct {
	Email    *string `json:"email"     validate:"omitempty,email,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
}

// UpdatePasswordRequest is the body of PATCH /users/me/password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,min=8,max=72"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
}

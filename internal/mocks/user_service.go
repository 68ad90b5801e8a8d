package mocks

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/email"
	"github.com/phrazzld/stack-api/internal/service"
)

// ErrNotConfigured is returned by MockUserService methods without a Fn.
var ErrNotConfigured = errors.New("mock function not configured")

// MockUserService implements service.UserService with overridable functions.
type MockUserService struct {
	AuthenticateFn       func(ctx context.Context, email, password string) (*domain.User, error)
	RegisterFn           func(ctx context.Context, in service.UserCreate) (*domain.User, error)
	ActivateFn           func(ctx context.Context, token string) (*domain.User, error)
	CreateUserFn         func(ctx context.Context, in service.UserCreate) (*domain.User, error)
	GetUserFn            func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsersFn          func(ctx context.Context, skip, limit int) ([]*domain.User, int, error)
	UpdateMeFn           func(ctx context.Context, userID uuid.UUID, in service.UserUpdateMe) (*domain.User, error)
	UpdatePasswordFn     func(ctx context.Context, userID uuid.UUID, current, next string) error
	UpdateUserFn         func(ctx context.Context, userID uuid.UUID, in service.UserUpdate) (*domain.User, error)
	DeleteMeFn           func(ctx context.Context, current *domain.User) error
	DeleteUserFn         func(ctx context.Context, current *domain.User, userID uuid.UUID) error
	RecoverPasswordFn    func(ctx context.Context, address string) error
	RecoveryEmailFn      func(ctx context.Context, address string) (email.Message, error)
	ResetPasswordFn      func(ctx context.Context, token, newPassword string) error
	SendTestEmailFn      func(ctx context.Context, to string) error
	EnsureSuperuserFn    func(ctx context.Context, address, password string) (*domain.User, error)
	GetOrCreateSSOUserFn func(ctx context.Context, address, provider, openID string) (*domain.User, error)
}

var _ service.UserService = (*MockUserService)(nil)

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if m.AuthenticateFn != nil {
		return m.AuthenticateFn(ctx, email, password)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) Register(ctx context.Context, in service.UserCreate) (*domain.User, error) {
	if m.RegisterFn != nil {
		return m.RegisterFn(ctx, in)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) Activate(ctx context.Context, token string) (*domain.User, error) {
	if m.ActivateFn != nil {
		return m.ActivateFn(ctx, token)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) CreateUser(ctx context.Context, in service.UserCreate) (*domain.User, error) {
	if m.CreateUserFn != nil {
		return m.CreateUserFn(ctx, in)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if m.GetUserFn != nil {
		return m.GetUserFn(ctx, userID)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) ListUsers(ctx context.Context, skip, limit int) ([]*domain.User, int, error) {
	if m.ListUsersFn != nil {
		return m.ListUsersFn(ctx, skip, limit)
	}
	return nil, 0, ErrNotConfigured
}

func (m *MockUserService) UpdateMe(ctx context.Context, userID uuid.UUID, in service.UserUpdateMe) (*domain.User, error) {
	if m.UpdateMeFn != nil {
		return m.UpdateMeFn(ctx, userID, in)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) UpdatePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if m.UpdatePasswordFn != nil {
		return m.UpdatePasswordFn(ctx, userID, current, next)
	}
	return ErrNotConfigured
}

func (m *MockUserService) UpdateUser(ctx context.Context, userID uuid.UUID, in service.UserUpdate) (*domain.User, error) {
	if m.UpdateUserFn != nil {
		return m.UpdateUserFn(ctx, userID, in)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) DeleteMe(ctx context.Context, current *domain.User) error {
	if m.DeleteMeFn != nil {
		return m.DeleteMeFn(ctx, current)
	}
	return ErrNotConfigured
}

func (m *MockUserService) DeleteUser(ctx context.Context, current *domain.User, userID uuid.UUID) error {
	if m.DeleteUserFn != nil {
		return m.DeleteUserFn(ctx, current, userID)
	}
	return ErrNotConfigured
}

func (m *MockUserService) RecoverPassword(ctx context.Context, address string) error {
	if m.RecoverPasswordFn != nil {
		return m.RecoverPasswordFn(ctx, address)
	}
	return ErrNotConfigured
}

func (m *MockUserService) RecoveryEmail(ctx context.Context, address string) (email.Message, error) {
	if m.RecoveryEmailFn != nil {
		return m.RecoveryEmailFn(ctx, address)
	}
	return email.Message{}, ErrNotConfigured
}

func (m *MockUserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFn != nil {
		return m.ResetPasswordFn(ctx, token, newPassword)
	}
	return ErrNotConfigured
}

func (m *MockUserService) SendTestEmail(ctx context.Context, to string) error {
	if m.SendTestEmailFn != nil {
		return m.SendTestEmailFn(ctx, to)
	}
	return ErrNotConfigured
}

func (m *MockUserService) EnsureSuperuser(ctx context.Context, address, password string) (*domain.User, error) {
	if m.EnsureSuperuserFn != nil {
		return m.EnsureSuperuserFn(ctx, address, password)
	}
	return nil, ErrNotConfigured
}

func (m *MockUserService) GetOrCreateSSOUser(ctx context.Context, address, provider, openID string) (*domain.User, error) {
	if m.GetOrCreateSSOUserFn != nil {
		return m.GetOrCreateSSOUserFn(ctx, address, provider, openID)
	}
	return nil, ErrNotConfigured
}

package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/email"
	"github.com/phrazzld/stack-api/internal/service/auth"
	"github.com/phrazzld/stack-api/internal/store"
)

// VerificationTokens issues and checks the tokens mailed for activation and
// password recovery.
type VerificationTokens interface {
	Generate(email string) (string, error)
	Verify(token string) (address string, expired bool, err error)
	Lifetime() time.Duration
}

// UserCreate is the input of CreateUser and Register.
type UserCreate struct {
	Email       string
	Password    string
	FullName    string
	IsActive    bool
	IsSuperuser bool
}

// UserUpdate carries the fields a superuser may change. Nil fields are left
// untouched.
type UserUpdate struct {
	Email       *string
	Password    *string
	FullName    *string
	IsActive    *bool
	IsSuperuser *bool
}

// UserUpdateMe carries the profile fields users may change themselves.
type UserUpdateMe struct {
	Email    *string
	FullName *string
}

// UserService provides the account use cases.
type UserService interface {
	// Authenticate checks an email and password pair and returns the active user.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)

	// Register creates an inactive account and mails an activation link.
	Register(ctx context.Context, in UserCreate) (*domain.User, error)

	// Activate activates the account a verification token was issued for.
	Activate(ctx context.Context, token string) (*domain.User, error)

	// CreateUser creates an account on behalf of a superuser.
	CreateUser(ctx context.Context, in UserCreate) (*domain.User, error)

	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// ListUsers returns a page of users and the total count.
	ListUsers(ctx context.Context, skip, limit int) ([]*domain.User, int, error)

	// UpdateMe changes the caller's own profile.
	UpdateMe(ctx context.Context, userID uuid.UUID, in UserUpdateMe) (*domain.User, error)

	// UpdatePassword changes the caller's password after checking the current one.
	UpdatePassword(ctx context.Context, userID uuid.UUID, current, next string) error

	// UpdateUser changes any account field on behalf of a superuser.
	UpdateUser(ctx context.Context, userID uuid.UUID, in UserUpdate) (*domain.User, error)

	// DeleteMe deletes the caller's own account.
	DeleteMe(ctx context.Context, current *domain.User) error

	// DeleteUser deletes an account on behalf of a superuser.
	DeleteUser(ctx context.Context, current *domain.User, userID uuid.UUID) error

	// RecoverPassword mails a password reset link to the account owner.
	RecoverPassword(ctx context.Context, address string) error

	// RecoveryEmail renders the reset email without sending it.
	RecoveryEmail(ctx context.Context, address string) (email.Message, error)

	// ResetPassword sets a new password using a reset token.
	ResetPassword(ctx context.Context, token, newPassword string) error

	// SendTestEmail mails the test template to an address.
	SendTestEmail(ctx context.Context, to string) error

	// EnsureSuperuser creates the first superuser when it does not exist yet.
	EnsureSuperuser(ctx context.Context, address, password string) (*domain.User, error)

	// GetOrCreateSSOUser returns the account for an SSO identity, creating an
	// active account with a random password on first login.
	GetOrCreateSSOUser(ctx context.Context, address, provider, openID string) (*domain.User, error)
}

// UserServiceDeps groups the collaborators of the user service.
type UserServiceDeps struct {
	Users            store.UserStore
	DB               *sql.DB
	Passwords        auth.PasswordVerifier
	Tokens           VerificationTokens
	Emails           *email.Composer
	Sender           email.Sender
	OpenRegistration bool
	Logger           *slog.Logger
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	users            store.UserStore
	db               *sql.DB
	passwords        auth.PasswordVerifier
	tokens           VerificationTokens
	emails           *email.Composer
	sender           email.Sender
	openRegistration bool
	logger           *slog.Logger
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService
func NewUserService(deps UserServiceDeps) (*UserServiceImpl, error) {
	switch {
	case deps.Users == nil:
		return nil, fmt.Errorf("user store cannot be nil")
	case deps.DB == nil:
		return nil, fmt.Errorf("database cannot be nil")
	case deps.Passwords == nil:
		return nil, fmt.Errorf("password verifier cannot be nil")
	case deps.Tokens == nil:
		return nil, fmt.Errorf("verification tokens cannot be nil")
	case deps.Emails == nil || deps.Sender == nil:
		return nil, fmt.Errorf("email composer and sender cannot be nil")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &UserServiceImpl{
		users:            deps.Users,
		db:               deps.DB,
		passwords:        deps.Passwords,
		tokens:           deps.Tokens,
		emails:           deps.Emails,
		sender:           deps.Sender,
		openRegistration: deps.OpenRegistration,
		logger:           deps.Logger.With("component", "user_service"),
	}, nil
}

// Authenticate implements UserService.Authenticate
func (s *UserServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrIncorrectCredentials
		}
		return nil, fmt.Errorf("failed to retrieve user by email: %w", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		s.logger.Debug("password comparison failed", "user_id", user.ID)
		return nil, ErrIncorrectCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// Register implements UserService.Register. The account is inactive until
// the link in the verification email is followed.
func (s *UserServiceImpl) Register(ctx context.Context, in UserCreate) (*domain.User, error) {
	if !s.openRegistration {
		return nil, ErrRegistrationClosed
	}

	user, err := s.create(ctx, UserCreate{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sendActivation(ctx, user); err != nil {
		s.logger.Error("failed to send activation email",
			"error", err,
			"user_id", user.ID)
	}
	return user, nil
}

// sendActivation mails a fresh activation token. It is a no-op when emails
// are disabled.
func (s *UserServiceImpl) sendActivation(ctx context.Context, user *domain.User) error {
	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return err
	}
	msg, err := s.emails.AccountVerification(user.Email, token, s.tokens.Lifetime())
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// send delivers msg, treating disabled email as success.
func (s *UserServiceImpl) send(ctx context.Context, msg email.Message) error {
	err := s.sender.Send(ctx, msg)
	if errors.Is(err, email.ErrEmailsDisabled) {
		s.logger.Debug("emails disabled, message dropped", "subject", msg.Subject)
		return nil
	}
	return err
}

// Activate implements UserService.Activate. An expired token for an
// inactive account triggers a new activation email.
func (s *UserServiceImpl) Activate(ctx context.Context, token string) (*domain.User, error) {
	address, expired, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var activated, resend *domain.User
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.users.WithTx(tx)

		user, err := txStore.GetByEmail(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to retrieve user for activation: %w", err)
		}
		if user.IsActive {
			activated = user
			return nil
		}
		if expired {
			resend = user
			return ErrActivationExpired
		}

		user.IsActive = true
		if err := txStore.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to activate user: %w", err)
		}
		activated = user
		return nil
	})
	if errors.Is(err, ErrActivationExpired) && resend != nil {
		if sendErr := s.sendActivation(ctx, resend); sendErr != nil {
			return nil, fmt.Errorf("%w: failed to resend activation email: %v", ErrActivationExpired, sendErr)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user activated", "user_id", activated.ID)
	return activated, nil
}

// CreateUser implements UserService.CreateUser
func (s *UserServiceImpl) CreateUser(ctx context.Context, in UserCreate) (*domain.User, error) {
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	msg, err := s.emails.NewAccount(user.Email, user.Email)
	if err == nil {
		err = s.send(ctx, msg)
	}
	if err != nil {
		s.logger.Error("failed to send new account email",
			"error", err,
			"user_id", user.ID)
	}
	return user, nil
}

func (s *UserServiceImpl) create(ctx context.Context, in UserCreate) (*domain.User, error) {
	return s.createWith(ctx, s.users, in, "", "")
}

func (s *UserServiceImpl) createWith(
	ctx context.Context,
	users store.UserStore,
	in UserCreate,
	ssoProvider, ssoOpenID string,
) (*domain.User, error) {
	user, err := domain.NewUser(in.Email, in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.FullName = in.FullName
	user.IsActive = in.IsActive
	user.IsSuperuser = in.IsSuperuser
	user.SSOProvider = ssoProvider
	user.SSOOpenID = ssoOpenID

	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.logger.Debug("attempted to create user with existing email")
		} else {
			s.logger.Error("failed to save user to database", "error", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created",
		"user_id", user.ID,
		"is_superuser", user.IsSuperuser)
	return user, nil
}

// GetUser implements UserService.GetUser
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// ListUsers implements UserService.ListUsers
func (s *UserServiceImpl) ListUsers(ctx context.Context, skip, limit int) ([]*domain.User, int, error) {
	users, err := s.users.List(ctx, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return users, count, nil
}

// modify loads a user inside a transaction, applies fn and saves the result.
func (s *UserServiceImpl) modify(
	ctx context.Context,
	userID uuid.UUID,
	fn func(user *domain.User) error,
) (*domain.User, error) {
	var updated *domain.User
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.users.WithTx(tx)

		user, err := txStore.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to retrieve user for update: %w", err)
		}
		if err := fn(user); err != nil {
			return err
		}
		if err := txStore.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateMe implements UserService.UpdateMe
func (s *UserServiceImpl) UpdateMe(ctx context.Context, userID uuid.UUID, in UserUpdateMe) (*domain.User, error) {
	return s.modify(ctx, userID, func(user *domain.User) error {
		if in.Email != nil {
			user.Email = domain.NormalizeEmail(*in.Email)
		}
		if in.FullName != nil {
			user.FullName = *in.FullName
		}
		return nil
	})
}

// UpdatePassword implements UserService.UpdatePassword
func (s *UserServiceImpl) UpdatePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	_, err := s.modify(ctx, userID, func(user *domain.User) error {
		if err := s.passwords.Compare(user.HashedPassword, current); err != nil {
			return ErrIncorrectPassword
		}
		if current == next {
			return ErrSamePassword
		}
		if err := domain.ValidatePassword(next); err != nil {
			return err
		}
		user.Password = next
		return nil
	})
	if err == nil {
		s.logger.Info("user password updated", "user_id", userID)
	}
	return err
}

// UpdateUser implements UserService.UpdateUser
func (s *UserServiceImpl) UpdateUser(ctx context.Context, userID uuid.UUID, in UserUpdate) (*domain.User, error) {
	return s.modify(ctx, userID, func(user *domain.User) error {
		if in.Email != nil {
			user.Email = domain.NormalizeEmail(*in.Email)
		}
		if in.FullName != nil {
			user.FullName = *in.FullName
		}
		if in.Password != nil {
			user.Password = *in.Password
		}
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}
		if in.IsSuperuser != nil {
			user.IsSuperuser = *in.IsSuperuser
		}
		return nil
	})
}

// DeleteMe implements UserService.DeleteMe
func (s *UserServiceImpl) DeleteMe(ctx context.Context, current *domain.User) error {
	if current.IsSuperuser {
		return ErrSuperuserSelfDelete
	}
	return s.delete(ctx, current.ID)
}

// DeleteUser implements UserService.DeleteUser
func (s *UserServiceImpl) DeleteUser(ctx context.Context, current *domain.User, userID uuid.UUID) error {
	if current.ID == userID {
		return ErrSuperuserSelfDelete
	}
	return s.delete(ctx, userID)
}

func (s *UserServiceImpl) delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

// RecoveryEmail implements UserService.RecoveryEmail
func (s *UserServiceImpl) RecoveryEmail(ctx context.Context, address string) (email.Message, error) {
	user, err := s.users.GetByEmail(ctx, address)
	if err != nil {
		return email.Message{}, fmt.Errorf("failed to retrieve user by email: %w", err)
	}

	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		return email.Message{}, fmt.Errorf("failed to generate reset token: %w", err)
	}
	return s.emails.ResetPassword(user.Email, user.Email, token, s.tokens.Lifetime())
}

// RecoverPassword implements UserService.RecoverPassword. Unlike the
// activation flow, a disabled mailer is reported to the caller.
func (s *UserServiceImpl) RecoverPassword(ctx context.Context, address string) error {
	msg, err := s.RecoveryEmail(ctx, address)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send password recovery email: %w", err)
	}
	return nil
}

// ResetPassword implements UserService.ResetPassword. Expired tokens are
// rejected.
func (s *UserServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	address, expired, err := s.tokens.Verify(token)
	if err != nil || expired {
		return ErrInvalidToken
	}
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.users.WithTx(tx)

		user, err := txStore.GetByEmail(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to retrieve user for password reset: %w", err)
		}
		if !user.IsActive {
			return ErrInactiveUser
		}
		user.Password = newPassword
		if err := txStore.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		s.logger.Info("user password reset", "user_id", user.ID)
		return nil
	})
}

// SendTestEmail implements UserService.SendTestEmail
func (s *UserServiceImpl) SendTestEmail(ctx context.Context, to string) error {
	msg, err := s.emails.TestEmail(to)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send test email: %w", err)
	}
	return nil
}

// EnsureSuperuser implements UserService.EnsureSuperuser
func (s *UserServiceImpl) EnsureSuperuser(ctx context.Context, address, password string) (*domain.User, error) {
	var user *domain.User
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.users.WithTx(tx)

		existing, err := txStore.GetByEmail(ctx, address)
		if err == nil {
			user = existing
			return nil
		}
		if !store.IsNotFoundError(err) {
			return fmt.Errorf("failed to look up superuser: %w", err)
		}

		user, err = s.createWith(ctx, txStore, UserCreate{
			Email:       address,
			Password:    password,
			IsActive:    true,
			IsSuperuser: true,
		}, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetOrCreateSSOUser implements UserService.GetOrCreateSSOUser
func (s *UserServiceImpl) GetOrCreateSSOUser(
	ctx context.Context,
	address, provider, openID string,
) (*domain.User, error) {
	var user *domain.User
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.users.WithTx(tx)

		existing, err := txStore.GetByEmail(ctx, address)
		if err == nil {
			user = existing
			return nil
		}
		if !store.IsNotFoundError(err) {
			return fmt.Errorf("failed to look up sso user: %w", err)
		}

		password, err := randomPassword()
		if err != nil {
			return err
		}
		user, err = s.createWith(ctx, txStore, UserCreate{
			Email:    address,
			Password: password,
			IsActive: true,
		}, provider, openID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// randomPassword returns an unguessable password for accounts that only log
// in through SSO.
func randomPassword() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

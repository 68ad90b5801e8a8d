package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/stack-api/internal/domain"
	"github.com/phrazzld/stack-api/internal/store"
)

// MockUserStore implements store.UserStore over a map keyed by email.
// Create and Update move Password into HashedPassword prefixed with
// "hashed:" so tests can assert which plaintext was stored.
type MockUserStore struct {
	CreateFn     func(ctx context.Context, user *domain.User) error
	GetByEmailFn func(ctx context.Context, email string) (*domain.User, error)
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateFn     func(ctx context.Context, user *domain.User) error
	DeleteFn     func(ctx context.Context, id uuid.UUID) error

	mu    sync.Mutex
	Users map[string]*domain.User
}

// NewMockUserStore creates an empty store.
func NewMockUserStore(users ...*domain.User) *MockUserStore {
	m := &MockUserStore{Users: make(map[string]*domain.User)}
	for _, u := range users {
		m.Users[u.Email] = u
	}
	return m
}

// HashedPasswordFor returns the hash the mock stores for password.
func HashedPasswordFor(password string) string {
	return "hashed:" + password
}

func hash(user *domain.User) {
	if user.Password != "" {
		user.HashedPassword = HashedPasswordFor(user.Password)
		user.Password = ""
	}
}

// Create implements the UserStore interface
func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Users[user.Email]; exists {
		return store.ErrEmailExists
	}
	hash(user)
	m.Users[user.Email] = user
	return nil
}

// GetByEmail implements the UserStore interface
func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.Users[domain.NormalizeEmail(email)]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// GetByID implements the UserStore interface
func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.Users {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// List implements the UserStore interface, ordering by creation time.
func (m *MockUserStore) List(ctx context.Context, skip, limit int) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*domain.User, 0, len(m.Users))
	for _, u := range m.Users {
		clone := *u
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if skip >= len(all) {
		return []*domain.User{}, nil
	}
	all = all[skip:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Count implements the UserStore interface
func (m *MockUserStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Users), nil
}

// Update implements the UserStore interface
func (m *MockUserStore) Update(ctx context.Context, user *domain.User) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for email, existing := range m.Users {
		if existing.ID != user.ID {
			continue
		}
		if email != user.Email {
			if _, taken := m.Users[user.Email]; taken {
				return store.ErrEmailExists
			}
			delete(m.Users, email)
		}
		hash(user)
		clone := *user
		m.Users[user.Email] = &clone
		return nil
	}
	return store.ErrUserNotFound
}

// Delete implements the UserStore interface
func (m *MockUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for email, user := range m.Users {
		if user.ID == id {
			delete(m.Users, email)
			return nil
		}
	}
	return store.ErrUserNotFound
}

// WithTx returns the same mock; the map is not transactional.
func (m *MockUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return m
}

// Package mocks provides shared test doubles for the service and API layers.
//
// Each mock exposes optional function fields that override its default
// behavior. The defaults are simple in-memory implementations, so most tests
// only set the fields they care about:
//
//	users := mocks.NewMockUserStore()
//	users.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
//	    return nil, store.ErrUserNotFound
//	}
package mocks

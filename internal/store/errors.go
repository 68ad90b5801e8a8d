package store

import (
	"errors"
	"fmt"
)

// Sentinels shared by every store implementation. Entity-specific errors wrap
// one of the three categories so callers can match either level.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicate     = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrEmailExists        = fmt.Errorf("%w: email", ErrDuplicate)
	ErrTaskResultNotFound = fmt.Errorf("%w: task result", ErrNotFound)
)

// IsNotFoundError reports whether err is in the not-found category.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

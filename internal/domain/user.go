package domain

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no user has the requested username.
var ErrUserNotFound = errors.New("user not found")

// User is a PinIt account. Username is the identity used in event host and invite lists.
// swagger:model User
type User struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenIssuer issues tokens (e.g. JWT) for a username.
type TokenIssuer interface {
	Issue(username string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated username.
type TokenVerifier interface {
	Verify(token string) (username string, err error)
}

// UserRepository defines read access to users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Package auth verifies bearer credentials and turns them into principals.
package auth

import (
	"context"
	"errors"

	"gotogether/internal/domain"
)

// ErrInvalidToken is returned when a credential fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a raw bearer token into the authenticated principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}

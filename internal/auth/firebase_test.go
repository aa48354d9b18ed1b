package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
)

type stubIDTokens struct {
	token *fbauth.Token
	err   error
}

func (s *stubIDTokens) VerifyIDToken(_ context.Context, _ string) (*fbauth.Token, error) {
	return s.token, s.err
}

func TestFirebaseVerifier_RoleClaim(t *testing.T) {
	v := &FirebaseVerifier{client: &stubIDTokens{token: &fbauth.Token{
		UID:    "driver123",
		Claims: map[string]interface{}{"role": "driver"},
	}}}

	p, err := v.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{Subject: "driver123", Role: domain.RoleDriver}, p)
}

func TestFirebaseVerifier_NoRoleClaim(t *testing.T) {
	v := &FirebaseVerifier{client: &stubIDTokens{token: &fbauth.Token{
		UID:    "passenger456",
		Claims: map[string]interface{}{},
	}}}

	p, err := v.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleRider, p.Role)
}

func TestFirebaseVerifier_Error(t *testing.T) {
	v := &FirebaseVerifier{client: &stubIDTokens{err: errors.New("bad token")}}

	_, err := v.Verify(context.Background(), "token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

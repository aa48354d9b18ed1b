package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("s3cret", "gotogether")

	token, err := v.Issue("user-1", domain.RoleOperator, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.Subject)
	assert.Equal(t, domain.RoleOperator, p.Role)
}

func TestJWTVerifier_DefaultsToRider(t *testing.T) {
	v := NewJWTVerifier("s3cret", "")

	token, err := v.Issue("user-2", "", time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleRider, p.Role)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	good := NewJWTVerifier("s3cret", "gotogether")
	valid, err := good.Issue("user-1", domain.RoleRider, time.Hour)
	require.NoError(t, err)

	expired, err := good.Issue("user-1", domain.RoleRider, -time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewJWTVerifier("s3cret", "someone-else").Issue("user-1", domain.RoleRider, time.Hour)
	require.NoError(t, err)

	noSubject, err := good.Issue("", domain.RoleRider, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "gotogether"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *JWTVerifier
		token    string
	}{
		{"wrong secret", NewJWTVerifier("other", "gotogether"), valid},
		{"expired", good, expired},
		{"wrong issuer", good, otherIssuer},
		{"missing subject", good, noSubject},
		{"unsigned", good, unsigned},
		{"garbage", good, "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

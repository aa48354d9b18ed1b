package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"gotogether/internal/domain"
)

// Claims is the payload of a GoTogether access token.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 access tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTVerifier creates a JWTVerifier. An empty issuer skips the issuer check.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify checks the signature, expiry and issuer and returns the principal.
func (v *JWTVerifier) Verify(_ context.Context, raw string) (domain.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return domain.Principal{}, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return domain.Principal{Subject: claims.Subject, Role: domain.ParseRole(claims.Role)}, nil
}

// Issue signs an access token for subject with the given role.
func (v *JWTVerifier) Issue(subject string, role domain.Role, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

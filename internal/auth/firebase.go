package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"gotogether/internal/domain"
)

// idTokenVerifier is the part of the Firebase auth client the verifier needs.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier verifies Firebase ID tokens. The role comes from the
// "role" custom claim.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier creates a FirebaseVerifier using the Firebase Admin SDK.
// An empty credentialsFile falls back to application-default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify checks the ID token with Firebase and returns the principal.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (domain.Principal, error) {
	token, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return principalFromFirebase(token), nil
}

func principalFromFirebase(token *fbauth.Token) domain.Principal {
	role, _ := token.Claims["role"].(string)
	return domain.Principal{Subject: token.UID, Role: domain.ParseRole(role)}
}

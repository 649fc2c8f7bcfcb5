package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var (
	ErrInvalidGoogleToken = errors.New("invalid Google ID token")
	ErrGoogleEmailMissing = errors.New("email not found in Google token")
)

// GoogleUser represents the user info from Google
type GoogleUser struct {
	GoogleID      string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleAuthVerifier handles Google ID token verification
type GoogleAuthVerifier struct {
	clientIDs []string
}

// NewGoogleAuthVerifier creates a new Google auth verifier
func NewGoogleAuthVerifier(clientIDs []string) *GoogleAuthVerifier {
	return &GoogleAuthVerifier{
		clientIDs: clientIDs,
	}
}

// VerifyIDToken verifies a Google ID token and returns the user info
func (v *GoogleAuthVerifier) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	var payload *idtoken.Payload
	for _, clientID := range v.clientIDs {
		p, err := idtoken.Validate(ctx, idToken, clientID)
		if err == nil {
			payload = p
			break
		}
	}

	if payload == nil {
		return nil, ErrInvalidGoogleToken
	}

	return googleUserFromClaims(payload.Claims)
}

func googleUserFromClaims(claims map[string]interface{}) (*GoogleUser, error) {
	googleUser := &GoogleUser{}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrInvalidGoogleToken
	}
	googleUser.GoogleID = sub

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, ErrGoogleEmailMissing
	}
	googleUser.Email = email

	if verified, ok := claims["email_verified"].(bool); ok {
		googleUser.EmailVerified = verified
	}
	if name, ok := claims["name"].(string); ok {
		googleUser.Name = name
	}
	if picture, ok := claims["picture"].(string); ok {
		googleUser.Picture = picture
	}

	return googleUser, nil
}

// IsConfigured returns true if Google OAuth is configured
func (v *GoogleAuthVerifier) IsConfigured() bool {
	return len(v.clientIDs) > 0
}

package providers

import (
	"context"
	"strings"
)

var _ AuthProvider = &InsecureAuthProvider{}

// InsecureAuthProvider trusts the bearer token as the user ID.
// For local development and tests only.
type InsecureAuthProvider struct{}

func NewInsecureAuthProvider() *InsecureAuthProvider {
	return &InsecureAuthProvider{}
}

func (p *InsecureAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	uid := strings.TrimSpace(idToken)
	if uid == "" || strings.ContainsAny(uid, " \t\r\n") {
		return nil, ErrInvalidToken
	}
	return &TokenClaims{UID: uid}, nil
}

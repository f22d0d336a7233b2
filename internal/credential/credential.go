// Package credential loads the bearer credential persisted by cmd/login and
// answers the one question the session controller asks at initialization:
// is there a usable identity, or must the user be sent back to sign-in?
package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissing indicates no credential is present in the local store.
	ErrMissing = errors.New("no credential present")
	// ErrExpired indicates the access token's expiry has passed.
	ErrExpired = errors.New("credential expired")
)

// Credential is the stored identity used against the remote gateway.
type Credential struct {
	AccessToken  string
	RefreshToken string
	UserName     string
}

// Source is the subset of the local store the credential layer reads.
type Source interface {
	Load(key string) (string, bool)
}

// Keys into the local store; must match what cmd/login writes.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUserName     = "user_name"
)

// Load reads the credential from the store and verifies it is present and,
// when the token is a well-formed JWT, not expired. Signature validation is
// the gateway's job; the agent only holds the token, it never mints one.
func Load(src Source, now time.Time) (*Credential, error) {
	token, ok := src.Load(keyAccessToken)
	if !ok || token == "" {
		return nil, ErrMissing
	}
	user, ok := src.Load(keyUserName)
	if !ok || user == "" {
		return nil, ErrMissing
	}

	if exp, ok := tokenExpiry(token); ok && exp.Before(now) {
		return nil, ErrExpired
	}

	refresh, _ := src.Load(keyRefreshToken)
	return &Credential{
		AccessToken:  token,
		RefreshToken: refresh,
		UserName:     user,
	}, nil
}

// tokenExpiry extracts the exp claim without verifying the signature.
// Opaque (non-JWT) tokens report no expiry and are passed through; the
// gateway will reject them if stale.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

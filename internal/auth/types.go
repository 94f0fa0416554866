// Package auth builds authorization headers for the analysis service and
// wraps authenticated calls with a single refresh-and-retry on 401.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Mode is the active credential mode.
type Mode string

const (
	// ModeAPIKey uses a long-lived key.
	ModeAPIKey Mode = "apiKey"
	// ModeToken uses a short-lived access token with a refresh token.
	ModeToken Mode = "token"
)

// HeaderName is the header every authenticated request carries.
const HeaderName = "Authorization"

// ParseMode normalizes a stored mode. Unknown values return "".
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeAPIKey, ModeToken:
		return Mode(s)
	default:
		return ""
	}
}

// TokenPair is the result of a token exchange.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Credentials is a snapshot of the stored credentials.
type Credentials struct {
	Mode         Mode
	APIKey       string
	AccessToken  string
	RefreshToken string
}

// CredentialSource supplies and persists credentials.
type CredentialSource interface {
	Credentials() (Credentials, error)
	SaveTokens(TokenPair) error
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// Call is one authenticated request, given the Authorization header value.
type Call func(ctx context.Context, authorization string) error

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// IsUnauthorized reports whether err carries exactly HTTP 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

package auth

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	lcerrors "livecheck/internal/errors"
)

// Client produces authorization headers and applies the refresh-and-retry
// protocol to authenticated calls.
type Client struct {
	creds     CredentialSource
	refresher Refresher
	logger    *slog.Logger
	refreshes singleflight.Group
}

// NewClient creates an auth client.
func NewClient(creds CredentialSource, refresher Refresher, logger *slog.Logger) *Client {
	return &Client{creds: creds, refresher: refresher, logger: logger}
}

// AuthHeader returns the header name and value for the active mode.
func (c *Client) AuthHeader() (string, string, error) {
	creds, err := c.creds.Credentials()
	if err != nil {
		return "", "", err
	}
	value, err := headerValue(creds)
	if err != nil {
		return "", "", err
	}
	return HeaderName, value, nil
}

func headerValue(creds Credentials) (string, error) {
	switch creds.Mode {
	case ModeAPIKey:
		if creds.APIKey == "" {
			return "", lcerrors.New(lcerrors.CredentialsMissing, "no API key is stored", nil)
		}
		return "ApiKey " + creds.APIKey, nil
	case ModeToken:
		if creds.AccessToken == "" {
			return "", lcerrors.New(lcerrors.CredentialsMissing, "no access token is stored", nil)
		}
		return bearer(creds.AccessToken), nil
	default:
		return "", lcerrors.New(lcerrors.CredentialsMissing, "no authentication mode is configured", nil)
	}
}

func bearer(token string) string {
	return "Bearer " + token
}

// HandleUnauthorized refreshes once and calls retry once, but only when err
// carries HTTP 401 and refreshToken is set. In every other case, including a
// failed refresh, err is returned unchanged. The result of retry is returned
// as is, so a second 401 is never retried.
func (c *Client) HandleUnauthorized(
	ctx context.Context,
	err error,
	retry func(ctx context.Context, tokens TokenPair) error,
	refreshToken string,
	onNewTokens func(TokenPair) error,
) error {
	if !IsUnauthorized(err) || refreshToken == "" || c.refresher == nil {
		return err
	}

	v, rerr, shared := c.refreshes.Do(refreshToken, func() (interface{}, error) {
		pair, err := c.refresher.Refresh(ctx, refreshToken)
		if err != nil {
			return TokenPair{}, err
		}
		if pair.RefreshToken == "" {
			pair.RefreshToken = refreshToken
		}
		if onNewTokens != nil {
			if err := onNewTokens(pair); err != nil {
				// the retry still uses the new pair
				c.logger.Warn("Failed to persist refreshed tokens", "error", err.Error())
			}
		}
		return pair, nil
	})
	if rerr != nil {
		c.logger.Warn("Token refresh failed", "error", rerr.Error())
		return err
	}
	c.logger.Debug("Access token refreshed", "shared", shared)

	return retry(ctx, v.(TokenPair))
}

// Do runs fn with the current header. A 401 in token mode triggers one
// refresh and one retry of fn with the new header. When another call has
// already rotated the access token, fn is retried with it instead.
func (c *Client) Do(ctx context.Context, fn Call) error {
	creds, err := c.creds.Credentials()
	if err != nil {
		return err
	}
	header, err := headerValue(creds)
	if err != nil {
		return err
	}

	err = fn(ctx, header)
	if err == nil || creds.Mode != ModeToken || !IsUnauthorized(err) {
		return err
	}

	if latest, lerr := c.creds.Credentials(); lerr == nil && latest.Mode == ModeToken &&
		latest.AccessToken != "" && latest.AccessToken != creds.AccessToken {
		c.logger.Debug("Access token rotated by another call, retrying")
		return rejected(fn(ctx, bearer(latest.AccessToken)))
	}

	retried := false
	err = c.HandleUnauthorized(ctx, err, func(ctx context.Context, tokens TokenPair) error {
		retried = true
		return fn(ctx, bearer(tokens.AccessToken))
	}, creds.RefreshToken, c.creds.SaveTokens)
	if retried {
		return rejected(err)
	}
	return err
}

// rejected marks a 401 on a retried call as Unauthorized.
func rejected(err error) error {
	if !IsUnauthorized(err) {
		return err
	}
	return lcerrors.New(lcerrors.Unauthorized, "the service rejected the current credentials", err)
}

package auth

import (
	"fmt"
	"log/slog"
)

// User data keys holding credentials.
const (
	KeyAuthType     = "authType"
	KeyAPIKey       = "apiKey"
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// UserData is the slice of the store StoreCredentials needs.
type UserData interface {
	GetUserData(key string, out any) (bool, error)
	SetUserData(key string, value any) error
	DeleteUserData(key string) error
}

// StoreCredentials keeps credentials in user data, sealed at rest.
type StoreCredentials struct {
	data   UserData
	sealer *Sealer
	logger *slog.Logger
}

// NewStoreCredentials creates a credential source over data.
func NewStoreCredentials(data UserData, sealer *Sealer, logger *slog.Logger) *StoreCredentials {
	return &StoreCredentials{data: data, sealer: sealer, logger: logger}
}

// Credentials reads the current credentials. Values that cannot be opened
// are reported as absent.
func (s *StoreCredentials) Credentials() (Credentials, error) {
	var mode string
	if _, err := s.data.GetUserData(KeyAuthType, &mode); err != nil {
		return Credentials{}, err
	}

	creds := Credentials{Mode: ParseMode(mode)}
	var err error
	if creds.APIKey, err = s.secret(KeyAPIKey); err != nil {
		return Credentials{}, err
	}
	if creds.AccessToken, err = s.secret(KeyAccessToken); err != nil {
		return Credentials{}, err
	}
	if creds.RefreshToken, err = s.secret(KeyRefreshToken); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// SaveTokens stores a new token pair and switches to token mode.
func (s *StoreCredentials) SaveTokens(pair TokenPair) error {
	if err := s.setSecret(KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if pair.RefreshToken != "" {
		if err := s.setSecret(KeyRefreshToken, pair.RefreshToken); err != nil {
			return err
		}
	}
	return s.data.SetUserData(KeyAuthType, string(ModeToken))
}

// SaveAPIKey stores a long-lived key and switches to key mode.
func (s *StoreCredentials) SaveAPIKey(key string) error {
	if err := s.setSecret(KeyAPIKey, key); err != nil {
		return err
	}
	return s.data.SetUserData(KeyAuthType, string(ModeAPIKey))
}

// Clear removes every stored credential.
func (s *StoreCredentials) Clear() error {
	for _, key := range []string{KeyAuthType, KeyAPIKey, KeyAccessToken, KeyRefreshToken} {
		if err := s.data.DeleteUserData(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreCredentials) secret(key string) (string, error) {
	var sealed string
	ok, err := s.data.GetUserData(key, &sealed)
	if err != nil || !ok || sealed == "" {
		return "", err
	}
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		s.logger.Warn("Ignoring unreadable credential", "key", key, "error", err.Error())
		return "", nil
	}
	return plain, nil
}

func (s *StoreCredentials) setSecret(key, value string) error {
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.data.SetUserData(key, sealed)
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetUserData decodes the value stored under key into out.
// A missing key or a malformed stored value reports false with no error.
func (s *SQLStore) GetUserData(key string, out any) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var raw string
	err := s.conn.QueryRow("SELECT value FROM userData WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read user data %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("Ignoring malformed user data", "key", key, "error", err.Error())
		return false, nil
	}
	return true, nil
}

// SetUserData stores value under key (last write wins) and notifies listeners.
func (s *SQLStore) SetUserData(key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeValue(key, value, s.opts.MaxValueBytes)
	if err != nil {
		return err
	}

	err = s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO userData (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, string(data))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write user data %q: %w", key, err)
	}

	s.notify.publish(key, data)
	return nil
}

// DeleteUserData removes key and notifies listeners with a nil value.
func (s *SQLStore) DeleteUserData(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	err := s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM userData WHERE key = ?", key)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete user data %q: %w", key, err)
	}

	s.notify.publish(key, nil)
	return nil
}

// Subscribe registers fn for changes to key.
func (s *SQLStore) Subscribe(key string, fn Listener) func() {
	return s.notify.subscribe(key, fn)
}

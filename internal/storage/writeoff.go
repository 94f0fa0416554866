package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"livecheck/internal/issues"
)

// SetWriteOffData upserts the payload owned by a history entry.
func (s *SQLStore) SetWriteOffData(historyID int64, payload issues.WriteOffPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode write-off payload: %w", err)
	}

	return s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO WriteOffData (history_id, data) VALUES (?, ?)
			ON CONFLICT(history_id) DO UPDATE SET data = excluded.data
		`, historyID, string(data))
		if err != nil {
			return fmt.Errorf("failed to store write-off payload for history %d: %w", historyID, err)
		}
		return nil
	})
}

// GetWriteOffData returns the payload for a history entry, or nil.
func (s *SQLStore) GetWriteOffData(historyID int64) (*issues.WriteOffPayload, error) {
	var raw string
	err := s.conn.QueryRow("SELECT data FROM WriteOffData WHERE history_id = ?", historyID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read write-off payload: %w", err)
	}

	var payload issues.WriteOffPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.Warn("Ignoring malformed write-off payload", "history_id", historyID, "error", err.Error())
		return nil, nil
	}
	return &payload, nil
}

// SetWriteOffStatus records the local write-off intent for an issue.
func (s *SQLStore) SetWriteOffStatus(issueKey string, status issues.WriteOffStatus) error {
	if issueKey == "" {
		return fmt.Errorf("write-off status requires an issue key")
	}
	var metadata sql.NullString
	if status.Metadata != nil {
		data, err := json.Marshal(status.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode write-off metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = s.opts.Now()
	}

	return s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO WriteOffStatus (issue_id, status, updated_at, metadata) VALUES (?, ?, ?, ?)
			ON CONFLICT(issue_id) DO UPDATE SET
				status = excluded.status,
				updated_at = excluded.updated_at,
				metadata = excluded.metadata
		`, issueKey, status.Status, formatTimestamp(status.UpdatedAt), metadata)
		return err
	})
}

// GetWriteOffStatusMap returns every tracked write-off keyed by issue.
func (s *SQLStore) GetWriteOffStatusMap() (map[string]issues.WriteOffStatus, error) {
	rows, err := s.conn.Query("SELECT issue_id, status, updated_at, metadata FROM WriteOffStatus")
	if err != nil {
		return nil, fmt.Errorf("failed to query write-off status: %w", err)
	}
	defer rows.Close()

	result := make(map[string]issues.WriteOffStatus)
	for rows.Next() {
		var (
			key, status, updatedAt string
			metadata               sql.NullString
		)
		if err := rows.Scan(&key, &status, &updatedAt, &metadata); err != nil {
			return nil, err
		}

		entry := issues.WriteOffStatus{Status: status}
		entry.UpdatedAt, _ = parseTimestamp(updatedAt)
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				s.logger.Warn("Ignoring malformed write-off metadata", "issue", key, "error", err.Error())
				entry.Metadata = nil
			}
		}
		result[key] = entry
	}
	return result, rows.Err()
}

// DeleteWriteOffStatus forgets the local write-off intent for an issue.
func (s *SQLStore) DeleteWriteOffStatus(issueKey string) error {
	return s.write(func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM WriteOffStatus WHERE issue_id = ?", issueKey)
		return err
	})
}

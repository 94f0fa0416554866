package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"livecheck/internal/issues"
)

// SetLivecheckHistory replaces the live entry for path and returns its new id.
func (s *SQLStore) SetLivecheckHistory(path string, list []issues.Issue, ts time.Time) (int64, error) {
	var id int64
	err := s.write(func(tx *sql.Tx) error {
		prior, err := collectHistoryIDs(tx, "SELECT id FROM LivecheckHistory WHERE path = ?", path)
		if err != nil {
			return err
		}
		if err := deleteHistoryIDs(tx, prior); err != nil {
			return err
		}

		res, err := tx.Exec("INSERT INTO LivecheckHistory (path, timestamp) VALUES (?, ?)",
			path, formatTimestamp(ts))
		if err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare("INSERT INTO Issues (history_id, issue_data) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, issue := range list {
			data, err := json.Marshal(issue)
			if err != nil {
				return fmt.Errorf("failed to encode issue %q: %w", issue.Key(), err)
			}
			if _, err := stmt.Exec(id, string(data)); err != nil {
				return fmt.Errorf("failed to insert issue: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Stored scan history", "path", path, "id", id, "issues", len(list))
	return id, nil
}

// GetLivecheckHistory returns every live entry, newest first.
func (s *SQLStore) GetLivecheckHistory() ([]issues.HistoryEntry, error) {
	return s.queryHistory("")
}

// GetHistoryForPath returns the live entry for path, or nil.
func (s *SQLStore) GetHistoryForPath(path string) (*issues.HistoryEntry, error) {
	entries, err := s.queryHistory("WHERE h.path = ?", path)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (s *SQLStore) queryHistory(where string, args ...any) ([]issues.HistoryEntry, error) {
	rows, err := s.conn.Query(`
		SELECT h.id, h.path, h.timestamp, i.issue_data
		FROM LivecheckHistory h
		LEFT JOIN Issues i ON i.history_id = h.id
		`+where+`
		ORDER BY h.timestamp DESC, h.id DESC, i.id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []issues.HistoryEntry
	for rows.Next() {
		var (
			id        int64
			path, ts  string
			issueData sql.NullString
		)
		if err := rows.Scan(&id, &path, &ts, &issueData); err != nil {
			return nil, err
		}

		if len(entries) == 0 || entries[len(entries)-1].ID != id {
			parsed, err := parseTimestamp(ts)
			if err != nil {
				s.logger.Warn("Malformed history timestamp", "id", id, "timestamp", ts)
			}
			entries = append(entries, issues.HistoryEntry{
				ID:        id,
				Path:      path,
				Timestamp: parsed,
				Issues:    []issues.Issue{},
			})
		}
		if !issueData.Valid {
			continue
		}

		var issue issues.Issue
		if err := json.Unmarshal([]byte(issueData.String), &issue); err != nil {
			s.logger.Warn("Skipping malformed issue row", "history_id", id, "error", err.Error())
			continue
		}
		last := &entries[len(entries)-1]
		last.Issues = append(last.Issues, issue)
	}
	return entries, rows.Err()
}

// DeleteAllData clears history, issues and write-off payloads. User data and
// write-off status are left alone.
func (s *SQLStore) DeleteAllData() error {
	err := s.write(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM Issues",
			"DELETE FROM WriteOffData",
			"DELETE FROM LivecheckHistory",
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to clear data: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Cleared scan history")
	return nil
}

// DeleteIssuesOlderThan purges entries whose timestamp is before now minus
// days and returns how many entries were removed.
func (s *SQLStore) DeleteIssuesOlderThan(days int) (int, error) {
	limit := formatTimestamp(cutoff(s.opts.Now(), days))

	var purged int
	err := s.write(func(tx *sql.Tx) error {
		ids, err := collectHistoryIDs(tx, "SELECT id FROM LivecheckHistory WHERE timestamp < ?", limit)
		if err != nil {
			return err
		}
		purged = len(ids)
		return deleteHistoryIDs(tx, ids)
	})
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		s.logger.Info("Purged old scan history", "entries", purged, "days", days)
	}
	return purged, nil
}

func collectHistoryIDs(tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select history ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// deleteHistoryIDs removes dependents before parents: issues, payload, history.
func deleteHistoryIDs(tx *sql.Tx, ids []int64) error {
	for _, id := range ids {
		for _, stmt := range []string{
			"DELETE FROM Issues WHERE history_id = ?",
			"DELETE FROM WriteOffData WHERE history_id = ?",
			"DELETE FROM LivecheckHistory WHERE id = ?",
		} {
			if _, err := tx.Exec(stmt, id); err != nil {
				return fmt.Errorf("failed to delete history %d: %w", id, err)
			}
		}
	}
	return nil
}

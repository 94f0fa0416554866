package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates every table idempotently in one transaction.
func (s *SQLStore) initializeSchema() error {
	return s.write(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		version, err := getSchemaVersion(tx)
		if err != nil {
			return err
		}

		creators := []func(*sql.Tx) error{
			createUserDataTable,
			createHistoryTable,
			createIssuesTable,
			createWriteOffDataTable,
			createWriteOffStatusTable,
		}
		for _, create := range creators {
			if err := create(tx); err != nil {
				return err
			}
		}

		if version < currentSchemaVersion {
			// migrations from older versions go here as the schema evolves
			if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
				return err
			}
			s.logger.Info("Database schema initialized",
				"from_version", version,
				"version", currentSchemaVersion,
			)
		}
		return nil
	})
}

func getSchemaVersion(tx *sql.Tx) (int, error) {
	var version int
	err := tx.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func createUserDataTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS userData (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create userData table: %w", err)
	}
	return nil
}

func createHistoryTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS LivecheckHistory (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			timestamp TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create LivecheckHistory table: %w", err)
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_history_timestamp ON LivecheckHistory(timestamp)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func createIssuesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS Issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			history_id INTEGER NOT NULL,
			issue_data TEXT NOT NULL,
			FOREIGN KEY (history_id) REFERENCES LivecheckHistory(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create Issues table: %w", err)
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_issues_history_id ON Issues(history_id)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func createWriteOffDataTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS WriteOffData (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			history_id INTEGER NOT NULL UNIQUE,
			data TEXT NOT NULL,
			FOREIGN KEY (history_id) REFERENCES LivecheckHistory(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create WriteOffData table: %w", err)
	}
	return nil
}

func createWriteOffStatusTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS WriteOffStatus (
			issue_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			metadata TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create WriteOffStatus table: %w", err)
	}
	return nil
}

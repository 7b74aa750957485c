package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the ModelStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite model store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load retrieves an artifact by key
func (s *SQLiteStore) Load(key string) ([]byte, bool) {
	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM artifacts WHERE key = ?
	`, key).Scan(&data)

	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("Failed to query artifact", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Save stores an artifact under the given key
func (s *SQLiteStore) Save(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO artifacts (key, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`, key, data)

	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	return nil
}

// List returns all stored keys with the given prefix
func (s *SQLiteStore) List(prefix string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT key FROM artifacts WHERE key LIKE ? ESCAPE '\' ORDER BY key
	`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan artifact key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

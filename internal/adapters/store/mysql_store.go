package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the ModelStore interface
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL model store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			artifact_key VARCHAR(255) PRIMARY KEY,
			data LONGBLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// Load retrieves an artifact by key
func (s *MySQLStore) Load(key string) ([]byte, bool) {
	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM artifacts WHERE artifact_key = ?
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
func (s *MySQLStore) Save(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO artifacts (artifact_key, data)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data)
	`, key, data)

	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	return nil
}

// List returns all stored keys with the given prefix
func (s *MySQLStore) List(prefix string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT artifact_key FROM artifacts WHERE artifact_key LIKE ? ORDER BY artifact_key
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
func (s *MySQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}

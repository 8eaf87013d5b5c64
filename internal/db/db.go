package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens the database under dataDir (the XDG data directory when empty)
// and initializes the schema
func New(dataDir string) (*DB, error) {
	dbPath, err := getDBPath(dataDir)
	if err != nil {
		return nil, err
	}
	return Open(dbPath)
}

// Open opens the database file at path and initializes the schema
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection keeps multi-key writes ordered
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db}, nil
}

// getDBPath returns the path to the database file
func getDBPath(dataDir string) (string, error) {
	if dataDir == "" {
		dataDir = os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dataDir = filepath.Join(dataDir, "taskflow")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dataDir, "taskflow.db"), nil
}

// Get retrieves a setting value by key. A missing key yields "" and no error.
func (db *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Set writes every pair in one transaction, so either all keys change or none do
func (db *DB) Set(ctx context.Context, pairs map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range pairs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Delete removes the keys in one transaction
func (db *DB) Delete(ctx context.Context, keys ...string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	return tx.Commit()
}

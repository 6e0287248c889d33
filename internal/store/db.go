// Package store is the profile's local SQLite database: the offline
// response cache behind remote fallbacks and the reward ledger.
package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// Connection parameters understood by go-sqlite3.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_synchronous":  {"NORMAL"},
}

// DB is an open plated.db.
type DB struct {
	*sql.DB
	path string
}

// Open opens the database at path, creating the file if needed. Call
// Migrate before use.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", "file:"+path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{DB: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

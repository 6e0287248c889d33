package store

import (
	"database/sql"
	"errors"
	"time"
)

// PutCache stores body as the latest response for key.
func (db *DB) PutCache(key string, body []byte) error {
	_, err := db.Exec(`
		INSERT INTO response_cache (key, body, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			fetched_at = excluded.fetched_at`,
		key, body, time.Now().UnixMilli())
	return err
}

// GetCache returns the cached response for key, or nil if none exists.
func (db *DB) GetCache(key string) (*CacheEntry, error) {
	var e CacheEntry
	var fetchedAt int64
	err := db.QueryRow(`SELECT key, body, fetched_at FROM response_cache WHERE key = ?`, key).
		Scan(&e.Key, &e.Body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.FetchedAt = time.UnixMilli(fetchedAt)
	return &e, nil
}

// ClearCache deletes every cached response.
func (db *DB) ClearCache() error {
	_, err := db.Exec(`DELETE FROM response_cache`)
	return err
}

// PurgeCache deletes entries fetched before cutoff and returns how many were removed.
func (db *DB) PurgeCache(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM response_cache WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordGrant inserts a ledger entry. It reports false, with no error, when
// the event id was already recorded.
func (db *DB) RecordGrant(e LedgerEntry) (bool, error) {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now()
	}
	res, err := db.Exec(`
		INSERT INTO reward_ledger (event_id, kind, session_id, xp, coins, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		e.EventID, e.Kind, e.SessionID, e.XP, e.Coins, e.AppliedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("record grant %q: %w", e.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// HasGrant reports whether eventID has been recorded.
func (db *DB) HasGrant(eventID string) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM reward_ledger WHERE event_id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// GrantsForSession returns the ledger entries of a cook session, oldest first.
func (db *DB) GrantsForSession(sessionID string) ([]LedgerEntry, error) {
	rows, err := db.Query(`
		SELECT event_id, kind, session_id, xp, coins, applied_at
		FROM reward_ledger WHERE session_id = ? ORDER BY applied_at ASC, event_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var appliedAt int64
		if err := rows.Scan(&e.EventID, &e.Kind, &e.SessionID, &e.XP, &e.Coins, &appliedAt); err != nil {
			return nil, err
		}
		e.AppliedAt = time.UnixMilli(appliedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveRewardSummary persists the JSON-encoded reward summary snapshot.
func (db *DB) SaveRewardSummary(body []byte) error {
	_, err := db.Exec(`
		INSERT INTO reward_summary (id, body, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(body), time.Now().UnixMilli())
	return err
}

// LoadRewardSummary returns the persisted snapshot, or nil if none was saved.
func (db *DB) LoadRewardSummary() ([]byte, error) {
	var body string
	err := db.QueryRow(`SELECT body FROM reward_summary WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

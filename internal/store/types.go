package store

import "time"

// CacheEntry is the last good response body for an endpoint key.
type CacheEntry struct {
	Key       string
	Body      []byte
	FetchedAt time.Time
}

// LedgerEntry is one applied reward grant. EventID is unique: applying the
// same event twice is a no-op.
type LedgerEntry struct {
	EventID   string
	Kind      string
	SessionID string
	XP        int
	Coins     int
	AppliedAt time.Time
}

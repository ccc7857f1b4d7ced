// Package cache holds the in-process store for upstream air-quality payloads.
// The store is a plain key-value mapping: it records when each payload was
// retrieved but never decides whether an entry is still fresh. Freshness
// policy belongs to the caller.
package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached upstream payload together with its retrieval time.
type Entry struct {
	Key         string
	Payload     json.RawMessage
	RetrievedAt time.Time
}

// Age returns how long ago the entry was retrieved, relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.RetrievedAt)
}

// Store abstracts the payload cache.
// All operations are safe for concurrent use.
type Store interface {
	// Get returns the entry for key whether or not it is stale.
	Get(key string) (Entry, bool)

	// Put inserts or overwrites the entry for key, stamping it with now.
	Put(key string, payload json.RawMessage, now time.Time)

	// Len reports the number of entries held, fresh or stale.
	Len() int
}

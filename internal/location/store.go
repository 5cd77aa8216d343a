// Package location keeps the most recent user location reported by a
// client device. The store is in-memory only: location is ephemeral
// presence data and does not survive a restart.
package location

import (
	"sync"
	"time"
)

// Location update sources.
const (
	SourceGPS    = "gps"
	SourceManual = "manual"
)

// Ingest statuses reported by health checks.
const (
	IngestOK    = "ok"
	IngestEmpty = "empty"
)

// Update is one reported user location.
type Update struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AccuracyM float64 `json:"accuracy_m,omitempty"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
}

// Store holds the latest location update. Safe for concurrent use;
// writes are last-write-wins.
type Store struct {
	mu   sync.RWMutex
	last *Update
}

func NewStore() *Store {
	return &Store{}
}

// Set records an update, stamping it with the current time when the
// client did not supply a timestamp.
func (s *Store) Set(update Update) Update {
	if update.Timestamp == "" {
		update.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if update.Source == "" {
		update.Source = SourceManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &update
	return update
}

// Last returns the most recent update, or ok=false when none was
// reported yet.
func (s *Store) Last() (Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Update{}, false
	}
	return *s.last, true
}

// IngestStatus reports whether any location has been received.
func (s *Store) IngestStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return IngestEmpty
	}
	return IngestOK
}

// LastTimestamp returns the timestamp of the latest update, or "" when
// none was reported yet.
func (s *Store) LastTimestamp() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return ""
	}
	return s.last.Timestamp
}

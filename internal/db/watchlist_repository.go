package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// WatchedAircraft is one persisted watchlist entry. Either Icao24 or
// Callsign is set; both may be.
type WatchedAircraft struct {
	ID        int64     `json:"id"`
	Icao24    string    `json:"icao24,omitempty"`
	Callsign  string    `json:"callsign,omitempty"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WatchlistRepository handles database operations for watched aircraft.
type WatchlistRepository struct {
	db *DB
}

// NewWatchlistRepository creates a new watchlist repository.
func NewWatchlistRepository(db *DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// List returns all watchlist entries, newest first.
func (r *WatchlistRepository) List(ctx context.Context) ([]WatchedAircraft, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(icao24, ''), COALESCE(callsign, ''), label, created_at
		 FROM watchlist
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	entries := make([]WatchedAircraft, 0)
	for rows.Next() {
		var entry WatchedAircraft
		if err := rows.Scan(&entry.ID, &entry.Icao24, &entry.Callsign, &entry.Label, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watchlist rows: %w", err)
	}

	return entries, nil
}

// Add persists a watchlist entry. Identifiers are stored normalized:
// ICAO24 lowercased, callsign uppercased.
func (r *WatchlistRepository) Add(ctx context.Context, entry WatchedAircraft) (WatchedAircraft, error) {
	icao24 := sql.NullString{
		String: strings.ToLower(strings.TrimSpace(entry.Icao24)),
		Valid:  strings.TrimSpace(entry.Icao24) != "",
	}
	callsign := sql.NullString{
		String: strings.ToUpper(strings.TrimSpace(entry.Callsign)),
		Valid:  strings.TrimSpace(entry.Callsign) != "",
	}
	if !icao24.Valid && !callsign.Valid {
		return WatchedAircraft{}, fmt.Errorf("watchlist entry needs an icao24 or a callsign")
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO watchlist (icao24, callsign, label)
		 VALUES ($1, $2, $3)
		 RETURNING id, COALESCE(icao24, ''), COALESCE(callsign, ''), label, created_at`,
		icao24, callsign, entry.Label,
	).Scan(&entry.ID, &entry.Icao24, &entry.Callsign, &entry.Label, &entry.CreatedAt)
	if err != nil {
		return WatchedAircraft{}, fmt.Errorf("failed to insert watchlist entry: %w", err)
	}

	return entry, nil
}

// Remove deletes a watchlist entry by id. Returns sql.ErrNoRows when the
// entry does not exist.
func (r *WatchlistRepository) Remove(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM watchlist WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

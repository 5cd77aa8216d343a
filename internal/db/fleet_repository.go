package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/unklstewy/opensky-prox/pkg/distance"
)

// FleetRepository handles database operations for fleet groups.
type FleetRepository struct {
	db *DB
}

// NewFleetRepository creates a new fleet repository.
func NewFleetRepository(db *DB) *FleetRepository {
	return &FleetRepository{db: db}
}

// ListGroups returns all fleet groups with their member callsigns.
func (r *FleetRepository) ListGroups(ctx context.Context) ([]distance.FleetGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.name, COALESCE(m.callsign, '')
		 FROM fleet_groups g
		 LEFT JOIN fleet_members m ON m.group_id = g.id
		 ORDER BY g.name, m.callsign`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fleet groups: %w", err)
	}
	defer rows.Close()

	groups := make([]distance.FleetGroup, 0)
	index := make(map[string]int)
	for rows.Next() {
		var name, callsign string
		if err := rows.Scan(&name, &callsign); err != nil {
			return nil, fmt.Errorf("failed to scan fleet row: %w", err)
		}

		i, seen := index[name]
		if !seen {
			i = len(groups)
			index[name] = i
			groups = append(groups, distance.FleetGroup{Name: name, Callsigns: []string{}})
		}
		if callsign != "" {
			groups[i].Callsigns = append(groups[i].Callsigns, callsign)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fleet rows: %w", err)
	}

	return groups, nil
}

// SaveGroup upserts a fleet group and replaces its membership in one
// transaction. Callsigns are stored uppercased.
func (r *FleetRepository) SaveGroup(ctx context.Context, group distance.FleetGroup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO fleet_groups (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		group.Name,
	).Scan(&groupID)
	if err != nil {
		return fmt.Errorf("failed to upsert fleet group: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fleet_members WHERE group_id = $1`, groupID,
	); err != nil {
		return fmt.Errorf("failed to clear fleet members: %w", err)
	}

	for _, callsign := range group.Callsigns {
		normalized := strings.ToUpper(strings.TrimSpace(callsign))
		if normalized == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fleet_members (group_id, callsign) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			groupID, normalized,
		); err != nil {
			return fmt.Errorf("failed to insert fleet member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fleet group: %w", err)
	}

	return nil
}

// DeleteGroup removes a fleet group and its members. Returns
// sql.ErrNoRows when the group does not exist.
func (r *FleetRepository) DeleteGroup(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM fleet_groups WHERE name = $1`, name,
	)
	if err != nil {
		return fmt.Errorf("failed to delete fleet group: %w", err)
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

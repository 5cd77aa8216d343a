package db

import (
	"strings"
	"testing"

	"github.com/unklstewy/opensky-prox/pkg/config"
)

// TestConnect tests database connection handling.
func TestConnect(t *testing.T) {
	t.Run("Connection attempt", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Username:     "testuser",
			Password:     "testpass",
			Database:     "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		}

		// Fails when no database is running; that is fine, the error
		// message still needs to be useful.
		db, err := Connect(cfg)
		if err != nil {
			if !strings.Contains(err.Error(), "database") {
				t.Errorf("expected a database error message, got %q", err.Error())
			}
			return
		}

		if db == nil || db.DB == nil {
			t.Fatal("expected an initialized DB")
		}
		if db.config.Host != cfg.Host {
			t.Errorf("expected host %s, got %s", cfg.Host, db.config.Host)
		}

		db.Close()
	})
}

// TestSchemaEmbedded verifies the embedded schema is present and creates
// the expected tables.
func TestSchemaEmbedded(t *testing.T) {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("embedded schema missing: %v", err)
	}

	schema := string(schemaBytes)
	for _, table := range []string{"watchlist", "fleet_groups", "fleet_members"} {
		if !strings.Contains(schema, table) {
			t.Errorf("schema does not create table %q", table)
		}
	}
}

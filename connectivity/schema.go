package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Schema is the routes table. config holds per-route JSON such as
// {"timeout_ms": 60000, "allow_private": true}.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
    service_name TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL CHECK(strategy IN ('local', 'http', 'noop')),
    endpoint     TEXT,
    config       TEXT DEFAULT '{}',
    updated_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// Init creates the routes table.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// SetRoute inserts or replaces the route for a service. Watch picks the
// change up on its next tick.
func SetRoute(ctx context.Context, db *sql.DB, service string, strategy Strategy, endpoint string, config json.RawMessage) error {
	if config == nil {
		config = json.RawMessage(`{}`)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO routes (service_name, strategy, endpoint, config)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(service_name) DO UPDATE SET
		     strategy = excluded.strategy,
		     endpoint = excluded.endpoint,
		     config = excluded.config,
		     updated_at = strftime('%s', 'now')`,
		service, string(strategy), endpoint, string(config))
	if err != nil {
		return fmt.Errorf("connectivity: set route %s: %w", service, err)
	}
	return nil
}

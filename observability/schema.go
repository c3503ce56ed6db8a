package observability

import "database/sql"

// Schema holds the metrics timeseries and the document event log. It lives
// in its own database file so metric flushes never contend with the job
// store.
const Schema = `
CREATE TABLE IF NOT EXISTS metrics_timeseries (
    metric_id   TEXT PRIMARY KEY DEFAULT ('met_' || hex(randomblob(16))),
    metric_name TEXT NOT NULL,
    timestamp   INTEGER NOT NULL,
    value       REAL NOT NULL,
    labels      TEXT,
    unit        TEXT
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time
    ON metrics_timeseries(metric_name, timestamp DESC);

CREATE TABLE IF NOT EXISTS document_events (
    event_id    TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    document_id TEXT,
    user_id     TEXT,
    details     TEXT,
    success     INTEGER NOT NULL DEFAULT 1,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_events_doc
    ON document_events(document_id, created_at DESC);
`

// Init applies Schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

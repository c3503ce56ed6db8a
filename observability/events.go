package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/structura/idgen"
)

// Event types of the document lifecycle.
const (
	EventUploaded  = "document.uploaded"
	EventProcessed = "document.processed"
	EventFailed    = "document.failed"
	EventDeleted   = "document.deleted"
	EventExported  = "document.exported"
)

// Event is one row of the document event log.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DocumentID string    `json:"document_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Success    bool      `json:"success"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventLogger writes document events.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator overrides the "evt_" UUIDv7 ids.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{db: db, newID: idgen.Prefixed("evt_", idgen.Default), logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Log records an event. Errors are logged and swallowed. A nil logger is a
// no-op.
func (l *EventLogger) Log(ctx context.Context, e Event) {
	if l == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO document_events (event_id, event_type, document_id, user_id, details, success, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		l.newID(), e.Type, e.DocumentID, e.UserID, e.Details, e.Success, e.CreatedAt.UnixMilli())
	if err != nil {
		l.logger.Error("observability: event log failed", "error", err, "event_type", e.Type)
	}
}

// Recent returns the newest events, optionally for one document. A nil
// logger has none.
func (l *EventLogger) Recent(ctx context.Context, documentID string, limit int) ([]Event, error) {
	if l == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT event_id, event_type, COALESCE(document_id,''), COALESCE(user_id,''), COALESCE(details,''), success, created_at
	      FROM document_events`
	args := []any{}
	if documentID != "" {
		q += " WHERE document_id = ?"
		args = append(args, documentID)
	}
	q += " ORDER BY created_at DESC, event_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &e.Type, &e.DocumentID, &e.UserID, &e.Details, &e.Success, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

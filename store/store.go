// Package store persists uploaded documents, their processing state and
// results, and the AI result cache in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/structura/dbopen"
	"github.com/hazyhaar/structura/idgen"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("store: document not found")

// Status is the processing state of a document.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Document is one uploaded file and what became of it.
type Document struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Path      string          `json:"-"`
	Kind      string          `json:"kind"`
	Size      int64           `json:"size"`
	Status    Status          `json:"status"`
	Formats   []string        `json:"formats"`
	Prompt    string          `json:"prompt,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DecodeResult unmarshals the stored result into v.
func (d *Document) DecodeResult(v any) error {
	if len(d.Result) == 0 {
		return fmt.Errorf("store: document %s has no result", d.ID)
	}
	return json.Unmarshal(d.Result, v)
}

// Store is the database handle.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the "doc_" UUIDv7 ids.
func WithIDGenerator(gen idgen.Generator) Option { return func(s *Store) { s.newID = gen } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New wraps an open database that already has Schema applied.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{DB: db, newID: idgen.Prefixed("doc_", idgen.Default), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (or creates) the database at path and applies Schema plus any
// extra schemas passed as dbopen options.
func Open(path string, dbOpts []dbopen.Option, opts ...Option) (*Store, error) {
	all := append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, dbOpts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Create inserts d as queued, assigning ID and timestamps.
func (s *Store) Create(ctx context.Context, d *Document) error {
	if d.ID == "" {
		d.ID = s.newID()
	}
	now := s.now()
	d.Status, d.CreatedAt, d.UpdatedAt = StatusQueued, now, now
	if d.Formats == nil {
		d.Formats = []string{}
	}
	formats, _ := json.Marshal(d.Formats)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO documents (id, name, path, kind, size, status, formats, prompt, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Name, d.Path, d.Kind, d.Size, d.Status, string(formats), d.Prompt, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: create %s: %w", d.ID, err)
	}
	return nil
}

const documentColumns = `id, name, path, kind, size, status, formats, prompt, error, COALESCE(result, ''), created_at, updated_at`

// Get returns one document with its result.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return d, nil
}

// List returns the newest documents first, without their results.
func (s *Store) List(ctx context.Context, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, path, kind, size, status, formats, prompt, error, '', created_at, updated_at
		 FROM documents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()
	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Counts returns the number of documents per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: counts: %w", err)
	}
	defer rows.Close()
	out := map[Status]int{StatusQueued: 0, StatusProcessing: 0, StatusDone: 0, StatusFailed: 0}
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

// MarkProcessing moves a document to processing and clears a previous error.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, `status = 'processing', error = ''`)
}

// Complete stores result (JSON encoded) and marks the document done.
func (s *Store) Complete(ctx context.Context, id string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: encode result of %s: %w", id, err)
	}
	return s.update(ctx, id, `status = 'done', error = '', result = ?`, string(raw))
}

// Fail marks the document failed with msg.
func (s *Store) Fail(ctx context.Context, id, msg string) error {
	return s.update(ctx, id, `status = 'failed', error = ?`, msg)
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) update(ctx context.Context, id, set string, args ...any) error {
	args = append(args, s.now().UnixMilli(), id)
	res, err := s.DB.ExecContext(ctx, `UPDATE documents SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var d Document
	var formats, result string
	var created, updated int64
	if err := sc.Scan(&d.ID, &d.Name, &d.Path, &d.Kind, &d.Size, &d.Status, &formats,
		&d.Prompt, &d.Error, &result, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(formats), &d.Formats); err != nil {
		d.Formats = []string{}
	}
	if result != "" {
		d.Result = json.RawMessage(result)
	}
	d.CreatedAt, d.UpdatedAt = time.UnixMilli(created), time.UnixMilli(updated)
	return &d, nil
}

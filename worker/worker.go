// Package worker processes uploaded documents in the background: each
// document is a job on a SQLite visibility-timeout queue that extracts the
// file, runs the AI pipeline and stores the result.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/observability"
	"github.com/hazyhaar/structura/store"
	"github.com/hazyhaar/structura/structurer"
	"github.com/hazyhaar/structura/vtq"
)

// QueueName is the vtq queue documents go through.
const QueueName = "documents"

// MaxAttempts bounds how often a document is tried before it is failed.
const MaxAttempts = 3

type job struct {
	DocumentID string   `json:"document_id"`
	Formats    []string `json:"formats,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
}

// Options configures a Worker.
type Options struct {
	Concurrency  int           // pipeline runs in flight, default 1
	PollInterval time.Duration // default 1s
	RetryDelay   time.Duration // multiplied by the attempt number, default 2s
	Events       *observability.EventLogger
	Logger       *slog.Logger
	Now          func() time.Time
}

// Worker owns the document queue.
type Worker struct {
	q       *vtq.Q
	store   *store.Store
	extract *docpipe.Pipeline
	process *structurer.Pipeline
	events  *observability.EventLogger
	logger  *slog.Logger
}

// New returns a worker whose queue lives in db (vtq.Schema applied).
func New(db *sql.DB, st *store.Store, extract *docpipe.Pipeline, process *structurer.Pipeline, opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Worker{store: st, extract: extract, process: process, events: opts.Events, logger: opts.Logger}
	w.q = vtq.New(db, vtq.Options{
		Queue:        QueueName,
		PollInterval: opts.PollInterval,
		RetryDelay:   opts.RetryDelay,
		Concurrency:  opts.Concurrency,
		MaxAttempts:  MaxAttempts,
		OnDead:       w.dead,
		Logger:       opts.Logger,
		Now:          opts.Now,
	})
	return w
}

// Submit queues doc for processing with its formats and prompt.
func (w *Worker) Submit(ctx context.Context, doc *store.Document) error {
	payload, err := json.Marshal(job{DocumentID: doc.ID, Formats: doc.Formats, Prompt: doc.Prompt})
	if err != nil {
		return err
	}
	if err := w.q.Publish(ctx, doc.ID, payload); err != nil {
		return fmt.Errorf("worker: submit %s: %w", doc.ID, err)
	}
	w.logger.InfoContext(ctx, "document queued", "document_id", doc.ID, "name", doc.Name)
	return nil
}

// Cancel drops a queued document. It reports whether a job was removed.
func (w *Worker) Cancel(ctx context.Context, id string) (bool, error) {
	return w.q.Remove(ctx, id)
}

// Len is the number of queued or in-flight documents.
func (w *Worker) Len(ctx context.Context) (int, error) {
	return w.q.Len(ctx)
}

// Run processes documents until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.q.Run(ctx, w.handle)
}

// RunOnce processes every visible document and returns how many were
// handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	return w.q.RunOnce(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, j *vtq.Job) error {
	var spec job
	if err := json.Unmarshal(j.Payload, &spec); err != nil {
		w.logger.ErrorContext(ctx, "worker: bad payload dropped", "job", j.ID, "error", err)
		return nil
	}
	log := w.logger.With("document_id", spec.DocumentID, "attempt", j.Attempts)

	doc, err := w.store.Get(ctx, spec.DocumentID)
	if errors.Is(err, store.ErrNotFound) {
		log.InfoContext(ctx, "worker: document deleted before processing")
		return nil
	}
	if err != nil {
		return err
	}
	if err := w.store.MarkProcessing(ctx, doc.ID); err != nil {
		return err
	}

	extracted, err := w.extract.Extract(ctx, doc.Path)
	if err != nil {
		if permanent(err) {
			w.fail(ctx, doc.ID, err)
			return nil
		}
		return err
	}

	res := w.process.Process(ctx, extracted, spec.Formats, spec.Prompt)
	if !res.Success {
		if permanent(res.Err) {
			w.fail(ctx, doc.ID, res.Err)
			return nil
		}
		return fmt.Errorf("process %s: %s", doc.ID, res.Error)
	}
	if err := w.store.Complete(ctx, doc.ID, res); err != nil {
		return err
	}
	log.InfoContext(ctx, "document processed",
		"kind", extracted.Kind, "total_s", res.Metadata.TotalProcessingTime, "step_errors", len(res.StepErrors))
	w.events.Log(ctx, observability.Event{
		Type:       observability.EventProcessed,
		DocumentID: doc.ID,
		Details:    string(extracted.Kind),
		Success:    true,
	})
	return nil
}

// dead is called by the queue after MaxAttempts failures.
func (w *Worker) dead(ctx context.Context, j *vtq.Job, err error) {
	var spec job
	if json.Unmarshal(j.Payload, &spec) != nil || spec.DocumentID == "" {
		spec.DocumentID = j.ID
	}
	w.fail(ctx, spec.DocumentID, err)
}

func (w *Worker) fail(ctx context.Context, id string, cause error) {
	msg := "processing failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := w.store.Fail(ctx, id, msg); err != nil && !errors.Is(err, store.ErrNotFound) {
		w.logger.ErrorContext(ctx, "worker: record failure", "document_id", id, "error", err)
	}
	w.logger.WarnContext(ctx, "document failed", "document_id", id, "error", msg)
	w.events.Log(ctx, observability.Event{Type: observability.EventFailed, DocumentID: id, Details: msg})
}

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	for _, target := range []error{
		docpipe.ErrUnsupported, docpipe.ErrFileTooLarge, docpipe.ErrEmptyFile, docpipe.ErrOCRUnavailable,
		structurer.ErrNoText, structurer.ErrNoAPIKey, os.ErrNotExist,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var pe *structurer.ProviderError
	return errors.As(err, &pe) && !pe.Temporary()
}

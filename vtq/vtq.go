// Package vtq is a visibility-timeout job queue stored in SQLite.
//
// A claimed job is hidden for Visibility. The consumer acks it when done;
// if the consumer dies or overruns, the job becomes visible again and is
// claimed by the next poll. Failed jobs are retried with a linear delay
// until MaxAttempts, after which OnDead is called and the job is dropped.
//
//	CREATE TABLE vtq_jobs (
//	    id         TEXT PRIMARY KEY,
//	    queue      TEXT NOT NULL DEFAULT '',
//	    payload    BLOB,
//	    visible_at INTEGER NOT NULL DEFAULT 0,  -- unix ms
//	    created_at INTEGER NOT NULL,            -- unix ms
//	    attempts   INTEGER NOT NULL DEFAULT 0,
//	    last_error TEXT
//	);
package vtq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Schema creates the jobs table.
const Schema = `
CREATE TABLE IF NOT EXISTS vtq_jobs (
	id         TEXT PRIMARY KEY,
	queue      TEXT NOT NULL DEFAULT '',
	payload    BLOB,
	visible_at INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT
);
CREATE INDEX IF NOT EXISTS idx_vtq_visible ON vtq_jobs (queue, visible_at);
`

// ErrDuplicate is returned by Publish when the id is already queued.
var ErrDuplicate = errors.New("vtq: job already queued")

// Job is a claimed row.
type Job struct {
	ID        string
	Queue     string
	Payload   []byte
	CreatedAt time.Time
	Attempts  int    // including the current one
	LastError string // error of the previous attempt
}

// Options configures a queue.
type Options struct {
	Queue        string        // logical queue name, default ""
	Visibility   time.Duration // default 5m, an AI pipeline run is slow
	PollInterval time.Duration // default 1s
	MaxAttempts  int           // 0 = unlimited
	RetryDelay   time.Duration // delay per attempt before redelivery, default 2s
	Concurrency  int           // handlers in flight in Run, default 1
	// OnDead is called once a job has failed MaxAttempts times.
	OnDead func(ctx context.Context, job *Job, err error)
	Logger *slog.Logger
	Now    func() time.Time
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Q is a queue handle.
type Q struct {
	db   *sql.DB
	opts Options
}

// New returns a queue handle. The table must exist (Schema).
func New(db *sql.DB, opts Options) *Q {
	opts.defaults()
	return &Q{db: db, opts: opts}
}

// Publish enqueues a job that is visible immediately.
func (q *Q) Publish(ctx context.Context, id string, payload []byte) error {
	now := q.opts.Now().UnixMilli()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO vtq_jobs (id, queue, payload, visible_at, created_at) VALUES (?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		id, q.opts.Queue, payload, now, now)
	if err != nil {
		return fmt.Errorf("vtq: publish %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

// Claim hides the oldest visible job for Visibility and returns it, or
// nil when none is visible.
func (q *Q) Claim(ctx context.Context) (*Job, error) {
	now := q.opts.Now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE vtq_jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM vtq_jobs
			WHERE queue = ? AND visible_at <= ?
			ORDER BY visible_at, created_at
			LIMIT 1
		)
		RETURNING id, queue, payload, created_at, attempts, COALESCE(last_error, '')`,
		now.Add(q.opts.Visibility).UnixMilli(), q.opts.Queue, now.UnixMilli())

	var j Job
	var created int64
	err := row.Scan(&j.ID, &j.Queue, &j.Payload, &created, &j.Attempts, &j.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vtq: claim: %w", err)
	}
	j.CreatedAt = time.UnixMilli(created)
	return &j, nil
}

// Ack removes a finished job.
func (q *Q) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM vtq_jobs WHERE id = ? AND queue = ?`, id, q.opts.Queue)
	return err
}

// Nack makes the job visible again after delay and remembers cause.
func (q *Q) Nack(ctx context.Context, id string, delay time.Duration, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := q.db.ExecContext(ctx,
		`UPDATE vtq_jobs SET visible_at = ?, last_error = ? WHERE id = ? AND queue = ?`,
		q.opts.Now().Add(delay).UnixMilli(), msg, id, q.opts.Queue)
	return err
}

// Extend keeps a long-running job hidden for extra more time.
func (q *Q) Extend(ctx context.Context, id string, extra time.Duration) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE vtq_jobs SET visible_at = ? WHERE id = ? AND queue = ?`,
		q.opts.Now().Add(extra).UnixMilli(), id, q.opts.Queue)
	return err
}

// Remove drops a job whatever its state. It reports whether a row existed.
func (q *Q) Remove(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM vtq_jobs WHERE id = ? AND queue = ?`, id, q.opts.Queue)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Len counts visible and hidden jobs.
func (q *Q) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vtq_jobs WHERE queue = ?`, q.opts.Queue).Scan(&n)
	return n, err
}

// Handler processes one job. nil acks it; an error schedules a retry.
type Handler func(ctx context.Context, job *Job) error

// Run polls until ctx is cancelled, keeping up to Concurrency handlers in
// flight, and waits for them before returning.
func (q *Q) Run(ctx context.Context, handler Handler) {
	log := q.opts.Logger.With("queue", q.opts.Queue)
	log.Info("vtq: consumer started", "visibility", q.opts.Visibility, "concurrency", q.opts.Concurrency)

	g := new(errgroup.Group)
	g.SetLimit(q.opts.Concurrency)
	defer func() {
		g.Wait()
		log.Info("vtq: consumer stopped")
	}()

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for ctx.Err() == nil {
			job, err := q.Claim(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("vtq: claim failed", "error", err)
				}
				break
			}
			if job == nil {
				break
			}
			g.Go(func() error {
				q.handle(ctx, job, handler, log)
				return nil
			})
		}
	}
}

// RunOnce claims and handles visible jobs until none is left. Used by the
// CLI and tests.
func (q *Q) RunOnce(ctx context.Context, handler Handler) (int, error) {
	log := q.opts.Logger.With("queue", q.opts.Queue)
	n := 0
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			return n, err
		}
		if job == nil {
			return n, nil
		}
		q.handle(ctx, job, handler, log)
		n++
	}
}

func (q *Q) handle(ctx context.Context, job *Job, handler Handler, log *slog.Logger) {
	// Ack/Nack must land even when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)

	err := handler(ctx, job)
	if err == nil {
		if ackErr := q.Ack(bg, job.ID); ackErr != nil {
			log.Error("vtq: ack failed", "id", job.ID, "error", ackErr)
		}
		return
	}
	if q.opts.MaxAttempts > 0 && job.Attempts >= q.opts.MaxAttempts {
		log.Warn("vtq: job failed permanently", "id", job.ID, "attempts", job.Attempts, "error", err)
		if q.opts.OnDead != nil {
			q.opts.OnDead(bg, job, err)
		}
		_ = q.Ack(bg, job.ID)
		return
	}
	delay := q.opts.RetryDelay * time.Duration(job.Attempts)
	log.Warn("vtq: job failed, retrying", "id", job.ID, "attempts", job.Attempts, "delay", delay, "error", err)
	if nackErr := q.Nack(bg, job.ID, delay, err); nackErr != nil {
		log.Error("vtq: nack failed", "id", job.ID, "error", nackErr)
	}
}

package vtq_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/structura/dbopen"
	"github.com/hazyhaar/structura/vtq"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, opts vtq.Options) (*vtq.Q, *sql.DB, *clock) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(vtq.Schema))
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	if opts.Now == nil {
		opts.Now = c.Now
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return vtq.New(db, opts), db, c
}

func TestPublishAndClaim(t *testing.T) {
	q, _, _ := setup(t, vtq.Options{Visibility: time.Second})
	ctx := context.Background()

	if err := q.Publish(ctx, "doc_1", []byte(`{"id":"doc_1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, "doc_1", nil); !errors.Is(err, vtq.ErrDuplicate) {
		t.Fatalf("duplicate publish: %v", err)
	}

	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("claim: %v, %v", job, err)
	}
	if job.ID != "doc_1" || string(job.Payload) != `{"id":"doc_1"}` || job.Attempts != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	if again, _ := q.Claim(ctx); again != nil {
		t.Fatal("claimed job should be invisible")
	}
}

func TestVisibilityTimeout(t *testing.T) {
	q, _, c := setup(t, vtq.Options{Visibility: time.Minute})
	ctx := context.Background()
	q.Publish(ctx, "j", nil)
	q.Claim(ctx)

	c.Add(59 * time.Second)
	if job, _ := q.Claim(ctx); job != nil {
		t.Fatal("visible too early")
	}
	c.Add(2 * time.Second)
	job, _ := q.Claim(ctx)
	if job == nil || job.Attempts != 2 {
		t.Fatalf("expected redelivery with attempts=2, got %+v", job)
	}
}

func TestAckNackExtend(t *testing.T) {
	q, _, c := setup(t, vtq.Options{Visibility: time.Minute})
	ctx := context.Background()
	q.Publish(ctx, "a", nil)
	q.Publish(ctx, "b", nil)

	a, _ := q.Claim(ctx)
	if err := q.Ack(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	b, _ := q.Claim(ctx)
	if err := q.Nack(ctx, b.ID, 10*time.Second, errors.New("rate limited")); err != nil {
		t.Fatal(err)
	}
	c.Add(11 * time.Second)
	b2, _ := q.Claim(ctx)
	if b2 == nil || b2.LastError != "rate limited" {
		t.Fatalf("nacked job: %+v", b2)
	}
	if err := q.Extend(ctx, b2.ID, time.Hour); err != nil {
		t.Fatal(err)
	}
	c.Add(2 * time.Minute)
	if job, _ := q.Claim(ctx); job != nil {
		t.Fatal("extended job should stay hidden")
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
	if ok, _ := q.Remove(ctx, "b"); !ok {
		t.Fatal("Remove should report the row")
	}
}

func TestMultipleQueues(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(vtq.Schema))
	ctx := context.Background()
	docs := vtq.New(db, vtq.Options{Queue: "documents"})
	other := vtq.New(db, vtq.Options{Queue: "other"})
	docs.Publish(ctx, "x", nil)

	if job, _ := other.Claim(ctx); job != nil {
		t.Fatal("queues must be isolated")
	}
	if job, _ := docs.Claim(ctx); job == nil {
		t.Fatal("expected job on documents queue")
	}
}

func TestRunOnce_RetriesThenDead(t *testing.T) {
	var dead atomic.Int32
	var deadErr error
	q, _, c := setup(t, vtq.Options{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
		OnDead: func(_ context.Context, job *vtq.Job, err error) {
			dead.Add(1)
			deadErr = err
		},
	})
	ctx := context.Background()
	q.Publish(ctx, "bad", nil)

	boom := errors.New("provider down")
	fail := func(context.Context, *vtq.Job) error { return boom }
	for i := 0; i < 3; i++ {
		if _, err := q.RunOnce(ctx, fail); err != nil {
			t.Fatal(err)
		}
		c.Add(10 * time.Second)
	}
	if dead.Load() != 1 || !errors.Is(deadErr, boom) {
		t.Fatalf("OnDead calls=%d err=%v", dead.Load(), deadErr)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("dead job should be removed, Len=%d", n)
	}
}

func TestRun_ProcessesAll(t *testing.T) {
	q, _, _ := setup(t, vtq.Options{PollInterval: 5 * time.Millisecond, Concurrency: 3, Now: time.Now})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		q.Publish(ctx, id, nil)
	}

	var done atomic.Int32
	finished := make(chan struct{})
	go func() {
		q.Run(ctx, func(context.Context, *vtq.Job) error {
			done.Add(1)
			return nil
		})
		close(finished)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for done.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-finished
	if done.Load() != 5 {
		t.Fatalf("processed %d jobs, want 5", done.Load())
	}
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Fatalf("Len = %d after run", n)
	}
}

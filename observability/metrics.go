// Package observability records what structura does: a buffered SQLite
// metrics timeseries, a document event log, and an in-process Monitor for
// operation timings, cache efficiency and runtime samples.
//
// Persistence is best effort. Failures are logged and never reach callers.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Metric is one timeseries datapoint.
type Metric struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Labels    map[string]string
	Unit      string // "milliseconds", "count", "bytes", "megabytes"
}

// Metric names written by structura.
const (
	MetricOperationMs  = "structura.operation.duration_ms"
	MetricCacheHit     = "structura.cache.hit"
	MetricCacheMiss    = "structura.cache.miss"
	MetricGoroutines   = "structura.runtime.goroutines"
	MetricHeapMB       = "structura.runtime.heap_mb"
	MetricDocumentSize = "structura.document.bytes"
)

// MetricsManager buffers metrics and flushes them in one transaction when
// the buffer fills or every flushInterval.
type MetricsManager struct {
	db            *sql.DB
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []*Metric
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMetricsManager starts the flush loop. 100 / 5s suits a single node.
func NewMetricsManager(db *sql.DB, bufferSize int, flushInterval time.Duration) *MetricsManager {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	mm := &MetricsManager{
		db:            db,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		logger:        slog.Default(),
		buffer:        make([]*Metric, 0, bufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go mm.loop()
	return mm
}

// Record queues m. A nil manager is a no-op so optional wiring stays simple.
func (mm *MetricsManager) Record(m *Metric) {
	if mm == nil {
		return
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.buffer = append(mm.buffer, m)
	if len(mm.buffer) >= mm.bufferSize {
		mm.flushLocked()
	}
}

// RecordSimple records an unlabelled value now.
func (mm *MetricsManager) RecordSimple(name string, value float64, unit string) {
	mm.Record(&Metric{Name: name, Timestamp: time.Now(), Value: value, Unit: unit})
}

// Flush writes the buffer now.
func (mm *MetricsManager) Flush() {
	mm.mu.Lock()
	mm.flushLocked()
	mm.mu.Unlock()
}

// Query returns metrics newest first. Empty name matches all; nil bounds
// are open.
func (mm *MetricsManager) Query(ctx context.Context, name string, since, until *time.Time, limit int) ([]*Metric, error) {
	q := "SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries WHERE 1=1"
	var args []any
	if name != "" {
		q += " AND metric_name = ?"
		args = append(args, name)
	}
	if since != nil {
		q += " AND timestamp >= ?"
		args = append(args, since.UnixMilli())
	}
	if until != nil {
		q += " AND timestamp <= ?"
		args = append(args, until.UnixMilli())
	}
	q += " ORDER BY timestamp DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := mm.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var m Metric
		var ts int64
		var labels, unit sql.NullString
		if err := rows.Scan(&m.Name, &ts, &m.Value, &labels, &unit); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts)
		m.Unit = unit.String
		if labels.Valid {
			_ = json.Unmarshal([]byte(labels.String), &m.Labels)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than retention.
func (mm *MetricsManager) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := mm.db.ExecContext(ctx, "DELETE FROM metrics_timeseries WHERE timestamp < ?",
		time.Now().Add(-retention).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes and stops the loop. Safe to call twice.
func (mm *MetricsManager) Close() error {
	mm.once.Do(func() {
		close(mm.stop)
		<-mm.done
	})
	return nil
}

func (mm *MetricsManager) loop() {
	defer close(mm.done)
	t := time.NewTicker(mm.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-mm.stop:
			mm.Flush()
			return
		case <-t.C:
			mm.Flush()
		}
	}
}

func (mm *MetricsManager) flushLocked() {
	if len(mm.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		mm.logger.Error("observability metrics: begin tx", "error", err)
		return
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		mm.logger.Error("observability metrics: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, m := range mm.buffer {
		var labels sql.NullString
		if len(m.Labels) > 0 {
			if b, err := json.Marshal(m.Labels); err == nil {
				labels = sql.NullString{String: string(b), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, m.Name, m.Timestamp.UnixMilli(), m.Value, labels, m.Unit); err != nil {
			mm.logger.Error("observability metrics: insert", "error", err, "metric", m.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		mm.logger.Error("observability metrics: commit", "error", err)
	}
	mm.buffer = mm.buffer[:0]
}

package observability

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"
)

const historyLimit = 1000

// Operation is one timed call.
type Operation struct {
	Name       string    `json:"operation"`
	Start      time.Time `json:"timestamp"`
	DurationMs float64   `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	HeapMB     float64   `json:"heap_mb"`
	Goroutines int       `json:"goroutines"`
}

// Sample is one runtime snapshot.
type Sample struct {
	At         time.Time `json:"at"`
	Goroutines int       `json:"goroutines"`
	HeapMB     float64   `json:"heap_mb"`
	SysMB      float64   `json:"sys_mb"`
	NumGC      uint32    `json:"num_gc"`
}

// CollectSample reads the Go runtime counters.
func CollectSample() Sample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Sample{
		At:         time.Now(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
		SysMB:      float64(mem.Sys) / (1 << 20),
		NumGC:      mem.NumGC,
	}
}

// CacheStats are hit/miss counters of the AI result cache.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// OpStats aggregates one operation name.
type OpStats struct {
	Count           int     `json:"count"`
	SuccessCount    int     `json:"success_count"`
	FailureCount    int     `json:"failure_count"`
	TotalDurationMs float64 `json:"total_duration_ms"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
}

// Range is current/average/min/max over the sample history.
type Range struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// SystemSummary covers the runtime samples.
type SystemSummary struct {
	Goroutines     Range   `json:"goroutines"`
	HeapMB         Range   `json:"heap_mb"`
	Samples        int     `json:"samples"`
	MonitoringSecs float64 `json:"monitoring_duration_seconds"`
}

// Summary is the performance report.
type Summary struct {
	TotalOperations      int                `json:"total_operations"`
	SuccessfulOperations int                `json:"successful_operations"`
	FailedOperations     int                `json:"failed_operations"`
	SuccessRate          float64            `json:"success_rate"`
	AvgDurationMs        float64            `json:"average_duration_ms"`
	MinDurationMs        float64            `json:"min_duration_ms"`
	MaxDurationMs        float64            `json:"max_duration_ms"`
	TotalProcessingMs    float64            `json:"total_processing_time_ms"`
	Cache                CacheStats         `json:"cache_stats"`
	ByOperation          map[string]OpStats `json:"operations_by_type"`
	Recent               []Operation        `json:"recent_operations"`
	System               *SystemSummary     `json:"system_stats,omitempty"`
}

// Monitor tracks operation timings, cache efficiency and runtime samples in
// memory, mirroring durations into a MetricsManager when one is set. Both
// histories keep the last 1000 entries.
type Monitor struct {
	metrics *MetricsManager
	logger  *slog.Logger
	now     func() time.Time
	sample  func() Sample

	mu      sync.Mutex
	ops     []Operation
	samples []Sample
	hits    int64
	misses  int64
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMetrics mirrors operations and cache events into mm.
func WithMetrics(mm *MetricsManager) MonitorOption { return func(m *Monitor) { m.metrics = mm } }

// WithMonitorLogger sets the logger.
func WithMonitorLogger(l *slog.Logger) MonitorOption { return func(m *Monitor) { m.logger = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MonitorOption { return func(m *Monitor) { m.now = now } }

func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{logger: slog.Default(), now: time.Now, sample: CollectSample}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Span is an operation in progress.
type Span struct {
	m     *Monitor
	name  string
	start time.Time
}

// Start begins timing name. A nil Monitor returns a Span whose End is a
// no-op.
func (m *Monitor) Start(name string) *Span {
	if m == nil {
		return &Span{name: name}
	}
	return &Span{m: m, name: name, start: m.now()}
}

// End records the span outcome.
func (s *Span) End(err error) Operation {
	if s.m == nil {
		return Operation{Name: s.name, Success: err == nil}
	}
	m := s.m
	smp := m.sample()
	op := Operation{
		Name:       s.name,
		Start:      s.start,
		DurationMs: float64(m.now().Sub(s.start).Microseconds()) / 1000,
		Success:    err == nil,
		HeapMB:     smp.HeapMB,
		Goroutines: smp.Goroutines,
	}
	if err != nil {
		op.Error = err.Error()
	}

	m.mu.Lock()
	m.ops = appendBounded(m.ops, op)
	m.mu.Unlock()

	m.logger.Debug("operation completed", "operation", op.Name, "duration_ms", op.DurationMs, "success", op.Success)
	m.metrics.Record(&Metric{
		Name:      MetricOperationMs,
		Timestamp: op.Start,
		Value:     op.DurationMs,
		Labels:    map[string]string{"operation": op.Name, "success": strconv.FormatBool(op.Success)},
		Unit:      "milliseconds",
	})
	return op
}

// Track times fn under name.
func (m *Monitor) Track(name string, fn func() error) error {
	span := m.Start(name)
	err := fn()
	span.End(err)
	return err
}

// CacheHit counts a cache hit.
func (m *Monitor) CacheHit() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
	m.metrics.RecordSimple(MetricCacheHit, 1, "count")
}

// CacheMiss counts a cache miss.
func (m *Monitor) CacheMiss() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
	m.metrics.RecordSimple(MetricCacheMiss, 1, "count")
}

// CacheStats returns the counters and hit rate.
func (m *Monitor) CacheStats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheStatsLocked()
}

func (m *Monitor) cacheStatsLocked() CacheStats {
	cs := CacheStats{Hits: m.hits, Misses: m.misses}
	if total := m.hits + m.misses; total > 0 {
		cs.HitRate = float64(m.hits) / float64(total)
	}
	return cs
}

// RecordSample stores one runtime snapshot.
func (m *Monitor) RecordSample(s Sample) {
	m.mu.Lock()
	m.samples = appendBounded(m.samples, s)
	m.mu.Unlock()
}

// Sample takes and stores a runtime snapshot, mirroring it to metrics.
func (m *Monitor) Sample() Sample {
	s := m.sample()
	m.RecordSample(s)
	m.metrics.Record(&Metric{Name: MetricGoroutines, Timestamp: s.At, Value: float64(s.Goroutines), Unit: "count"})
	m.metrics.Record(&Metric{Name: MetricHeapMB, Timestamp: s.At, Value: s.HeapMB, Unit: "megabytes"})
	return s
}

// RunSampler samples every interval until ctx is cancelled.
func (m *Monitor) RunSampler(ctx context.Context, interval time.Duration) {
	m.logger.Info("runtime sampling started", "interval", interval)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("runtime sampling stopped")
			return
		case <-t.C:
			m.Sample()
		}
	}
}

// Summary aggregates everything recorded so far.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		TotalOperations: len(m.ops),
		Cache:           m.cacheStatsLocked(),
		ByOperation:     make(map[string]OpStats),
	}
	var succDur []float64
	for _, op := range m.ops {
		st := s.ByOperation[op.Name]
		st.Count++
		st.TotalDurationMs += op.DurationMs
		if op.Success {
			st.SuccessCount++
			succDur = append(succDur, op.DurationMs)
		} else {
			st.FailureCount++
		}
		st.AvgDurationMs = st.TotalDurationMs / float64(st.Count)
		s.ByOperation[op.Name] = st
	}
	s.SuccessfulOperations = len(succDur)
	s.FailedOperations = s.TotalOperations - s.SuccessfulOperations
	if s.TotalOperations > 0 {
		s.SuccessRate = float64(s.SuccessfulOperations) / float64(s.TotalOperations)
	}
	if r, ok := rangeOf(succDur); ok {
		s.AvgDurationMs, s.MinDurationMs, s.MaxDurationMs = r.Average, r.Min, r.Max
		s.TotalProcessingMs = r.Average * float64(len(succDur))
	}

	recent := m.ops
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	s.Recent = append([]Operation(nil), recent...)

	if len(m.samples) > 0 {
		g := make([]float64, len(m.samples))
		h := make([]float64, len(m.samples))
		for i, smp := range m.samples {
			g[i], h[i] = float64(smp.Goroutines), smp.HeapMB
		}
		gr, _ := rangeOf(g)
		hr, _ := rangeOf(h)
		s.System = &SystemSummary{
			Goroutines:     gr,
			HeapMB:         hr,
			Samples:        len(m.samples),
			MonitoringSecs: m.samples[len(m.samples)-1].At.Sub(m.samples[0].At).Seconds(),
		}
	}
	return s
}

// Clear forgets all operations, samples and cache counters.
func (m *Monitor) Clear() {
	m.mu.Lock()
	m.ops, m.samples, m.hits, m.misses = nil, nil, 0, 0
	m.mu.Unlock()
	m.logger.Info("performance metrics cleared")
}

// Export writes the summary as "json" or the operation history as "csv".
func (m *Monitor) Export(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m.Summary())
	case "csv":
		m.mu.Lock()
		ops := append([]Operation(nil), m.ops...)
		m.mu.Unlock()
		cw := csv.NewWriter(w)
		cw.Write([]string{"Operation", "Duration (ms)", "Success", "Heap (MB)", "Goroutines", "Timestamp"})
		for _, op := range ops {
			cw.Write([]string{
				op.Name,
				strconv.FormatFloat(op.DurationMs, 'f', 2, 64),
				strconv.FormatBool(op.Success),
				strconv.FormatFloat(op.HeapMB, 'f', 1, 64),
				strconv.Itoa(op.Goroutines),
				op.Start.Format(time.RFC3339),
			})
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("observability: unsupported export format %q", format)
	}
}

func appendBounded[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyLimit {
		s = append(s[:0:0], s[len(s)-historyLimit:]...)
	}
	return s
}

func rangeOf(vals []float64) (Range, bool) {
	if len(vals) == 0 {
		return Range{}, false
	}
	r := Range{Current: vals[len(vals)-1], Min: vals[0], Max: vals[0]}
	var sum float64
	for _, v := range vals {
		sum += v
		r.Min = min(r.Min, v)
		r.Max = max(r.Max, v)
	}
	r.Average = sum / float64(len(vals))
	return r, true
}

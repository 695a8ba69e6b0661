package observability

import (
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// Log is an append-only, in-memory execution history. Every metric is derived
// from the retained events when it is read.
type Log struct {
	mu         sync.RWMutex
	events     []core.ExecutionEvent
	executions map[string]int
	seq        uint64
	maxEvents  int
	logger     *zap.Logger
	mirror     bool
	now        func() time.Time
}

// Option configures a Log
type Option func(*Log)

// WithMaxEvents drops the oldest events once more than n are held. Zero keeps everything.
func WithMaxEvents(n int) Option {
	return func(l *Log) { l.maxEvents = n }
}

// WithMirror writes every recorded event to the logger as well
func WithMirror(enabled bool) Option {
	return func(l *Log) { l.mirror = enabled }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// NewLog creates a new execution log
func NewLog(logger *zap.Logger, opts ...Option) *Log {
	l := &Log{
		executions: make(map[string]int),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an event, assigning its sequence number and timestamp
func (l *Log) Record(ev core.ExecutionEvent) core.ExecutionEvent {
	ev = clone(ev)

	l.mu.Lock()
	l.seq++
	ev.Seq = l.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}
	l.events = append(l.events, ev)
	if ev.ExecutionID != "" {
		l.executions[ev.ExecutionID]++
	}
	if l.maxEvents > 0 && len(l.events) > l.maxEvents {
		l.evict(len(l.events) - l.maxEvents)
	}
	l.mu.Unlock()

	if l.mirror {
		l.logger.Info("Execution event",
			zap.Uint64("seq", ev.Seq),
			zap.String("execution_id", ev.ExecutionID),
			zap.String("agent", ev.AgentID),
			zap.String("kind", string(ev.Kind)),
			zap.String("action", ev.Action),
			zap.Duration("duration", ev.Duration),
			zap.Float64("cost", ev.Cost),
			zap.Bool("success", ev.Success),
			zap.String("model_tier", string(ev.ModelTier)),
			zap.Bool("cached", ev.Cached),
			zap.Any("detail", ev.Detail))
	}
	return clone(ev)
}

// clone copies the detail map so stored events never share it with callers
func clone(ev core.ExecutionEvent) core.ExecutionEvent {
	if ev.Detail != nil {
		ev.Detail = maps.Clone(ev.Detail)
	}
	return ev
}

// evict drops the n oldest events. Caller holds the write lock.
func (l *Log) evict(n int) {
	for _, ev := range l.events[:n] {
		if ev.ExecutionID == "" {
			continue
		}
		if l.executions[ev.ExecutionID]--; l.executions[ev.ExecutionID] <= 0 {
			delete(l.executions, ev.ExecutionID)
		}
	}
	kept := make([]core.ExecutionEvent, len(l.events)-n, cap(l.events))
	copy(kept, l.events[n:])
	l.events = kept
}

// Timeline returns every retained event in insertion order
func (l *Log) Timeline() []core.ExecutionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]core.ExecutionEvent, len(l.events))
	for i, ev := range l.events {
		out[i] = clone(ev)
	}
	return out
}

// Query returns matching events in insertion order, keeping only the most recent Limit
func (l *Log) Query(filter core.TimelineFilter) []core.ExecutionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]core.ExecutionEvent, 0)
	for _, ev := range l.events {
		if filter.AgentID != "" && ev.AgentID != filter.AgentID {
			continue
		}
		if filter.ExecutionID != "" && ev.ExecutionID != filter.ExecutionID {
			continue
		}
		out = append(out, ev)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	for i := range out {
		out[i] = clone(out[i])
	}
	return out
}

// HasExecution reports whether any retained event belongs to the execution
func (l *Log) HasExecution(executionID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.executions[executionID] > 0
}

// Len returns the number of retained events
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

package postgres

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxMetricsPerAction bounds the in-memory metrics retained per action type.
const maxMetricsPerAction = 1000

// QueryMetrics describes one executed query. Metrics are held in a bounded
// in-memory ring for introspection and are never persisted by default.
type QueryMetrics struct {
	ID             uuid.UUID
	Query          string
	Action         string
	UserID         string
	Endpoint       string
	ExecutionTime  time.Duration
	Timestamp      time.Time
	ParameterCount int
	RowCount       int
	Success        bool
}

// QueryRing keeps the most recent metrics per action type.
type QueryRing struct {
	mu     sync.Mutex
	max    int
	byType map[string][]QueryMetrics
}

// NewQueryRing creates a ring retaining at most max entries per action type.
func NewQueryRing(max int) *QueryRing {
	return &QueryRing{
		max:    max,
		byType: make(map[string][]QueryMetrics),
	}
}

// Record appends a metrics row, evicting the oldest entry of the same
// action type when the ring is full.
func (r *QueryRing) Record(m QueryMetrics) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	action := m.Action
	if action == "" {
		action = "unknown"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := append(r.byType[action], m)
	if len(entries) > r.max {
		entries = entries[len(entries)-r.max:]
	}
	r.byType[action] = entries
}

// Snapshot returns a copy of the retained metrics for one action type.
func (r *QueryRing) Snapshot(action string) []QueryMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.byType[action]
	out := make([]QueryMetrics, len(entries))
	copy(out, entries)
	return out
}

// Actions returns the action types with retained metrics.
func (r *QueryRing) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byType))
	for action := range r.byType {
		out = append(out, action)
	}
	return out
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// healthProbeTimeout bounds one health-check ping.
const healthProbeTimeout = 2 * time.Second

// PoolStatus describes one pool at probe time.
type PoolStatus struct {
	Name      string
	Healthy   bool
	OpenConns int
	IdleConns int
	InUse     int
	WaitCount int64
	ProbeTime time.Duration
	CheckedAt time.Time
}

// PoolStats is a point-in-time snapshot of every pool plus the retained
// query metrics, returned by GetPoolStats.
type PoolStats struct {
	Pools       []PoolStatus
	QueryTypes  []string
	CollectedAt time.Time
}

// StartHealthChecks launches the recurring probe of every pool. Probe
// failures are logged and surfaced to the monitor hook; they never remove
// a pool from rotation, since replica eligibility is decided by the
// acquisition-time probe.
func (m *Manager) StartHealthChecks() {
	if !m.cfg.HealthCheckEnabled || m.healthCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.healthCancel = cancel
	m.healthDone = make(chan struct{})

	go func() {
		defer close(m.healthDone)
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAllPools(ctx)
			}
		}
	}()

	log.Info().Dur("interval", m.cfg.HealthCheckInterval).Msg("Pool health checks started")
}

// StopHealthChecks stops the recurring probe and waits for it to exit.
func (m *Manager) StopHealthChecks() {
	if m.healthCancel == nil {
		return
	}
	m.healthCancel()
	<-m.healthDone
	m.healthCancel = nil
	m.healthDone = nil
}

func (m *Manager) checkAllPools(ctx context.Context) {
	m.checkPool(ctx, poolPrimary, m.primary)
	for i, replica := range m.replicas {
		m.checkPool(ctx, m.replicaNames[i], replica)
	}
}

func (m *Manager) checkPool(ctx context.Context, name string, db *sql.DB) {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(probeCtx)
	elapsed := time.Since(start)

	stats := db.Stats()
	healthy := err == nil

	poolOpenConns.WithLabelValues(name).Set(float64(stats.OpenConnections))
	poolIdleConns.WithLabelValues(name).Set(float64(stats.Idle))
	poolWaitCount.WithLabelValues(name).Set(float64(stats.WaitCount))
	if healthy {
		poolHealthy.WithLabelValues(name).Set(1)
	} else {
		poolHealthy.WithLabelValues(name).Set(0)
		log.Warn().Err(err).Str("pool", name).Dur("probe", elapsed).Msg("Pool health probe failed")
	}

	if m.MonitorHook != nil {
		m.MonitorHook(name, healthy, stats)
	}
}

// GetPoolStats returns the current status of every pool along with the
// action types that have retained query metrics.
func (m *Manager) GetPoolStats(ctx context.Context) PoolStats {
	out := PoolStats{CollectedAt: time.Now()}
	out.Pools = append(out.Pools, m.poolStatus(ctx, poolPrimary, m.primary))
	for i, replica := range m.replicas {
		out.Pools = append(out.Pools, m.poolStatus(ctx, m.replicaNames[i], replica))
	}
	out.QueryTypes = m.metrics.Actions()
	return out
}

// QueryMetricsFor returns the retained metrics for one action type.
func (m *Manager) QueryMetricsFor(action string) []QueryMetrics {
	return m.metrics.Snapshot(action)
}

func (m *Manager) poolStatus(ctx context.Context, name string, db *sql.DB) PoolStatus {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err := db.PingContext(probeCtx)
	stats := db.Stats()

	return PoolStatus{
		Name:      name,
		Healthy:   err == nil,
		OpenConns: stats.OpenConnections,
		IdleConns: stats.Idle,
		InUse:     stats.InUse,
		WaitCount: stats.WaitCount,
		ProbeTime: time.Since(start),
		CheckedAt: time.Now(),
	}
}

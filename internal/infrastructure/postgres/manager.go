// Package postgres provides the pooled database access layer: a
// write-capable primary, read replicas with probe-based fallback, query
// instrumentation and audit wiring.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver with SCRAM-SHA-256 support
	"github.com/rs/zerolog/log"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
)

// replicaProbeTimeout bounds the liveness ping at acquisition time.
const replicaProbeTimeout = 500 * time.Millisecond

// AuditSink receives access, mutation, transaction and performance events
// from the query path. Implementations must never block or fail the
// calling operation.
type AuditSink interface {
	LogDataAccess(tc shared.TransactionContext, ev audit.DataAccessEvent)
	LogDataModification(tc shared.TransactionContext, ev audit.DataModificationEvent)
	LogTransaction(tc shared.TransactionContext, ev audit.TransactionEvent)
	LogPerformanceIssue(tc shared.TransactionContext, ev audit.PerformanceEvent)
}

// QueryResult carries the outcome of one executed query.
type QueryResult struct {
	Rows          []map[string]interface{}
	RowCount      int
	ExecutionTime time.Duration
}

// Manager owns the primary pool and zero or more replica pools and routes
// operations between them.
type Manager struct {
	cfg          *config.DatabaseConfig
	primary      *sql.DB
	replicas     []*sql.DB
	replicaNames []string

	mu   sync.RWMutex
	sink AuditSink

	metrics *QueryRing

	healthCancel context.CancelFunc
	healthDone   chan struct{}

	// MonitorHook, when set, is invoked after every health probe.
	MonitorHook func(pool string, healthy bool, stats sql.DBStats)
}

// NewManager opens the primary pool and any configured replica pools.
// The primary must be reachable; replicas that fail the initial ping stay
// in the set and are skipped by the acquisition-time probe until they
// recover.
func NewManager(cfg *config.DatabaseConfig) (*Manager, error) {
	primary, err := openPool(cfg.ConnectionString(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := primary.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping primary: %w", err)
	}

	m := &Manager{
		cfg:     cfg,
		primary: primary,
		metrics: NewQueryRing(maxMetricsPerAction),
	}

	for i, dsn := range cfg.ReplicaConnectionStrings() {
		name := fmt.Sprintf("replica-%d", i)
		replica, err := openPool(dsn, cfg)
		if err != nil {
			log.Warn().Err(err).Str("pool", name).Msg("Failed to open replica pool; skipping")
			continue
		}
		m.replicas = append(m.replicas, replica)
		m.replicaNames = append(m.replicaNames, name)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int("replicas", len(m.replicas)).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Database pools established")

	return m, nil
}

func openPool(dsn string, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// SetAuditSink wires the audit logger after construction. The audit
// subsystem persists through this manager, so it is attached once both
// sides exist.
func (m *Manager) SetAuditSink(sink AuditSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

func (m *Manager) auditSink() AuditSink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sink
}

// Primary exposes the write pool for collaborators that must bypass the
// audited query path, such as the audit repository itself.
func (m *Manager) Primary() *sql.DB {
	return m.primary
}

// GetWriteConnection acquires a connection from the primary pool. The
// caller must release it on every exit path.
func (m *Manager) GetWriteConnection(ctx context.Context) (*sql.Conn, error) {
	if m.primary == nil {
		return nil, shared.ErrPoolUnavailable
	}
	acquireCtx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()
	conn, err := m.primary.Conn(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPoolUnavailable, err)
	}
	return conn, nil
}

// GetReadConnection acquires a connection from the first replica that
// answers a liveness probe, falling back to the primary when no replica
// responds.
func (m *Manager) GetReadConnection(ctx context.Context) (*sql.Conn, error) {
	for i, replica := range m.replicas {
		conn, err := m.probeReplica(ctx, replica)
		if err != nil {
			log.Debug().Err(err).Str("pool", m.replicaNames[i]).Msg("Replica probe failed; trying next")
			continue
		}
		return conn, nil
	}
	return m.GetWriteConnection(ctx)
}

func (m *Manager) probeReplica(ctx context.Context, replica *sql.DB) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()
	conn, err := replica.Conn(acquireCtx)
	if err != nil {
		return nil, err
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, replicaProbeTimeout)
	defer probeCancel()
	if err := conn.PingContext(probeCtx); err != nil {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release unhealthy replica connection")
		}
		return nil, err
	}
	return conn, nil
}

// Query executes a read or write statement, measures it, releases the
// connection on all paths and emits audit entries when the transaction
// context demands them. The redacted query and timing are logged even
// when execution fails.
func (m *Manager) Query(ctx context.Context, tc shared.TransactionContext, query string, args []interface{}, useReplica bool) (*QueryResult, error) {
	var conn *sql.Conn
	var err error
	if useReplica {
		conn, err = m.GetReadConnection(ctx)
	} else {
		conn, err = m.GetWriteConnection(ctx)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release connection")
		}
	}()

	stmtCtx, cancel := context.WithTimeout(ctx, m.cfg.StatementTimeout)
	defer cancel()

	start := time.Now()
	rows, err := conn.QueryContext(stmtCtx, query, args...)
	elapsed := time.Since(start)

	redacted := RedactQuery(query)
	pool := poolLabel(useReplica)

	if err != nil {
		m.record(tc, redacted, elapsed, len(args), 0, false)
		queryErrorsTotal.WithLabelValues(tc.Action, pool).Inc()
		m.auditQuery(tc, redacted, 0, elapsed, err)
		log.Error().Err(err).Str("query", redacted).Dur("elapsed", elapsed).Msg("Query failed")
		return nil, fmt.Errorf("%w: %v", shared.ErrQueryFailed, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close rows")
		}
	}()

	result, err := scanRows(rows)
	if err != nil {
		m.record(tc, redacted, elapsed, len(args), 0, false)
		m.auditQuery(tc, redacted, 0, elapsed, err)
		return nil, fmt.Errorf("%w: %v", shared.ErrQueryFailed, err)
	}
	result.ExecutionTime = elapsed

	m.record(tc, redacted, elapsed, len(args), result.RowCount, true)
	queryDuration.WithLabelValues(tc.Action, pool).Observe(elapsed.Seconds())
	m.auditQuery(tc, redacted, result.RowCount, elapsed, nil)

	if elapsed > m.cfg.SlowQueryThreshold {
		m.auditSlow(tc, redacted, elapsed)
	}

	return result, nil
}

// Exec executes a mutation on the primary and returns the affected row count.
func (m *Manager) Exec(ctx context.Context, tc shared.TransactionContext, query string, args ...interface{}) (int64, error) {
	conn, err := m.GetWriteConnection(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release connection")
		}
	}()

	stmtCtx, cancel := context.WithTimeout(ctx, m.cfg.StatementTimeout)
	defer cancel()

	start := time.Now()
	res, err := conn.ExecContext(stmtCtx, query, args...)
	elapsed := time.Since(start)

	redacted := RedactQuery(query)
	if err != nil {
		m.record(tc, redacted, elapsed, len(args), 0, false)
		queryErrorsTotal.WithLabelValues(tc.Action, poolPrimary).Inc()
		m.auditQuery(tc, redacted, 0, elapsed, err)
		return 0, fmt.Errorf("%w: %v", shared.ErrQueryFailed, err)
	}

	affected, _ := res.RowsAffected()
	m.record(tc, redacted, elapsed, len(args), int(affected), true)
	queryDuration.WithLabelValues(tc.Action, poolPrimary).Observe(elapsed.Seconds())
	m.auditQuery(tc, redacted, int(affected), elapsed, nil)

	if elapsed > m.cfg.SlowQueryThreshold {
		m.auditSlow(tc, redacted, elapsed)
	}

	return affected, nil
}

// Transaction runs fn inside a transaction on the primary. The transaction
// commits when fn returns nil and rolls back on any error; the connection
// is released in all cases. Begin, commit and rollback are audited when
// the context demands it.
func (m *Manager) Transaction(ctx context.Context, tc shared.TransactionContext, fn func(tx *sql.Tx) error) error {
	conn, err := m.GetWriteConnection(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release transaction connection")
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin: %v", shared.ErrTransactionFailed, err)
	}
	m.auditTx(tc, audit.ActionBegin, "")

	committed := false
	defer func() {
		if committed {
			return
		}
		// Covers fn panics as well: the rollback runs before the
		// connection release above.
		if rbErr := tx.Rollback(); rbErr != nil {
			if !errors.Is(rbErr, sql.ErrTxDone) {
				log.Warn().Err(rbErr).Msg("Deferred rollback failed")
			}
			return
		}
		// The rollback only succeeds here when the transaction was
		// still live, which means fn panicked past the error paths.
		m.auditTx(tc, audit.ActionRollback, "transaction aborted by panic")
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.auditTx(tc, audit.ActionRollback, rbErr.Error())
			return errors.Join(
				fmt.Errorf("rollback failed: %w", rbErr),
				fmt.Errorf("%w: %v", shared.ErrTransactionFailed, err),
			)
		}
		m.auditTx(tc, audit.ActionRollback, err.Error())
		return fmt.Errorf("%w: %v", shared.ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		m.auditTx(tc, audit.ActionRollback, err.Error())
		return fmt.Errorf("%w: failed to commit: %v", shared.ErrTransactionFailed, err)
	}
	committed = true
	m.auditTx(tc, audit.ActionCommit, "")

	return nil
}

// Close drains and closes every pool.
func (m *Manager) Close() error {
	m.StopHealthChecks()

	var errs []error
	for i, replica := range m.replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", m.replicaNames[i], err))
		}
	}
	if m.primary != nil {
		if err := m.primary.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close primary: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Msg("Database pools closed")
	return nil
}

func (m *Manager) auditQuery(tc shared.TransactionContext, redacted string, rowCount int, elapsed time.Duration, qerr error) {
	if !tc.AuditRequired {
		return
	}
	sink := m.auditSink()
	if sink == nil {
		return
	}
	ev := audit.DataAccessEvent{
		Resource:      tc.Action,
		RedactedQuery: redacted,
		RowCount:      rowCount,
		ExecutionTime: elapsed,
		Success:       qerr == nil,
	}
	if qerr != nil {
		ev.ErrorDetail = qerr.Error()
	}
	sink.LogDataAccess(tc, ev)
}

func (m *Manager) auditSlow(tc shared.TransactionContext, redacted string, elapsed time.Duration) {
	sink := m.auditSink()
	if sink == nil {
		return
	}
	sink.LogPerformanceIssue(tc, audit.PerformanceEvent{
		Operation:     tc.Action,
		RedactedQuery: redacted,
		ExecutionTime: elapsed,
		Threshold:     m.cfg.SlowQueryThreshold,
	})
}

func (m *Manager) auditTx(tc shared.TransactionContext, phase audit.Action, detail string) {
	if !tc.AuditRequired {
		return
	}
	sink := m.auditSink()
	if sink == nil {
		return
	}
	sink.LogTransaction(tc, audit.TransactionEvent{
		Phase:    phase,
		Resource: tc.Action,
		Detail:   detail,
	})
}

func (m *Manager) record(tc shared.TransactionContext, redacted string, elapsed time.Duration, paramCount, rowCount int, ok bool) {
	m.metrics.Record(QueryMetrics{
		Query:          redacted,
		Action:         tc.Action,
		UserID:         tc.UserID,
		Endpoint:       tc.Metadata.Endpoint,
		ExecutionTime:  elapsed,
		Timestamp:      time.Now(),
		ParameterCount: paramCount,
		RowCount:       rowCount,
		Success:        ok,
	})
}

func scanRows(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, isBytes := values[i].([]byte); isBytes {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

const (
	poolPrimary = "primary"
	poolReplica = "replica"
)

func poolLabel(useReplica bool) string {
	if useReplica {
		return poolReplica
	}
	return poolPrimary
}

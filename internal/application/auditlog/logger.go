// Package auditlog implements the buffered, batch-persisted audit trail
// with rule-based alerting.
package auditlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	appalert "github.com/Riareddie/CHAKSHU-sub001/internal/application/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/shared"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/crypto"
)

// alertTag marks entries generated by rule firings. Tagged entries are not
// re-evaluated, which keeps a firing from feeding itself.
const alertTag = "alert"

// detailsKeyID selects the key used when detail payload encryption is on.
const detailsKeyID = "default"

// flushTimeout bounds one persistence attempt.
const flushTimeout = 10 * time.Second

// Logger buffers audit entries, flushes them in batches, and evaluates
// alert rules against each entry. Log methods never block on storage and
// never fail the calling operation.
type Logger struct {
	repo   audit.Repository
	engine *appalert.Engine
	enc    *crypto.Service
	cfg    config.AuditConfig

	mu     sync.Mutex
	buffer []*audit.Entry

	flushNow chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Logger. The engine and encryption service may be nil;
// alerting and detail encryption are then disabled.
func New(repo audit.Repository, engine *appalert.Engine, enc *crypto.Service, cfg config.AuditConfig) *Logger {
	return &Logger{
		repo:     repo,
		engine:   engine,
		enc:      enc,
		cfg:      cfg,
		flushNow: make(chan struct{}, 1),
	}
}

// Start launches the background flush loop.
func (l *Logger) Start() {
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.flush()
			case <-l.flushNow:
				l.flush()
			}
		}
	}()

	log.Info().Dur("interval", l.cfg.FlushInterval).Msg("Audit flush loop started")
}

// Close stops the flush loop and drains the buffer.
func (l *Logger) Close() error {
	if l.cancel != nil {
		l.cancel()
		<-l.done
		l.cancel = nil
	}
	return l.flushOnce()
}

// LogAuthentication records a login or logout attempt.
func (l *Logger) LogAuthentication(ev audit.AuthenticationEvent) {
	e := audit.NewEntry(audit.CategoryAuthentication, ev.Action, "auth")
	e.UserID = ev.UserID
	e.SessionID = ev.SessionID
	e.IPAddress = ev.IPAddress
	e.UserAgent = ev.UserAgent
	e.Details["success"] = ev.Success
	if ev.Reason != "" {
		e.Details["reason"] = ev.Reason
	}
	if ev.Action == audit.ActionLogin && !ev.Success {
		e.Severity = audit.SeverityMedium
	}
	l.submit(e)
}

// LogDataAccess records a read, including failed ones.
func (l *Logger) LogDataAccess(tc shared.TransactionContext, ev audit.DataAccessEvent) {
	e := audit.NewEntry(audit.CategoryDataAccess, audit.ActionRead, ev.Resource).WithContext(tc)
	e.ResourceID = ev.ResourceID
	e.Details["query"] = ev.RedactedQuery
	e.Details["row_count"] = ev.RowCount
	e.Details["execution_ms"] = ev.ExecutionTime.Milliseconds()
	e.Details["success"] = ev.Success
	if ev.ErrorDetail != "" {
		e.Details["error"] = ev.ErrorDetail
	}
	l.submit(e)
}

// LogDataModification records a mutation with redacted before/after values.
func (l *Logger) LogDataModification(tc shared.TransactionContext, ev audit.DataModificationEvent) {
	e := audit.NewEntry(audit.CategoryDataModification, ev.Action, ev.Resource).WithContext(tc)
	e.ResourceID = ev.ResourceID

	oldValues := audit.RedactSensitive(ev.OldValues)
	newValues := audit.RedactSensitive(ev.NewValues)
	if oldValues != nil {
		e.Details["old_values"] = oldValues
	}
	if newValues != nil {
		e.Details["new_values"] = newValues
	}
	if changes := computeChanges(oldValues, newValues); changes != nil {
		e.Details["changes"] = changes
	}
	l.submit(e)
}

// LogSystemEvent records an internal lifecycle occurrence.
func (l *Logger) LogSystemEvent(ev audit.SystemEvent) {
	e := audit.NewEntry(audit.CategorySystemEvent, audit.ActionCreate, "system")
	e.Details["event"] = ev.Event
	for k, v := range ev.Detail {
		e.Details[k] = v
	}
	l.submit(e)
}

// LogSecurityEvent records a security-relevant occurrence at its inherent
// severity.
func (l *Logger) LogSecurityEvent(ev audit.SecurityEvent) {
	e := audit.NewEntry(audit.CategorySecurityEvent, audit.ActionCreate, "security")
	e.UserID = ev.UserID
	e.SessionID = ev.SessionID
	e.IPAddress = ev.IPAddress
	if ev.Severity != "" {
		e.Severity = ev.Severity
	}
	e.Details["event"] = ev.Event
	for k, v := range audit.RedactSensitive(ev.Detail) {
		e.Details[k] = v
	}
	l.submit(e)
}

// LogTransaction records one phase of a database transaction.
func (l *Logger) LogTransaction(tc shared.TransactionContext, ev audit.TransactionEvent) {
	e := audit.NewEntry(audit.CategoryDataModification, ev.Phase, ev.Resource).WithContext(tc)
	if ev.Detail != "" {
		e.Details["detail"] = ev.Detail
	}
	if ev.Phase == audit.ActionRollback {
		e.Severity = audit.SeverityMedium
	}
	l.submit(e)
}

// LogExport records a compliance export of audit data.
func (l *Logger) LogExport(ev audit.ExportEvent) {
	e := audit.NewEntry(audit.CategoryDataAccess, audit.ActionExport, ev.Resource)
	e.Details["format"] = ev.Format
	e.Details["from"] = ev.From.Format(time.RFC3339)
	e.Details["to"] = ev.To.Format(time.RFC3339)
	e.Details["row_count"] = ev.Rows
	l.submit(e)
}

// LogPerformanceIssue records a slow operation.
func (l *Logger) LogPerformanceIssue(tc shared.TransactionContext, ev audit.PerformanceEvent) {
	e := audit.NewEntry(audit.CategorySystemEvent, audit.ActionQuery, "performance").WithContext(tc)
	e.Severity = audit.SeverityMedium
	e.Details["operation"] = ev.Operation
	e.Details["query"] = ev.RedactedQuery
	e.Details["execution_ms"] = ev.ExecutionTime.Milliseconds()
	e.Details["threshold_ms"] = ev.Threshold.Milliseconds()
	l.submit(e)
}

// submit buffers an entry and evaluates the alert catalog against it.
func (l *Logger) submit(e *audit.Entry) {
	l.encryptDetails(e)
	l.push(e)

	if l.engine == nil || hasTag(e, alertTag) {
		return
	}
	for _, firing := range l.engine.Evaluate(context.Background(), e) {
		alertEntry := audit.NewEntry(audit.CategorySecurityEvent, audit.ActionCreate, "security")
		alertEntry.UserID = e.UserID
		alertEntry.SessionID = e.SessionID
		alertEntry.IPAddress = e.IPAddress
		alertEntry.Severity = firing.Rule.Severity
		alertEntry.Tags = []string{alertTag, firing.Rule.Kind.String()}
		alertEntry.Details["rule_id"] = firing.Rule.ID
		alertEntry.Details["rule_name"] = firing.Rule.Name
		alertEntry.Details["triggering_entry"] = e.ID.String()
		for k, v := range firing.Detail {
			alertEntry.Details[k] = v
		}
		l.push(alertEntry)
	}
}

// push appends the entry to the buffer and wakes the flush loop when the
// buffer is full or the entry is critical.
func (l *Logger) push(e *audit.Entry) {
	l.mu.Lock()
	l.buffer = append(l.buffer, e)
	depth := len(l.buffer)
	l.mu.Unlock()

	bufferDepth.Set(float64(depth))
	entriesLogged.WithLabelValues(string(e.Category)).Inc()

	if e.Severity == audit.SeverityCritical || depth >= l.cfg.BufferSize {
		select {
		case l.flushNow <- struct{}{}:
		default:
		}
	}
}

func (l *Logger) flush() {
	if err := l.flushOnce(); err != nil {
		log.Warn().Err(err).Msg("Audit flush failed; batch requeued")
	}
}

// flushOnce persists the current buffer in one batch. On failure the batch
// is requeued at the front of the buffer so entries are delayed, never
// lost, and their relative order is preserved.
func (l *Logger) flushOnce() error {
	l.mu.Lock()
	batch := l.buffer
	l.buffer = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := l.repo.CreateBatch(ctx, batch); err != nil {
		l.mu.Lock()
		l.buffer = append(batch, l.buffer...)
		depth := len(l.buffer)
		l.mu.Unlock()

		bufferDepth.Set(float64(depth))
		flushFailures.Inc()
		return err
	}

	bufferDepth.Set(float64(l.pending()))
	entriesFlushed.Add(float64(len(batch)))
	return nil
}

func (l *Logger) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// encryptDetails replaces configured sensitive payload fields with
// encrypted envelopes before the entry reaches storage.
func (l *Logger) encryptDetails(e *audit.Entry) {
	if !l.cfg.EncryptDetails || l.enc == nil {
		return
	}
	for _, field := range []string{"old_values", "new_values"} {
		payload, ok := e.Details[field]
		if !ok {
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		envelope, err := l.enc.Encrypt(string(raw), detailsKeyID)
		if err != nil {
			log.Error().Err(err).Str("field", field).Msg("Failed to encrypt audit payload field")
			continue
		}
		e.Details[field] = envelope
	}
}

func hasTag(e *audit.Entry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// computeChanges lists fields whose value differs between old and new.
func computeChanges(oldValues, newValues map[string]interface{}) map[string]interface{} {
	if oldValues == nil || newValues == nil {
		return nil
	}
	changes := make(map[string]interface{})
	for key, newVal := range newValues {
		oldVal, exists := oldValues[key]
		if !exists || !jsonEqual(oldVal, newVal) {
			changes[key] = map[string]interface{}{
				"old": oldVal,
				"new": newVal,
			}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func jsonEqual(a, b interface{}) bool {
	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aBytes) == string(bBytes)
}

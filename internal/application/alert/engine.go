// Package alert implements rule evaluation and alert-action execution for
// the audit stream.
package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	domainalert "github.com/Riareddie/CHAKSHU-sub001/internal/domain/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
)

var rulesFiredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "datacore_alert_rules_fired_total",
		Help: "Total number of alert rule firings.",
	},
	[]string{"rule"},
)

// Notifier delivers alert notifications.
type Notifier interface {
	SendAlert(ctx context.Context, ruleName, severity, detail string) error
}

// SecurityGate executes stateful protective responses.
type SecurityGate interface {
	LockAccount(ctx context.Context, userID string, duration time.Duration) error
	DisableSessions(ctx context.Context, userID string) error
}

// Firing describes one rule that matched an entry. The audit logger
// records a security event for each firing.
type Firing struct {
	Rule   domainalert.Rule
	Detail map[string]interface{}
}

// Engine evaluates every buffered audit entry against the static rule
// catalog and executes the matched rules' actions. Evaluation failures in
// one rule never block the others, and action failures never propagate to
// the caller.
type Engine struct {
	rules        []domainalert.Rule
	evaluator    *domainalert.Evaluator
	notifier     Notifier
	gate         SecurityGate
	lockDuration time.Duration
}

// NewEngine creates an Engine over the given catalog. The notifier and
// gate may be nil, in which case the corresponding actions degrade to
// logging.
func NewEngine(rules []domainalert.Rule, notifier Notifier, gate SecurityGate, lockDuration time.Duration) *Engine {
	return &Engine{
		rules:        rules,
		evaluator:    domainalert.NewEvaluator(),
		notifier:     notifier,
		gate:         gate,
		lockDuration: lockDuration,
	}
}

// Evaluate checks the entry against every enabled rule, executes actions
// for matches and returns the firings for the caller to record.
func (e *Engine) Evaluate(ctx context.Context, entry *audit.Entry) []Firing {
	var firings []Firing
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		matched, detail, err := e.evaluator.Match(rule, entry)
		if err != nil {
			log.Error().Err(err).Str("rule", rule.ID).Msg("Alert rule evaluation failed")
			continue
		}
		if !matched {
			continue
		}

		rulesFiredTotal.WithLabelValues(rule.ID).Inc()
		log.Warn().
			Str("rule", rule.ID).
			Str("name", rule.Name).
			Str("severity", string(rule.Severity)).
			Msg("Alert rule fired")

		e.executeActions(ctx, rule, entry, detail)
		firings = append(firings, Firing{Rule: rule, Detail: detail})
	}
	return firings
}

func (e *Engine) executeActions(ctx context.Context, rule domainalert.Rule, entry *audit.Entry, detail map[string]interface{}) {
	for _, action := range rule.Actions {
		if err := e.executeAction(ctx, action, rule, entry, detail); err != nil {
			log.Error().Err(err).
				Str("rule", rule.ID).
				Str("action", string(action)).
				Msg("Alert action failed")
		}
	}
}

func (e *Engine) executeAction(ctx context.Context, action domainalert.ActionType, rule domainalert.Rule, entry *audit.Entry, detail map[string]interface{}) error {
	switch action {
	case domainalert.ActionLogOnly:
		log.Info().
			Str("rule", rule.ID).
			Interface("detail", detail).
			Msg("Alert recorded")
		return nil

	case domainalert.ActionEmail, domainalert.ActionImmediateAlert:
		if e.notifier == nil {
			log.Warn().Str("rule", rule.ID).Msg("No notifier configured; alert not emailed")
			return nil
		}
		return e.notifier.SendAlert(ctx, rule.Name, string(rule.Severity), formatDetail(entry, detail))

	case domainalert.ActionLockAccount:
		if e.gate == nil {
			log.Warn().Str("rule", rule.ID).Msg("No security gate configured; account not locked")
			return nil
		}
		if entry.UserID == "" {
			log.Warn().Str("rule", rule.ID).Msg("Entry has no user; account lock skipped")
			return nil
		}
		return e.gate.LockAccount(ctx, entry.UserID, e.lockDuration)

	case domainalert.ActionDisableSessions:
		if e.gate == nil {
			log.Warn().Str("rule", rule.ID).Msg("No security gate configured; sessions not disabled")
			return nil
		}
		target := entry.ResourceID
		if target == "" {
			target = entry.UserID
		}
		if target == "" {
			log.Warn().Str("rule", rule.ID).Msg("Entry has no target user; session disable skipped")
			return nil
		}
		return e.gate.DisableSessions(ctx, target)

	default:
		log.Warn().Str("action", string(action)).Msg("Unknown alert action")
		return nil
	}
}

func formatDetail(entry *audit.Entry, detail map[string]interface{}) string {
	payload := map[string]interface{}{
		"entry_id":  entry.ID,
		"user_id":   entry.UserID,
		"resource":  entry.Resource,
		"action":    string(entry.Action),
		"timestamp": entry.Timestamp,
		"detail":    detail,
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "alert detail unavailable"
	}
	return string(b)
}

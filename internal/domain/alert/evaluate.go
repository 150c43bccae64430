package alert

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
)

// Thresholds for the fixed rule catalog.
const (
	failedLoginThreshold = 5
	failedLoginWindow    = 15 * time.Minute
	largeReadThreshold   = 1000
	offHoursStart        = 22 // inclusive, local time
	offHoursEnd          = 6  // exclusive, local time
)

// Evaluator matches audit entries against rules. It keeps the sliding-window
// state needed by the failed-login rule and is safe for concurrent use.
type Evaluator struct {
	mu      sync.Mutex
	origins map[string][]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewEvaluator creates an Evaluator with empty window state.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		origins: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Match reports whether the rule's condition holds for the entry, along
// with condition-specific detail for the resulting security event.
func (ev *Evaluator) Match(rule Rule, e *audit.Entry) (bool, map[string]interface{}, error) {
	switch rule.Kind {
	case KindFailedLoginBurst:
		return ev.matchFailedLoginBurst(e)
	case KindRoleChange:
		return matchRoleChange(e)
	case KindLargeRead:
		return matchLargeRead(e)
	case KindOffHoursAccess:
		return ev.matchOffHours(e)
	case KindSensitiveExport:
		return matchSensitiveExport(e)
	default:
		return false, nil, fmt.Errorf("unknown rule kind %d", rule.Kind)
	}
}

// matchFailedLoginBurst tracks failed logins per origin in a sliding window.
// The window is cleared once the rule fires, so a qualifying burst triggers
// exactly once; later successes do not retroactively un-trigger it.
func (ev *Evaluator) matchFailedLoginBurst(e *audit.Entry) (bool, map[string]interface{}, error) {
	if e.Category != audit.CategoryAuthentication || e.Action != audit.ActionLogin {
		return false, nil, nil
	}
	if success, ok := e.Details["success"].(bool); !ok || success {
		return false, nil, nil
	}
	origin := e.IPAddress
	if origin == "" {
		origin = e.UserID
	}
	if origin == "" {
		return false, nil, nil
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	cutoff := ev.now().Add(-failedLoginWindow)
	recent := ev.origins[origin][:0]
	for _, t := range ev.origins[origin] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, e.Timestamp)

	if len(recent) >= failedLoginThreshold {
		delete(ev.origins, origin)
		return true, map[string]interface{}{
			"origin":     origin,
			"attempts":   len(recent),
			"window_min": int(failedLoginWindow.Minutes()),
		}, nil
	}
	ev.origins[origin] = recent
	return false, nil, nil
}

// matchRoleChange fires on updates to the users resource that touch a
// role or permission field.
func matchRoleChange(e *audit.Entry) (bool, map[string]interface{}, error) {
	if e.Category != audit.CategoryDataModification || e.Action != audit.ActionUpdate {
		return false, nil, nil
	}
	if e.Resource != "users" {
		return false, nil, nil
	}
	changes, ok := e.Details["changes"].(map[string]interface{})
	if !ok {
		return false, nil, nil
	}
	for field := range changes {
		lower := strings.ToLower(field)
		if strings.Contains(lower, "role") || strings.Contains(lower, "permission") {
			return true, map[string]interface{}{
				"changed_field": field,
				"resource_id":   e.ResourceID,
			}, nil
		}
	}
	return false, nil, nil
}

// matchLargeRead fires on reads that return more rows than the threshold.
func matchLargeRead(e *audit.Entry) (bool, map[string]interface{}, error) {
	if e.Category != audit.CategoryDataAccess {
		return false, nil, nil
	}
	rows, ok := asInt(e.Details["row_count"])
	if !ok || rows <= largeReadThreshold {
		return false, nil, nil
	}
	return true, map[string]interface{}{
		"row_count": rows,
		"resource":  e.Resource,
	}, nil
}

// matchOffHours fires on medium-or-higher severity activity between
// 22:00 and 06:00 local time.
func (ev *Evaluator) matchOffHours(e *audit.Entry) (bool, map[string]interface{}, error) {
	if !e.Severity.AtLeast(audit.SeverityMedium) {
		return false, nil, nil
	}
	hour := e.Timestamp.Local().Hour()
	if hour < offHoursStart && hour >= offHoursEnd {
		return false, nil, nil
	}
	return true, map[string]interface{}{
		"hour":     hour,
		"severity": string(e.Severity),
	}, nil
}

// matchSensitiveExport fires on exports of resources marked sensitive.
func matchSensitiveExport(e *audit.Entry) (bool, map[string]interface{}, error) {
	if e.Action != audit.ActionExport {
		return false, nil, nil
	}
	if !strings.Contains(strings.ToLower(e.Resource), "sensitive") {
		return false, nil, nil
	}
	return true, map[string]interface{}{
		"resource": e.Resource,
	}, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

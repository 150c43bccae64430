package audit

import (
	"strings"
)

// Redacted replaces sensitive values in audit payloads.
const Redacted = "[REDACTED]"

// sensitiveNames are substrings of field names whose values must never be
// written to the audit trail in the clear.
var sensitiveNames = []string{"password", "token", "secret", "key", "hash"}

func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactSensitive returns a copy of the payload with sensitive field values
// replaced by the redaction marker. Nested maps are redacted recursively.
func RedactSensitive(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if isSensitiveName(k) {
			out[k] = Redacted
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = RedactSensitive(nested)
			continue
		}
		out[k] = v
	}
	return out
}

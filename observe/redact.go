package observe

import "strings"

// RedactedMarker replaces sensitive values in log output.
const RedactedMarker = "***REDACTED***"

// sensitiveKeys are field names whose values are never written to logs.
// Matching is case-insensitive and exact, so "status_code" is not caught
// by "code".
var sensitiveKeys = map[string]bool{
	"password":      true,
	"api_key":       true,
	"token":         true,
	"secret":        true,
	"access_token":  true,
	"refresh_token": true,
	"key":           true,
	"client_secret": true,
	"authorization": true,
	"code":          true,
	"code_verifier": true,
}

// IsSensitiveKey reports whether values logged under key must be redacted.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// Redact walks v and replaces every value stored under a sensitive key with
// RedactedMarker. Maps and slices are copied, never mutated, so callers can
// keep using the original value. Non-container values pass through unchanged.
func Redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if IsSensitiveKey(k) {
				out[k] = RedactedMarker
			} else {
				out[k] = Redact(elem)
			}
		}
		return out

	case map[string]string:
		out := make(map[string]string, len(val))
		for k, elem := range val {
			if IsSensitiveKey(k) {
				out[k] = RedactedMarker
			} else {
				out[k] = elem
			}
		}
		return out

	case map[string][]string:
		// http.Header and url.Values shapes.
		out := make(map[string][]string, len(val))
		for k, elem := range val {
			if IsSensitiveKey(k) {
				out[k] = []string{RedactedMarker}
			} else {
				out[k] = elem
			}
		}
		return out

	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Redact(elem)
		}
		return out

	default:
		return v
	}
}

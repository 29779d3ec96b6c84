package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in logs.
const RedactedValue = "[REDACTED]"

// Keys whose values are operational and never identify a caller.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"route":     {},
	"status":    {},
	"tier":      {},
	"phase":     {},
	"requestid": {},
}

func plainKey(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute that hides value unless key is operational.
// Account-like values keep a short prefix so log lines stay correlatable.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || plainKey(key) {
		return slog.String(key, value)
	}
	if strings.HasPrefix(value, "0x") && len(value) == 42 {
		return slog.String(key, value[:6]+"…"+RedactedValue)
	}
	return slog.String(key, RedactedValue)
}

package logger

import (
	"log/slog"
	"strings"
)

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	}
	return LevelError
}

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

var (
	knownStatus = wordSet(`ok fail skip retry rate_limited cancelled unavailable`)

	// Handler results and wizard transition outcomes.
	knownOutcome = wordSet(`ok fail cancelled rate_limited invalid_input precondition
		unavailable needs_registration submitted restarted`)

	spellings = map[string]string{"canceled": "cancelled"}
)

func canonical(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if s, ok := spellings[v]; ok {
		return s
	}
	return v
}

// normalizeStatus lowercases status; ok is false for values outside the known set.
func normalizeStatus(status string) (string, bool) {
	status = canonical(status)
	_, ok := knownStatus[status]
	return status, ok && status != ""
}

// normalizeOutcome returns the canonical outcome, or false when it is unknown.
func normalizeOutcome(outcome string) (string, bool) {
	outcome = canonical(outcome)
	if _, ok := knownOutcome[outcome]; !ok {
		return "", false
	}
	return outcome, true
}

// defaultKeyOrder is grouped by line: envelope, correlation, wizard,
// upload and sessions, process, failure.
var defaultKeyOrder = strings.Fields(`
	ts level component event status
	rid rid_full update_id user_id chat_id chat_type handler
	op cb_key from to outcome duration_ms messages kb input category_id project_id
	attachments uploaded failed sessions removed count payload lang username
	mode driver listen public_url http_code db host port
	err err_code fields cause attempts
`)

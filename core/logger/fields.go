package logger

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
)

// fields holds the normalized key/value pairs of one log line.
type fields map[string]any

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// add flattens groups into dotted keys and stores the normalized value.
func (f fields) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalizeValue(key, v); ok {
		f[k] = val
	}
}

// normalizeValue maps a slog value onto the JSON friendly types the encoders
// understand. Durations become integer milliseconds under an _ms key.
func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
	case slog.KindDuration:
		return millisKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return "", nil, false
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return millisKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		default:
			return key, fmt.Sprint(x), true
		}
	}
	return key, v.Any(), true
}

func millisKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (f fields) fallback(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

// merge fills update identifiers the caller did not log explicitly.
func (f fields) merge(m updateMeta) {
	if m.rid != "" {
		f.fallback("rid", m.rid)
	}
	if m.updateID != 0 {
		f.fallback("update_id", int64(m.updateID))
	}
	if m.userID != 0 {
		f.fallback("user_id", m.userID)
	}
	if m.chatID != 0 {
		f.fallback("chat_id", m.chatID)
	}
	if m.handler != "" {
		f.fallback("handler", m.handler)
	}
}

// compactRID shortens rid; JSON lines keep the raw value as rid_full.
func (f fields) compactRID(keepFull bool) {
	rid := f.str("rid")
	if rid == "" {
		return
	}
	if short := CompactRID(rid); short != rid {
		if keepFull {
			f.fallback("rid_full", rid)
		}
		f["rid"] = short
	}
}

func (f fields) defaults(message string) {
	if f.str("event") == "" {
		f["event"] = cmp.Or(message, "unknown")
	}
	if f.str("component") == "" {
		f["component"] = "app"
	}
}

// normalizeEnums maps status and outcome onto their known spellings. Unknown
// outcomes are dropped so dashboards only ever see the closed set.
func (f fields) normalizeEnums() {
	if s := f.str("status"); s != "" {
		f["status"], _ = normalizeStatus(s)
	}
	if o := f.str("outcome"); o != "" {
		if norm, ok := normalizeOutcome(o); ok {
			f["outcome"] = norm
		} else {
			delete(f, "outcome")
		}
	}
}

func (f fields) prune() {
	maps.DeleteFunc(f, func(_ string, v any) bool {
		s, isStr := v.(string)
		return v == nil || (isStr && s == "")
	})
}

// keys lists keys in the configured order followed by the rest sorted.
func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	ranked := make(map[string]struct{}, len(order))
	for _, k := range order {
		if _, dup := ranked[k]; dup {
			continue
		}
		ranked[k] = struct{}{}
		if _, ok := f[k]; ok {
			out = append(out, k)
		}
	}
	head := len(out)
	for k := range f {
		if _, ok := ranked[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out[head:])
	return out
}

package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func encodeJSON(f fields, keys []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		val, err := json.Marshal(f[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %q: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeKV(f fields, keys []string) []byte {
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(f[k]))
	}
	return buf.Bytes()
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

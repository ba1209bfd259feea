// Package callbacks encodes and decodes inline button callback data.
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Telegram caps callback data at 64 bytes.
const maxDataLen = 64

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	unique = strings.TrimSpace(unique)
	if cb.Unique != "" {
		unique = cb.Unique
	}
	return unique, payload
}

// Key returns the callback unique key of the update.
func Key(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}

// Payload returns the data after the key.
func Payload(c tele.Context) string {
	_, p := ParseCallbackData(c.Callback())
	return p
}

// PayloadInt parses the payload as a decimal int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(Payload(c))
}

// PayloadInt64 parses the payload as a decimal int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(Payload(c), 10, 64)
}

// Encode joins payload parts with "|" and reports whether the result fits
// Telegram's limit together with unique.
func Encode(unique string, parts ...string) (string, bool) {
	data := strings.Join(parts, "|")
	return data, len("\f"+unique+"|"+data) <= maxDataLen
}

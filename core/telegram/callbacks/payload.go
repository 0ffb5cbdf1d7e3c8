package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits callback data into its key and payload.
// Telebot encodes buttons as "\f<unique>|<payload>"; raw keys such as
// "delete_table" sent by older keyboards are accepted as-is.
func Parse(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}

// Key returns the callback key of the current update, or "" for non-callbacks.
func Key(c tele.Context) string {
	key, _ := Parse(c.Callback())
	return key
}

// Package session persists each user's interaction mode.
//
// A user without a stored record is in ModeIdle. Records are created by the
// first Set and are never deleted.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Mode is the user's current interaction context.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeSupply    Mode = "supply"
	ModeDashboard Mode = "dashboard"
)

// ParseMode maps a stored value to a Mode. Unknown values report false.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeIdle, ModeSupply, ModeDashboard:
		return m, true
	}
	return ModeIdle, false
}

// ErrNotFound is returned by a Store when the user has no record.
var ErrNotFound = errors.New("session: not found")

// Session is the persisted record for one user.
type Session struct {
	UserID int64
	Mode   Mode
	// Context is reserved for multi-step flows; it is always a JSON object.
	Context   json.RawMessage
	UpdatedAt time.Time
}

// Store is a session backend. Load returns ErrNotFound on a miss; Save upserts.
type Store interface {
	Load(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, s Session) error
}

var emptyContext = json.RawMessage(`{}`)

func encodeContext(data map[string]any) (json.RawMessage, error) {
	if len(data) == 0 {
		return emptyContext, nil
	}
	return json.Marshal(data)
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/sushef/core/logger"
)

const component = "session"

// Adapter is the fail-open front of a Store: reads degrade to ModeIdle and
// write failures are logged, never returned.
type Adapter struct {
	store Store
	now   func() time.Time
}

// NewAdapter wraps store.
func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store, now: time.Now}
}

// Get returns the persisted mode, or ModeIdle on a miss, a read error or an
// unknown stored value.
func (a *Adapter) Get(ctx context.Context, userID int64) Mode {
	s, err := a.store.Load(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug(ctx, component, "session.miss", slog.Int64("user_id", userID))
		return ModeIdle
	case err != nil:
		logger.Warn(ctx, component, "session.load_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return ModeIdle
	}
	mode, ok := ParseMode(string(s.Mode))
	if !ok {
		logger.Warn(ctx, component, "session.unknown_mode",
			slog.Int64("user_id", userID),
			slog.String("mode", string(s.Mode)),
		)
	}
	return mode
}

// Set upserts the user's mode and context, refreshing UpdatedAt.
// A nil data map stores an empty object.
func (a *Adapter) Set(ctx context.Context, userID int64, mode Mode, data map[string]any) {
	raw, err := encodeContext(data)
	if err != nil {
		logger.Warn(ctx, component, "session.encode_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		raw = emptyContext
	}
	s := Session{UserID: userID, Mode: mode, Context: raw, UpdatedAt: a.now().UTC()}
	if err := a.store.Save(ctx, s); err != nil {
		logger.Warn(ctx, component, "session.save_failed",
			slog.Int64("user_id", userID),
			slog.String("mode", string(mode)),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, component, "session.saved",
		slog.Int64("user_id", userID),
		slog.String("mode", string(mode)),
	)
}

// Lookup returns the full record. found is false on a miss; err is set only
// when the backend failed.
func (a *Adapter) Lookup(ctx context.Context, userID int64) (Session, bool, error) {
	s, err := a.store.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const replyStatsKey = "reply_stats"

// ReplyStats counts the replies produced while one update is handled.
// Direct sends count once they succeed; queued sends count when the queue
// accepts them, so the handler summary includes replies still in flight.
type ReplyStats struct {
	sent     atomic.Int32
	keyboard atomic.Bool
}

func (s *ReplyStats) record(opts []any) {
	s.sent.Add(1)
	if carriesMarkup(opts) {
		s.keyboard.Store(true)
	}
}

func carriesMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

type countingContext struct {
	tele.Context
	stats *ReplyStats
}

func (c countingContext) Send(what any, opts ...any) error {
	if err := c.Context.Send(what, opts...); err != nil {
		return err
	}
	c.stats.record(opts)
	return nil
}

func (c countingContext) Reply(what any, opts ...any) error {
	if err := c.Context.Reply(what, opts...); err != nil {
		return err
	}
	c.stats.record(opts)
	return nil
}

// CountQueued records a reply accepted by the send queue.
func (c countingContext) CountQueued(opts ...any) {
	c.stats.record(opts)
}

// Uncounted returns the wrapped context, for queued sends already counted.
func (c countingContext) Uncounted() tele.Context {
	return c.Context
}

// ReplyStatsMiddleware attaches fresh ReplyStats to every update.
func ReplyStatsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		stats := &ReplyStats{}
		c.Set(replyStatsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// GetCounters returns how many messages were sent for the update and whether
// any of them carried an inline keyboard.
func GetCounters(c tele.Context) (int, bool) {
	stats, _ := c.Get(replyStatsKey).(*ReplyStats)
	if stats == nil {
		return 0, false
	}
	return int(stats.sent.Load()), stats.keyboard.Load()
}

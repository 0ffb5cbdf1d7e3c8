package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sushef/core/logger"
	"github.com/m3rciful/sushef/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// replyCounter is implemented by contexts that count the replies of one
// update. A queued reply is counted when it is accepted, and its delivery
// then runs on the uncounted context.
type replyCounter interface {
	CountQueued(opts ...any)
	Uncounted() tele.Context
}

func sendAsync(c tele.Context, action, endpoint string, what any, opts *tele.SendOptions) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return c.Send(what, opts)
	}

	target := c
	counter, counted := c.(replyCounter)
	if counted {
		target = counter.Uncounted()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, func() error { return target.Send(what, opts) })
	if err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return c.Send(what, opts)
		}
		return err
	}
	if counted {
		counter.CountQueued(opts)
	}
	return nil
}

// SendText queues raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return sendAsync(c, "send.text", "sendMessage", text, sendOptions("", markup))
}

// SendMD queues a Markdown message with optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return sendAsync(c, "send.md", "sendMessage", text, sendOptions(tele.ModeMarkdown, markup))
}

// SendNow sends text synchronously, bypassing the queue. Use it for notices
// that must reach the chat before the handler continues.
func SendNow(c tele.Context, text string) error {
	return c.Send(text, sendOptions("", nil))
}

func sendOptions(mode tele.ParseMode, markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: mode}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/sushef/core/logger"
	"github.com/m3rciful/sushef/internal/relay"
	"github.com/m3rciful/sushef/internal/session"
)

const component = "dispatch"

// Sessions is the mode store as seen by the dispatcher.
type Sessions interface {
	Get(ctx context.Context, userID int64) session.Mode
	Set(ctx context.Context, userID int64, mode session.Mode, data map[string]any)
	Lookup(ctx context.Context, userID int64) (session.Session, bool, error)
}

// Relay is the backend as seen by the dispatcher.
type Relay interface {
	SendInvoice(ctx context.Context, kind relay.Kind, chatID int64, source string) (relay.Result, error)
	SearchDashboard(ctx context.Context, query string, chatID int64) relay.Result
	ClearDashboard(ctx context.Context, chatID int64) relay.Result
}

// Replier delivers replies to the chat the event came from.
type Replier interface {
	Reply(ctx context.Context, r Reply) error
}

// Options configures a Dispatcher.
type Options struct {
	Sessions Sessions
	Relay    Relay
	// DashboardURL is the results view linked after a successful search.
	DashboardURL string
}

// Dispatcher routes events and performs the resulting actions. It holds no
// per-user state; concurrent events for the same user race on the session
// store and the last write wins.
type Dispatcher struct {
	sessions     Sessions
	relay        Relay
	dashboardURL string
}

// New constructs a Dispatcher.
func New(opts Options) *Dispatcher {
	return &Dispatcher{
		sessions:     opts.Sessions,
		relay:        opts.Relay,
		dashboardURL: opts.DashboardURL,
	}
}

// Handle processes one event end to end: load the mode when it matters,
// route, persist a mode switch, then act and reply.
func (d *Dispatcher) Handle(ctx context.Context, ev Event, out Replier) error {
	mode := session.ModeIdle
	if ev.needsMode() {
		mode = d.sessions.Get(ctx, ev.UserID)
	}

	dec := Route(ev, mode)
	logger.Debug(ctx, component, "dispatch.routed",
		slog.String("kind", ev.Kind.String()),
		slog.String("mode", string(mode)),
		slog.String("action", dec.Action.String()),
		slog.String("next", string(dec.NextMode(mode))),
	)

	if dec.Switch {
		d.sessions.Set(ctx, ev.UserID, dec.Next, nil)
	}
	return d.execute(ctx, ev, mode, dec.Action, out)
}

func (d *Dispatcher) execute(ctx context.Context, ev Event, mode session.Mode, action Action, out Replier) error {
	switch action {
	case ActionGreet:
		return out.Reply(ctx, plain(textGreeting))
	case ActionSupplyIntro:
		return out.Reply(ctx, plain(textSupplyIntro))
	case ActionDashboardIntro:
		return out.Reply(ctx, plain(textDashboardIntro, clearButton))
	case ActionResetConfirm:
		return out.Reply(ctx, plain(textResetConfirm))
	case ActionClearDashboard:
		res := d.relay.ClearDashboard(ctx, ev.ChatID)
		if !res.OK {
			d.logFailure(ctx, action, "backend", res.Error)
			return out.Reply(ctx, plain(textClearFailed))
		}
		return out.Reply(ctx, plain(textCleared))
	case ActionInspect:
		return d.inspect(ctx, ev, out)
	case ActionRelayPhoto:
		return d.relayInvoice(ctx, ev, action, relay.KindPhoto, ev.FileRef, textProgressPhoto, out)
	case ActionRelayPDF:
		return d.relayInvoice(ctx, ev, action, relay.KindPDF, ev.FileRef, textProgressPDF, out)
	case ActionRelayText:
		return d.relayInvoice(ctx, ev, action, relay.KindText, ev.Text, textProgressText, out)
	case ActionSearch:
		d.notify(ctx, out, textProgressSearch)
		res := d.relay.SearchDashboard(ctx, ev.Text, ev.ChatID)
		if !res.OK {
			d.logFailure(ctx, action, "backend", res.Error)
			return out.Reply(ctx, plain(textSearchFailed))
		}
		return out.Reply(ctx, searchReadyReply(d.dashboardURL))
	case ActionWrongMode:
		return out.Reply(ctx, wrongModeReply(mode))
	case ActionCompressHint:
		return out.Reply(ctx, plain(textCompressHint))
	case ActionChooseCommand:
		return out.Reply(ctx, plain(textChooseCommand))
	}
	return nil
}

func (d *Dispatcher) relayInvoice(ctx context.Context, ev Event, action Action, kind relay.Kind, source, notice string, out Replier) error {
	d.notify(ctx, out, notice)
	res, err := d.relay.SendInvoice(ctx, kind, ev.ChatID, source)
	switch {
	case err != nil:
		d.logFailure(ctx, action, "attachment", err.Error(), slog.String("type", string(kind)))
		return out.Reply(ctx, plain(textInvoiceFailed))
	case !res.OK:
		d.logFailure(ctx, action, "backend", res.Error, slog.String("type", string(kind)))
		return out.Reply(ctx, plain(textInvoiceFailed))
	}
	return out.Reply(ctx, plain(textInvoiceAdded, resetButton))
}

// notify sends a progress notice. A failed notice does not stop the relay.
func (d *Dispatcher) notify(ctx context.Context, out Replier, text string) {
	if err := out.Reply(ctx, progress(text)); err != nil {
		logger.Warn(ctx, component, "dispatch.notice_failed", slog.String("err", err.Error()))
	}
}

func (d *Dispatcher) inspect(ctx context.Context, ev Event, out Replier) error {
	userID := ev.UserID
	if arg := strings.TrimSpace(ev.Args); arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return out.Reply(ctx, plain(textInspectUsage))
		}
		userID = id
	}

	s, found, err := d.sessions.Lookup(ctx, userID)
	switch {
	case err != nil:
		logger.Warn(ctx, component, "dispatch.inspect_failed",
			slog.Int64("target_user_id", userID),
			slog.String("err", err.Error()),
		)
		return out.Reply(ctx, plain(textInspectFailed))
	case !found:
		return out.Reply(ctx, plain(fmt.Sprintf(textInspectNotFound, userID)))
	}
	return out.Reply(ctx, inspectReply(s))
}

func (d *Dispatcher) logFailure(ctx context.Context, action Action, cause, msg string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("action", action.String()),
		slog.String("cause", cause),
		slog.String("err", logger.SanitizeLimit(msg, 256)),
	}, extra...)
	logger.Warn(ctx, component, "dispatch.relay_failed", attrs...)
}

package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sushef/core/telegram"
	"github.com/m3rciful/sushef/core/telegram/middleware"
)

// MessageOptions holds the handlers for free-form input.
// A nil handler means the update is logged as skipped.
type MessageOptions struct {
	Text     tele.HandlerFunc
	Photo    tele.HandlerFunc
	Document tele.HandlerFunc

	// Admin gates AdminOnly commands that arrive as plain text, e.g. " /state".
	Admin middleware.AdminOptions
}

// MessageRoutes builds the OnText, OnPhoto and OnDocument routes.
// Text that looks like a command is resolved through the registry first, so
// "/supply@sushef_bot" still reaches the command; unknown commands are skipped
// and never treated as free-form input.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := strings.TrimSpace(c.Text())

		if strings.HasPrefix(text, "/") {
			if reg != nil {
				if key, cmd, ok := reg.LookupCommand(text); ok {
					h := cmd.Handler
					if cmd.AdminOnly {
						h = middleware.AdminOnlyMiddleware(opts.Admin)(h)
					}
					return handleWithSummary(c, normalizeHandlerName(key), start, h)
				}
			}
			logHandlerSummary(c, "unknown_command", start, "skip", nil)
			return nil
		}
		return handleWithSummary(c, "text", start, opts.Text)
	}

	photoHandler := func(c tele.Context) error {
		return handleWithSummary(c, "photo", time.Now(), opts.Photo)
	}

	docHandler := func(c tele.Context) error {
		return handleWithSummary(c, "document", time.Now(), opts.Document)
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(photoHandler)},
		{Endpoint: tele.OnDocument, Handler: wrap(docHandler)},
	}
}

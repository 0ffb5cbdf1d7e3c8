package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sushef/core/telegram"
	"github.com/m3rciful/sushef/core/telegram/callbacks"
	"github.com/m3rciful/sushef/core/telegram/middleware"
)

// CallbackRoute returns the single OnCallback route that dispatches by key
// through the registry. The button spinner is always answered first.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.Parse(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler, ok := reg.GetCallback(key)
		if !ok {
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, reg.CallbackNotFound(), extras...)
		}

		_ = c.Respond()
		return handleWithSummary(c, name, start, cbHandler, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

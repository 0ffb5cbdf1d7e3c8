// Package bot adapts Telegram updates to dispatch events and dispatch
// replies back to Telegram messages.
package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sushef/core/telegram"
	"github.com/m3rciful/sushef/core/telegram/callbacks"
	"github.com/m3rciful/sushef/core/telegram/commands"
	tghelpers "github.com/m3rciful/sushef/core/telegram/helpers"
	"github.com/m3rciful/sushef/core/telegram/keyboard"
	"github.com/m3rciful/sushef/core/telegram/middleware"
	"github.com/m3rciful/sushef/core/telegram/router"
	"github.com/m3rciful/sushef/internal/dispatch"
)

// Handler processes one dispatch event.
type Handler interface {
	Handle(ctx context.Context, ev dispatch.Event, out dispatch.Replier) error
}

// Bot owns the command registry and the update handlers.
type Bot struct {
	handler  Handler
	registry *tg.Registry
}

// New registers the bot's commands and callbacks.
func New(h Handler) (*Bot, error) {
	b := &Bot{handler: h, registry: tg.NewRegistry()}

	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/" + dispatch.CommandStart, commands.Command{
			Handler:     b.command(dispatch.CommandStart),
			Description: "Главное меню",
		}},
		{"/" + dispatch.CommandSupply, commands.Command{
			Handler:     b.command(dispatch.CommandSupply),
			Description: "Добавить накладную",
		}},
		{"/" + dispatch.CommandDashboard, commands.Command{
			Handler:     b.command(dispatch.CommandDashboard),
			Description: "Найти данные",
			Aliases:     []string{"dash"},
		}},
		{"/" + dispatch.CommandState, commands.Command{
			Handler:     b.command(dispatch.CommandState),
			Description: "Состояние пользователя",
			AdminOnly:   true,
			Hidden:      true,
		}},
	}
	for _, c := range cmds {
		if err := b.registry.RegisterCommand(c.name, c.cmd); err != nil {
			return nil, err
		}
	}

	for _, key := range []string{dispatch.CallbackReset, dispatch.CallbackClearTable} {
		if err := b.registry.RegisterCallback(key, b.callback); err != nil {
			return nil, err
		}
	}
	b.registry.SetCallbackNotFound(StaleButton)
	return b, nil
}

// Registry returns the registry holding the bot's commands and callbacks.
func (b *Bot) Registry() *tg.Registry { return b.registry }

// MessageOptions returns the handlers for photos, documents and free text.
func (b *Bot) MessageOptions() router.MessageOptions {
	return router.MessageOptions{
		Text:     b.text,
		Photo:    b.photo,
		Document: b.document,
	}
}

// Routes assembles every route the bot serves.
func (b *Bot) Routes(adminID int64) []tg.Route {
	routes := router.CommandRoutes(b.registry, router.CommandRouteOptions{
		AdminID:       adminID,
		OnAdminReject: RejectAdmin,
	})
	routes = append(routes, router.CallbackRoute(b.registry))

	msgOpts := b.MessageOptions()
	msgOpts.Admin = middleware.AdminOptions{AdminID: adminID, OnReject: RejectAdmin}
	return append(routes, router.MessageRoutes(b.registry, msgOpts)...)
}

func (b *Bot) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := dispatch.Event{Kind: dispatch.EventCommand, Name: name}
		if msg := c.Message(); msg != nil {
			ev.Args = strings.TrimSpace(msg.Payload)
		}
		return b.dispatch(c, ev)
	}
}

func (b *Bot) callback(c tele.Context) error {
	return b.dispatch(c, dispatch.Event{Kind: dispatch.EventCallback, Name: callbacks.Key(c)})
}

func (b *Bot) photo(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	return b.dispatch(c, dispatch.Event{Kind: dispatch.EventPhoto, FileRef: msg.Photo.FileID})
}

func (b *Bot) document(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Document == nil {
		return nil
	}
	return b.dispatch(c, dispatch.Event{
		Kind:     dispatch.EventDocument,
		FileRef:  msg.Document.FileID,
		MIMEType: msg.Document.MIME,
	})
}

func (b *Bot) text(c tele.Context) error {
	return b.dispatch(c, dispatch.Event{Kind: dispatch.EventText, Text: c.Text()})
}

// dispatch fills in the sender and chat, then hands the event over.
// Updates without a sender (channel posts) are dropped.
func (b *Bot) dispatch(c tele.Context, ev dispatch.Event) error {
	user, chat := c.Sender(), c.Chat()
	if user == nil || chat == nil {
		return nil
	}
	ev.UserID = user.ID
	ev.ChatID = chat.ID
	return b.handler.Handle(tghelpers.BuildContext(c), ev, Replier{c: c})
}

// Replier sends dispatch replies to the chat of the current update.
type Replier struct {
	c tele.Context
}

// Reply implements dispatch.Replier. Progress notices go out synchronously
// so they always precede the queued final answer.
func (r Replier) Reply(_ context.Context, rep dispatch.Reply) error {
	if rep.Progress {
		return tghelpers.SendNow(r.c, rep.Text)
	}
	markup := Markup(rep.Buttons)
	if rep.Markdown {
		return tghelpers.SendMD(r.c, rep.Text, markup)
	}
	return tghelpers.SendText(r.c, rep.Text, markup)
}

// Markup renders reply buttons as an inline keyboard, one per row.
func Markup(buttons []dispatch.Button) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, keyboard.InlineBtn{Text: b.Label, Unique: b.Key})
	}
	return keyboard.InlineButtons(btns)
}

// RejectAdmin answers non-admin callers of admin commands.
func RejectAdmin(c tele.Context) error {
	return tghelpers.SendText(c, "⛔ Команда недоступна")
}

// StaleButton answers presses on buttons the bot no longer serves, such as
// keyboards left in the chat by an older release.
func StaleButton(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела, выберите команду заново"})
}

// RateLimited answers a throttled button press so the spinner stops;
// throttled messages are dropped silently.
func RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Слишком часто, подождите"})
	}
	return nil
}

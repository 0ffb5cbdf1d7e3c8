package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sushef/core/telegram"
	"github.com/m3rciful/sushef/core/telegram/commands"
	"github.com/m3rciful/sushef/core/telegram/middleware"
)

type codedErr struct{}

func (codedErr) Error() string { return "relay failed" }
func (codedErr) Code() string { return "relay failed" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "RELAY_FAILED", deriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "supply", normalizeHandlerName(" /Supply "))
	assert.Equal(t, "unknown", normalizeHandlerName(""))
}

func routeFor(t *testing.T, routes []tg.Route, endpoint string) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %s", endpoint)
	return nil
}

func TestMessageRoutesDispatchByKind(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	var got []string
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error { got = append(got, name); return nil }
	}

	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/supply", commands.Command{Handler: record("supply"), Description: "add invoice"}))

	routes := MessageRoutes(reg, MessageOptions{Text: record("text"), Photo: record("photo")})
	require.Len(t, routes, 3)

	user := &tele.User{ID: 7}
	chat := &tele.Chat{ID: 7}
	msg := func(id int, m *tele.Message) tele.Context {
		m.Sender, m.Chat = user, chat
		return b.NewContext(tele.Update{ID: id, Message: m})
	}

	text := routeFor(t, routes, tele.OnText)
	require.NoError(t, text(msg(1, &tele.Message{Text: "Ocean Co, shrimp, 10kg, $5/kg"})))
	require.NoError(t, text(msg(2, &tele.Message{Text: "/supply@sushef_bot"})))
	require.NoError(t, text(msg(3, &tele.Message{Text: "/unknown"})))

	photo := routeFor(t, routes, tele.OnPhoto)
	require.NoError(t, photo(msg(4, &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: "p1"}}})))

	doc := routeFor(t, routes, tele.OnDocument)
	require.NoError(t, doc(msg(5, &tele.Message{Document: &tele.Document{File: tele.File{FileID: "d1"}}})))

	assert.Equal(t, []string{"text", "supply", "photo"}, got)
}

func TestCommandRoutesRegisterAliases(t *testing.T) {
	reg := tg.NewRegistry()
	noop := func(tele.Context) error { return nil }
	require.NoError(t, reg.RegisterCommand("/dashboard", commands.Command{Handler: noop, Description: "search", Aliases: []string{"dash"}}))

	routes := CommandRoutes(reg, CommandRouteOptions{})
	var endpoints []string
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint.(string))
	}
	assert.ElementsMatch(t, []string{"/dashboard", "/dash"}, endpoints)
}

func TestCallbackRouteAnswersSpinnerAndDispatches(t *testing.T) {
	var answered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/answerCallbackQuery") {
			answered.Add(1)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	b, err := tele.NewBot(tele.Settings{Offline: true, URL: srv.URL, Token: "t"})
	require.NoError(t, err)

	var got []string
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("delete_table", func(tele.Context) error {
		got = append(got, "delete_table")
		return nil
	}))
	reg.SetCallbackNotFound(func(tele.Context) error {
		got = append(got, "not_found")
		return nil
	})

	route := CallbackRoute(reg)
	cb := func(id int, data string) tele.Context {
		return b.NewContext(tele.Update{ID: id, Callback: &tele.Callback{
			ID:     fmt.Sprint(id),
			Sender: &tele.User{ID: 7},
			Data:   data,
		}})
	}

	require.NoError(t, route.Handler(cb(1, "\fdelete_table")))
	require.NoError(t, route.Handler(cb(2, "\fmissing")))

	assert.Equal(t, []string{"delete_table", "not_found"}, got)
	assert.Equal(t, int32(1), answered.Load())
}

func TestMessageRoutesGateAdminCommandsInText(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	var got []int64
	rejected := 0
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/state", commands.Command{
		Handler:     func(c tele.Context) error { got = append(got, c.Sender().ID); return nil },
		Description: "inspect",
		AdminOnly:   true,
	}))

	routes := MessageRoutes(reg, MessageOptions{Admin: middleware.AdminOptions{
		AdminID:  999,
		OnReject: func(tele.Context) error { rejected++; return nil },
	}})
	text := routeFor(t, routes, tele.OnText)

	from := func(id int, userID int64, body string) tele.Context {
		return b.NewContext(tele.Update{ID: id, Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
			Text:   body,
		}})
	}
	require.NoError(t, text(from(1, 7, " /state")))
	require.NoError(t, text(from(2, 7, " /state 42")))
	require.NoError(t, text(from(3, 999, " /state")))

	assert.Equal(t, []int64{999}, got)
	assert.Equal(t, 2, rejected)
}

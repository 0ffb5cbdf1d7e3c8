package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/sushef/core/telegram/helpers"
	"github.com/m3rciful/sushef/core/telegram/sender"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b
}

func textUpdate(id int, userID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   text,
	}}
}

func TestRateLimitDropsBurstsPerUser(t *testing.T) {
	b := offlineBot(t)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(b.NewContext(textUpdate(1, 7, "shrimp"))))
	require.NoError(t, h(b.NewContext(textUpdate(2, 7, "shrimp again"))))
	require.NoError(t, h(b.NewContext(textUpdate(3, 8, "other user"))))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExcludesCallbacks(t *testing.T) {
	b := offlineBot(t)
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"callback": {}},
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	cb := func(id int) tele.Update {
		return tele.Update{ID: id, Callback: &tele.Callback{Sender: &tele.User{ID: 7}, Data: "\fdelete_table"}}
	}
	require.NoError(t, h(b.NewContext(cb(1))))
	require.NoError(t, h(b.NewContext(cb(2))))
	assert.Equal(t, 2, calls)
}

func TestAdminOnlyMiddleware(t *testing.T) {
	b := offlineBot(t)
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 42, OnReject: func(tele.Context) error { rejected++; return nil }})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(b.NewContext(textUpdate(1, 42, "/state 7"))))
	require.NoError(t, h(b.NewContext(textUpdate(2, 7, "/state 7"))))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)

	closed := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { calls++; return nil })
	require.NoError(t, closed(b.NewContext(textUpdate(3, 42, "/state 7"))))
	assert.Equal(t, 1, calls)
}

func TestRecoverMiddlewareReturnsPanicAsError(t *testing.T) {
	b := offlineBot(t)
	h := RecoverMiddleware(func(tele.Context) error { panic(errors.New("nil photo")) })
	err := h(b.NewContext(textUpdate(1, 7, "x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil photo")
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "photo", updateKind(tele.Update{Message: &tele.Message{Photo: &tele.Photo{}}}))
	assert.Equal(t, "document", updateKind(tele.Update{Message: &tele.Message{Document: &tele.Document{}}}))
	assert.Equal(t, "message", updateKind(tele.Update{Message: &tele.Message{Text: "hi"}}))
	assert.Equal(t, "callback", updateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "other", updateKind(tele.Update{}))
}

func TestReplyStatsStartEmpty(t *testing.T) {
	b := offlineBot(t)
	var sent int
	var kb bool
	h := ReplyStatsMiddleware(func(c tele.Context) error {
		sent, kb = GetCounters(c)
		return nil
	})

	require.NoError(t, h(b.NewContext(textUpdate(1, 7, "hi"))))
	assert.Zero(t, sent)
	assert.False(t, kb)

	sent, kb = GetCounters(b.NewContext(textUpdate(2, 7, "no middleware")))
	assert.Zero(t, sent)
	assert.False(t, kb)
}

func TestCarriesMarkup(t *testing.T) {
	assert.False(t, carriesMarkup(nil))
	assert.False(t, carriesMarkup([]any{&tele.SendOptions{}}))
	assert.True(t, carriesMarkup([]any{&tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}}}))
	assert.True(t, carriesMarkup([]any{&tele.ReplyMarkup{}}))
}

func TestReplyStatsCountQueuedRepliesOnce(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			delivered.Add(1)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":7}}}`))
	}))
	defer srv.Close()

	b, err := tele.NewBot(tele.Settings{Offline: true, URL: srv.URL, Token: "t"})
	require.NoError(t, err)

	disp := sender.NewDispatcher(sender.Options{})
	tghelpers.SetDispatcher(disp)
	t.Cleanup(func() { tghelpers.SetDispatcher(nil) })

	var msgs int
	var kb bool
	h := ReplyStatsMiddleware(func(c tele.Context) error {
		require.NoError(t, tghelpers.SendNow(c, "Обрабатываю накладную"))
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.Data("Очистить таблицу", "delete_table")))
		require.NoError(t, tghelpers.SendText(c, "Накладная добавлена", markup))
		msgs, kb = GetCounters(c)
		return nil
	})

	c := b.NewContext(textUpdate(1, 7, "Ocean Co, shrimp"))
	require.NoError(t, h(c))
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)

	disp.Close()
	assert.Equal(t, int32(2), delivered.Load())
	msgs, _ = GetCounters(c)
	assert.Equal(t, 2, msgs)
}

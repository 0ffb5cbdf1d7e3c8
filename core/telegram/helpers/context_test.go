package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sushef/core/logger"
)

func newContext(t *testing.T) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{ID: 11, Message: &tele.Message{
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 70},
		Text:   "/supply",
	}})
}

func TestBuildContextCarriesUpdateMeta(t *testing.T) {
	c := newContext(t)

	ctx := BuildContext(c)
	assert.Equal(t, 11, logger.UpdateIDFrom(ctx))
	assert.Equal(t, int64(7), logger.UserIDFrom(ctx))
	assert.Equal(t, int64(70), logger.ChatIDFrom(ctx))
	assert.Equal(t, logger.BuildRID(11, 70, 7), logger.RIDFrom(ctx))

	cached, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, ctx, cached)
}

func TestBuildContextReusesMiddlewareRID(t *testing.T) {
	c := newContext(t)
	c.Set("rid", "rid-from-middleware")
	assert.Equal(t, "rid-from-middleware", logger.RIDFrom(BuildContext(c)))
}

func TestWithHandlerTagsContext(t *testing.T) {
	c := newContext(t)
	ctx := WithHandler(c, "supply")
	assert.Equal(t, "supply", logger.HandlerFrom(ctx))

	cached, _ := ContextFrom(c)
	assert.Equal(t, "supply", logger.HandlerFrom(cached))
}

func TestContextFromNil(t *testing.T) {
	_, ok := ContextFrom(nil)
	assert.False(t, ok)
}

package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	key, payload := Parse(&tele.Callback{Data: "\fdelete_table"})
	assert.Equal(t, "delete_table", key)
	assert.Empty(t, payload)

	key, payload = Parse(&tele.Callback{Data: "\fcomand_null|42"})
	assert.Equal(t, "comand_null", key)
	assert.Equal(t, "42", payload)

	key, _ = Parse(&tele.Callback{Data: "delete_table"})
	assert.Equal(t, "delete_table", key)

	key, payload = Parse(&tele.Callback{Unique: "delete_table", Data: "x"})
	assert.Equal(t, "delete_table", key)
	assert.Equal(t, "x", payload)

	key, payload = Parse(nil)
	assert.Empty(t, key)
	assert.Empty(t, payload)
}

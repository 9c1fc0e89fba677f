package fcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage([]string{"tok-1"}, Notification{
		Title: "Sync finished",
		Body:  "12 new emails",
		Data:  map[string]string{"type": "sync_finished"},
		Link:  "/chat",
	})

	assert.Equal(t, []string{"tok-1"}, msg.Tokens)
	assert.Equal(t, "Sync finished", msg.Notification.Title)
	assert.Equal(t, "sync_finished", msg.Data["type"])
	require.NotNil(t, msg.Webpush.FCMOptions)
	assert.Equal(t, "/chat", msg.Webpush.FCMOptions.Link)

	assert.Nil(t, BuildMessage(nil, Notification{}).Webpush.FCMOptions)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", mask("short"))
	assert.Equal(t, "abcdefghijkl...", mask("abcdefghijklmnop"))
}

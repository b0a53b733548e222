package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"messenger-backend/internal/chat"
	"messenger-backend/internal/models"
)

func TestSessionSendNeverBlocks(t *testing.T) {
	s := newSession("alice", "alice", nil)

	// Without a running write pump the buffer fills; further sends are
	// dropped instead of blocking the caller.
	for i := 0; i < sessionBuffer; i++ {
		require.True(t, s.Send(models.WSEvent{Event: "online-users"}))
	}
	require.False(t, s.Send(models.WSEvent{Event: "online-users"}))
}

func TestSessionSendAfterCloseIsDropped(t *testing.T) {
	s := newSession("alice", "alice", nil)
	s.close()
	require.False(t, s.Send(models.WSEvent{Event: "connected"}))

	// Closing twice is safe.
	s.close()
}

func TestSessionChatListSeeding(t *testing.T) {
	s := newSession("alice", "alice", nil)
	require.Nil(t, s.ChatList())

	list := chat.NewChatList(nil)
	s.SeedChatList(list)
	require.Same(t, list, s.ChatList())
}

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"messenger-backend/internal/models"
)

func seededList() *ChatList {
	base := time.Now()
	mk := func(id, last string, at time.Time) models.ChatListEntry {
		t := at
		sender := id
		return models.ChatListEntry{
			UserID:      id,
			Username:    id,
			LastMessage: &last,
			Time:        &t,
			SenderID:    &sender,
		}
	}
	return NewChatList([]models.ChatListEntry{
		mk("b", "newest", base),
		mk("c", "middle", base.Add(-time.Hour)),
		mk("d", "oldest", base.Add(-2*time.Hour)),
	})
}

func TestApplyMessageMovesExistingEntryToFront(t *testing.T) {
	list := seededList()

	msg := models.Message{SenderID: "a", ReceiverID: "d", Body: "ping", CreatedAt: time.Now()}
	entry := list.ApplyMessage(profile("d"), msg)

	require.Equal(t, "d", entry.UserID)
	require.Equal(t, "ping", *entry.LastMessage)
	require.Equal(t, "a", *entry.SenderID)

	entries := list.Entries()
	require.Equal(t, []string{"d", "b", "c"}, counterpartIDs(entries))
	require.Equal(t, "ping", *entries[0].LastMessage)
}

func TestApplyMessageInsertsUnknownCounterpartAtFront(t *testing.T) {
	list := seededList()

	msg := models.Message{SenderID: "e", ReceiverID: "a", Body: "hello", CreatedAt: time.Now()}
	list.ApplyMessage(profile("e"), msg)

	entries := list.Entries()
	require.Equal(t, []string{"e", "b", "c", "d"}, counterpartIDs(entries))
	require.Equal(t, 4, list.Len())
}

func TestApplyMessageOnEmptyList(t *testing.T) {
	list := NewChatList(nil)

	msg := models.Message{SenderID: "a", ReceiverID: "b", Body: "first", CreatedAt: time.Now()}
	list.ApplyMessage(profile("b"), msg)

	entries := list.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "b", entries[0].UserID)
	require.Equal(t, "first", *entries[0].LastMessage)
}

func TestApplyMessageKeepsOnlineFlag(t *testing.T) {
	list := seededList()
	list.SetOnline("c", true)

	list.ApplyMessage(profile("c"), models.Message{SenderID: "c", ReceiverID: "a", Body: "hey", CreatedAt: time.Now()})

	entries := list.Entries()
	require.Equal(t, "c", entries[0].UserID)
	require.True(t, entries[0].Online)
}

func TestApplyMessageRepeatedFrontUpdate(t *testing.T) {
	list := seededList()

	for i := 0; i < 3; i++ {
		list.ApplyMessage(profile("b"), models.Message{
			SenderID: "b", ReceiverID: "a", Body: "again", CreatedAt: time.Now(),
		})
	}

	entries := list.Entries()
	require.Equal(t, []string{"b", "c", "d"}, counterpartIDs(entries))
	require.Equal(t, 3, list.Len())
}

func counterpartIDs(entries []models.ChatListEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

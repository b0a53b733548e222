package chat

import (
	"sync"

	"messenger-backend/internal/models"
)

// ChatList is a session-scoped cached chat list, seeded from a full
// aggregation and then kept fresh in place as messages arrive, so the
// aggregation does not rerun on every event. Entries stay ordered by
// recency; a counterpart index keeps updates O(1) to locate.
type ChatList struct {
	mu      sync.Mutex
	entries []models.ChatListEntry
	index   map[string]int // counterpart id -> position in entries
}

func NewChatList(entries []models.ChatListEntry) *ChatList {
	l := &ChatList{
		entries: make([]models.ChatListEntry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(l.entries, entries)
	for i, e := range l.entries {
		l.index[e.UserID] = i
	}
	return l
}

// Entries returns a copy of the current list, newest first.
func (l *ChatList) Entries() []models.ChatListEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.ChatListEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ApplyMessage folds a new message into the list: the counterpart's
// entry moves to the front carrying the new last message, or is
// inserted at the front if the counterpart was not listed yet. The
// result equals what a full re-aggregation would produce after the
// message. Returns the updated entry.
func (l *ChatList) ApplyMessage(counterpart models.PublicProfile, msg models.Message) models.ChatListEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := msg.CreatedAt
	sender := msg.SenderID
	entry := models.ChatListEntry{
		UserID:      counterpart.ID,
		Fullname:    counterpart.Fullname,
		Username:    counterpart.Username,
		Avatar:      counterpart.Avatar,
		LastLogout:  counterpart.LastLogout,
		LastMessage: &msg.Body,
		Time:        &t,
		SenderID:    &sender,
	}

	if pos, ok := l.index[counterpart.ID]; ok {
		entry.Online = l.entries[pos].Online
		copy(l.entries[1:pos+1], l.entries[:pos])
		l.entries[0] = entry
		for i := 0; i <= pos; i++ {
			l.index[l.entries[i].UserID] = i
		}
	} else {
		l.entries = append([]models.ChatListEntry{entry}, l.entries...)
		for i, e := range l.entries {
			l.index[e.UserID] = i
		}
	}
	return entry
}

// SetOnline updates the cached online flag for a counterpart, if
// present.
func (l *ChatList) SetOnline(userID string, online bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.index[userID]; ok {
		l.entries[pos].Online = online
	}
}

func (l *ChatList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

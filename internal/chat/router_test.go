package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
	"messenger-backend/internal/store"
)

type fakePeer struct {
	mu     sync.Mutex
	events []models.WSEvent
	list   *ChatList
}

func (p *fakePeer) Send(v any) bool {
	evt, ok := v.(models.WSEvent)
	if !ok {
		return false
	}
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	return true
}

func (p *fakePeer) ChatList() *ChatList { return p.list }

func (p *fakePeer) received() []models.WSEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.WSEvent, len(p.events))
	copy(out, p.events)
	return out
}

type fakePeers map[string]*fakePeer

func (m fakePeers) Peer(userID string) (Peer, bool) {
	p, ok := m[userID]
	if !ok {
		return nil, false
	}
	return p, ok
}

func newTestRouter(t *testing.T, peers fakePeers, users ...string) (*Router, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, id := range users {
		require.NoError(t, st.CreateUser(context.Background(), &models.User{
			ID:       id,
			Fullname: "User " + id,
			Username: id,
		}))
	}
	return NewRouter(st, st, peers), st
}

func TestSendRejectsSelfMessage(t *testing.T) {
	router, st := newTestRouter(t, fakePeers{}, "alice")

	_, err := router.Send(context.Background(), "alice", "alice", "hi me")
	require.ErrorIs(t, err, apperr.ErrInvalidRecipient)

	convs, err := st.ConversationsByParticipant(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, convs)
}

func TestSendRejectsUnknownReceiver(t *testing.T) {
	router, _ := newTestRouter(t, fakePeers{}, "alice")

	_, err := router.Send(context.Background(), "alice", "ghost", "anyone there")
	require.ErrorIs(t, err, apperr.ErrInvalidRecipient)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	router, st := newTestRouter(t, fakePeers{}, "alice", "bob")

	_, err := router.Send(context.Background(), "alice", "bob", "   ")
	require.ErrorIs(t, err, apperr.ErrValidation)

	convs, err := st.ConversationsByParticipant(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, convs)
}

func TestSendToOfflineReceiverStillPersists(t *testing.T) {
	router, st := newTestRouter(t, fakePeers{}, "alice", "bob")

	msg, err := router.Send(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	// A later aggregation for the offline receiver recovers the message.
	entries, err := NewAggregator(st).ChatList(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "alice", entries[0].UserID)
	require.Equal(t, "hi", *entries[0].LastMessage)
	require.Equal(t, "alice", *entries[0].SenderID)
}

func TestSendMirrorScenario(t *testing.T) {
	router, st := newTestRouter(t, fakePeers{}, "alice", "bob")

	_, err := router.Send(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	agg := NewAggregator(st)

	forAlice, err := agg.ChatList(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	require.Equal(t, "bob", forAlice[0].UserID)
	require.Equal(t, "hi", *forAlice[0].LastMessage)
	require.Equal(t, "alice", *forAlice[0].SenderID)

	forBob, err := agg.ChatList(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	require.Equal(t, "alice", forBob[0].UserID)
	require.Equal(t, "hi", *forBob[0].LastMessage)
	require.Equal(t, "alice", *forBob[0].SenderID)
}

func TestSendPushesToBothOnlineParties(t *testing.T) {
	alice := &fakePeer{list: NewChatList(nil)}
	bob := &fakePeer{list: NewChatList(nil)}
	peers := fakePeers{"alice": alice, "bob": bob}
	router, _ := newTestRouter(t, peers, "alice", "bob")

	msg, err := router.Send(context.Background(), "alice", "bob", "hello bob")
	require.NoError(t, err)

	aliceEvents := alice.received()
	require.Len(t, aliceEvents, 1)
	require.Equal(t, "new-message", aliceEvents[0].Event)
	require.Equal(t, msg.ID, aliceEvents[0].Message.ID)
	// The sender's chat-list entry names the receiver as counterpart.
	require.Equal(t, "bob", aliceEvents[0].Entry.UserID)
	require.Equal(t, "alice", *aliceEvents[0].Entry.SenderID)

	bobEvents := bob.received()
	require.Len(t, bobEvents, 1)
	require.Equal(t, "alice", bobEvents[0].Entry.UserID)
	require.Equal(t, "hello bob", *bobEvents[0].Entry.LastMessage)
}

func TestSendWithoutSeededCacheOmitsEntry(t *testing.T) {
	bob := &fakePeer{} // online but never pulled a chat list
	router, _ := newTestRouter(t, fakePeers{"bob": bob}, "alice", "bob")

	_, err := router.Send(context.Background(), "alice", "bob", "hello")
	require.NoError(t, err)

	events := bob.received()
	require.Len(t, events, 1)
	require.Equal(t, "new-message", events[0].Event)
	require.Nil(t, events[0].Entry)
}

func TestConcurrentFirstSendsCreateOneConversation(t *testing.T) {
	router, st := newTestRouter(t, fakePeers{}, "alice", "bob")

	const sends = 20
	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate directions; the unordered pair is the same.
			if i%2 == 0 {
				_, err := router.Send(context.Background(), "alice", "bob", "race")
				require.NoError(t, err)
			} else {
				_, err := router.Send(context.Background(), "bob", "alice", "race")
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	convs, err := st.ConversationsByParticipant(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Len(t, convs[0].Messages, sends)
}

func TestIncrementalCacheMatchesAggregation(t *testing.T) {
	alice := &fakePeer{list: NewChatList(nil)}
	peers := fakePeers{"alice": alice}
	router, st := newTestRouter(t, peers, "alice", "bob", "carol", "dave")

	sends := []struct{ from, to, body string }{
		{"alice", "bob", "one"},
		{"carol", "alice", "two"},
		{"alice", "dave", "three"},
		{"bob", "alice", "four"},
		{"alice", "carol", "five"},
	}
	for _, s := range sends {
		_, err := router.Send(context.Background(), s.from, s.to, s.body)
		require.NoError(t, err)
	}

	aggregated, err := NewAggregator(st).ChatList(context.Background(), "alice")
	require.NoError(t, err)

	cached := alice.list.Entries()
	require.Equal(t, counterpartIDs(aggregated), counterpartIDs(cached))
	for i := range aggregated {
		require.Equal(t, *aggregated[i].LastMessage, *cached[i].LastMessage)
		require.Equal(t, *aggregated[i].SenderID, *cached[i].SenderID)
	}
}

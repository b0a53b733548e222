package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
)

func newStoreWithUsers(t *testing.T, ids ...string) *MemoryStore {
	t.Helper()
	st := NewMemoryStore()
	for _, id := range ids {
		require.NoError(t, st.CreateUser(context.Background(), &models.User{
			ID:       id,
			Fullname: "User " + id,
			Username: id,
		}))
	}
	return st
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.CreateUser(ctx, &models.User{ID: "1", Username: "alice"}))
	err := st.CreateUser(ctx, &models.User{ID: "2", Username: "Alice"})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUserLookups(t *testing.T) {
	st := newStoreWithUsers(t, "alice")
	ctx := context.Background()

	byID, err := st.UserByID(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	byName, err := st.UserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, "alice", byName.ID)

	_, err = st.UserByID(ctx, "ghost")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearchByUsernamePrefixExcludesSelf(t *testing.T) {
	st := newStoreWithUsers(t, "anna", "annabel", "bob")
	ctx := context.Background()

	out, err := st.SearchByUsernamePrefix(ctx, "ANN", "anna")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "annabel", out[0].Username)
}

func TestSetLastLogout(t *testing.T) {
	st := newStoreWithUsers(t, "alice")
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, st.SetLastLogout(ctx, "alice", now))

	u, err := st.UserByID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u.LastLogout)
	require.True(t, u.LastLogout.Equal(now))

	require.ErrorIs(t, st.SetLastLogout(ctx, "ghost", now), apperr.ErrNotFound)
}

func TestFindOrCreateConversationIsPairCanonical(t *testing.T) {
	st := newStoreWithUsers(t, "alice", "bob")
	ctx := context.Background()

	c1, err := st.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	c2, err := st.FindOrCreateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, c1.ID, c2.ID)
}

func TestFindOrCreateConversationConcurrent(t *testing.T) {
	st := newStoreWithUsers(t, "alice", "bob")
	ctx := context.Background()

	const racers = 32
	ids := make([]string, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 0 {
				a, b = b, a
			}
			conv, err := st.FindOrCreateConversation(ctx, a, b)
			require.NoError(t, err)
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		require.Equal(t, ids[0], id)
	}

	convs, err := st.ConversationsByParticipant(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
}

func TestConversationMessagesNewestFirst(t *testing.T) {
	st := newStoreWithUsers(t, "alice", "bob")
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	for _, body := range []string{"first", "second", "third"} {
		_, err := st.AppendMessage(ctx, conv.ID, "alice", "bob", body)
		require.NoError(t, err)
	}

	convs, err := st.ConversationsByParticipant(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Len(t, convs[0].Messages, 3)
	require.Equal(t, "third", convs[0].Messages[0].Body)
	require.Equal(t, "first", convs[0].Messages[2].Body)

	// Participants are populated for the aggregator's counterpart scan.
	require.Len(t, convs[0].Participants, 2)
}

func TestMessagesBetweenOldestFirst(t *testing.T) {
	st := newStoreWithUsers(t, "alice", "bob")
	ctx := context.Background()

	conv, err := st.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	for _, body := range []string{"first", "second"} {
		_, err := st.AppendMessage(ctx, conv.ID, "alice", "bob", body)
		require.NoError(t, err)
	}

	msgs, err := st.MessagesBetween(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Body)

	none, err := st.MessagesBetween(ctx, "alice", "ghost")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	st := newStoreWithUsers(t, "alice", "bob")
	_, err := st.AppendMessage(context.Background(), "missing", "alice", "bob", "hi")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

// Package chat holds the conversation engine: chat-list aggregation,
// the per-session incremental chat-list cache, and the message delivery
// router.
package chat

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
	"messenger-backend/internal/store"
)

// Aggregator derives a user's chat list from the conversation store:
// one entry per counterpart, annotated with the most recent message,
// ordered by recency.
type Aggregator struct {
	store store.ConversationStore
}

func NewAggregator(s store.ConversationStore) *Aggregator {
	return &Aggregator{store: s}
}

// ChatList returns viewerID's chat list, newest conversations first.
// A viewer with zero conversations gets apperr.ErrNotFound; callers
// surface that as an empty result, not a failure.
func (a *Aggregator) ChatList(ctx context.Context, viewerID string) ([]models.ChatListEntry, error) {
	convs, err := a.store.ConversationsByParticipant(ctx, viewerID)
	if err != nil {
		return nil, apperr.Storef("conversations by participant", err)
	}
	if len(convs) == 0 {
		return nil, apperr.ErrNotFound
	}

	entries := make([]models.ChatListEntry, 0, len(convs))
	for _, conv := range convs {
		other, ok := lo.Find(conv.Participants, func(p models.PublicProfile) bool {
			return p.ID != viewerID
		})
		if !ok {
			// Two-participant invariant violated; best available view,
			// skip rather than fail.
			continue
		}

		entry := models.ChatListEntry{
			UserID:     other.ID,
			Fullname:   other.Fullname,
			Username:   other.Username,
			Avatar:     other.Avatar,
			LastLogout: other.LastLogout,
		}
		if msg, ok := newestMessage(conv.Messages); ok {
			entry.LastMessage = &msg.Body
			entry.Time = &msg.CreatedAt
			entry.SenderID = &msg.SenderID
		}
		entries = append(entries, entry)
	}

	// Recency order, entries without any message last; ties keep their
	// incoming order.
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Time, entries[j].Time
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
	return entries, nil
}

// newestMessage returns the most recent message of a conversation. The
// store contract says newest-first, but a backend that cannot guarantee
// order is handled by scanning for the maximum timestamp.
func newestMessage(msgs []models.Message) (models.Message, bool) {
	if len(msgs) == 0 {
		return models.Message{}, false
	}
	newest := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt.After(newest.CreatedAt) {
			newest = m
		}
	}
	return newest, true
}

package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
	"messenger-backend/internal/store"
)

// Peer is the live endpoint of a connected user: a non-blocking push
// target plus the session's chat-list cache (nil until the client has
// pulled its chat list).
type Peer interface {
	Send(v any) bool
	ChatList() *ChatList
}

// PeerResolver finds the live peer for a user id; absence means the
// user is offline.
type PeerResolver interface {
	Peer(userID string) (Peer, bool)
}

// Router is the send-message path. Persistence is the durability point:
// a message survives even when nobody is online to receive it, and live
// delivery never blocks or fails a persisted send.
type Router struct {
	store     store.ConversationStore
	directory store.UserDirectory
	peers     PeerResolver
}

func NewRouter(cs store.ConversationStore, dir store.UserDirectory, peers PeerResolver) *Router {
	return &Router{store: cs, directory: dir, peers: peers}
}

// Send validates, persists and delivers one message from sender to
// receiver. Validation failures abort before any side effect; once the
// append succeeds the send cannot fail anymore.
func (r *Router) Send(ctx context.Context, senderID, receiverID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.ErrValidation
	}
	if senderID == receiverID {
		return nil, apperr.ErrInvalidRecipient
	}

	receiver, err := r.directory.PublicProfile(ctx, receiverID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidRecipient
		}
		return nil, apperr.Storef("resolve receiver", err)
	}
	sender, err := r.directory.PublicProfile(ctx, senderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidRecipient
		}
		return nil, apperr.Storef("resolve sender", err)
	}

	conv, err := r.store.FindOrCreateConversation(ctx, senderID, receiverID)
	if err != nil {
		return nil, apperr.Storef("find or create conversation", err)
	}

	msg, err := r.store.AppendMessage(ctx, conv.ID, senderID, receiverID, body)
	if err != nil {
		return nil, apperr.Storef("append message", err)
	}

	// Durable from here on; delivery is best-effort.
	r.deliver(sender, receiver, msg)
	return msg, nil
}

// deliver pushes the message and the updated chat-list entry to each
// online party. The counterpart in a party's entry is always the other
// participant.
func (r *Router) deliver(sender, receiver *models.PublicProfile, msg *models.Message) {
	r.pushTo(msg.SenderID, receiver, msg)
	r.pushTo(msg.ReceiverID, sender, msg)
}

func (r *Router) pushTo(userID string, counterpart *models.PublicProfile, msg *models.Message) {
	peer, ok := r.peers.Peer(userID)
	if !ok {
		return
	}
	evt := models.WSEvent{Event: "new-message", Message: msg}
	if cache := peer.ChatList(); cache != nil {
		entry := cache.ApplyMessage(*counterpart, *msg)
		evt.Entry = &entry
	}
	if !peer.Send(evt) {
		log.Printf("dropped new-message push to user %s", userID)
	}
}

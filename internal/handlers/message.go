package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/chat"
	"messenger-backend/internal/models"
	"messenger-backend/internal/presence"
	"messenger-backend/internal/utils"
)

const sendTimeout = 10 * time.Second

// HandleClientEvent dispatches one inbound websocket frame.
func HandleClientEvent(s *session, msgType int, msg []byte, deps WSDeps) {
	if msgType != websocket.TextMessage {
		return
	}

	var evt models.WSEvent
	if err := utils.SafeJSONParse(msg, &evt); err != nil {
		utils.LogError(err, "JSON Parse")
		return
	}

	switch evt.Event {
	case "send-message":
		handleSendMessage(s, &evt, deps)
	case "chat-list":
		handleChatListRequest(s, deps)
	default:
		log.Printf("Unknown event: %s", evt.Event)
	}
}

func handleSendMessage(s *session, evt *models.WSEvent, deps WSDeps) {
	if evt.ReceiverID == "" {
		s.Send(models.WSEvent{Event: "error", Error: "receiver_id required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if _, err := deps.Router.Send(ctx, s.userID, evt.ReceiverID, evt.Text); err != nil {
		utils.LogError(err, "Send")
		s.Send(models.WSEvent{Event: "error", Error: err.Error()})
	}
	// The router pushes the confirmed message back to the sender's
	// session, so no extra ack is needed here.
}

func handleChatListRequest(s *session, deps WSDeps) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	entries, err := ChatListForUser(ctx, s.userID, deps.Registry, deps.Aggregator)
	if err != nil {
		utils.LogError(err, "ChatList")
		s.Send(models.WSEvent{Event: "error", Error: "failed to load chat list"})
		return
	}
	s.Send(models.WSEvent{Event: "chat-list", Chats: entries})
}

// ChatListForUser runs the full aggregation for a user, annotates
// online flags, and seeds the live session's cache so subsequent sends
// update the list in place instead of re-aggregating. A viewer with no
// conversations gets an empty list, not an error.
func ChatListForUser(ctx context.Context, userID string, reg *presence.Registry, agg *chat.Aggregator) ([]models.ChatListEntry, error) {
	entries, err := agg.ChatList(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		entries = nil
	}
	for i := range entries {
		entries[i].Online = reg.Online(entries[i].UserID)
	}

	if sess, ok := reg.Lookup(userID); ok {
		if seeder, ok := sess.(interface{ SeedChatList(*chat.ChatList) }); ok {
			seeder.SeedChatList(chat.NewChatList(entries))
		}
	}
	if entries == nil {
		entries = []models.ChatListEntry{}
	}
	return entries, nil
}

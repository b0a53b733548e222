package models

import "time"

// Conversation is an unordered pair of two distinct users and the
// messages exchanged between them. Messages are newest-first when
// loaded from a store.
type Conversation struct {
	ID           string          `json:"id"`
	Participants []PublicProfile `json:"participants"`
	Messages     []Message       `json:"messages"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Body           string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatListEntry is one row of a user's chat list: the counterpart's
// profile annotated with the most recent message of the conversation.
// LastMessage, Time and SenderID are nil for a conversation that has
// no messages yet.
type ChatListEntry struct {
	UserID      string     `json:"id"`
	Fullname    string     `json:"fullname"`
	Username    string     `json:"username"`
	Avatar      string     `json:"avatar"`
	LastLogout  *time.Time `json:"last_logout"`
	LastMessage *string    `json:"last_message"`
	Time        *time.Time `json:"time"`
	SenderID    *string    `json:"sender_id"`
	Online      bool       `json:"online"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

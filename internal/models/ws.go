package models

// WSEvent is the envelope for every websocket frame, client- and
// server-originated. Which fields are set depends on Event:
//
//	client -> server: "send-message" (ReceiverID, Text), "chat-list"
//	server -> client: "connected", "online-users" (OnlineUsers, Seq),
//	                  "new-message" (Message, Entry), "chat-list" (Chats),
//	                  "error" (Error)
type WSEvent struct {
	Event       string          `json:"event"`
	ReceiverID  string          `json:"receiver_id,omitempty"`
	Text        string          `json:"text,omitempty"`
	Message     *Message        `json:"message,omitempty"`
	Entry       *ChatListEntry  `json:"entry,omitempty"`
	Chats       []ChatListEntry `json:"chats,omitempty"`
	OnlineUsers []string        `json:"online_users,omitempty"`
	Seq         uint64          `json:"seq,omitempty"`
	Error       string          `json:"error,omitempty"`
}

package store

import (
	"context"
	"time"

	"messenger-backend/internal/models"
)

// ConversationStore is the durable record of pairwise conversations and
// their messages.
type ConversationStore interface {
	// ConversationsByParticipant returns every conversation that includes
	// userID, with participant profiles populated and messages sorted
	// newest-first. The number of messages loaded per conversation may be
	// capped by the backend.
	ConversationsByParticipant(ctx context.Context, userID string) ([]models.Conversation, error)

	// FindOrCreateConversation returns the conversation for the unordered
	// pair (a, b), creating it if absent. At most one conversation ever
	// exists per pair, even under concurrent calls.
	FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error)

	// AppendMessage appends a message to a conversation. Once it returns
	// without error the message is durable.
	AppendMessage(ctx context.Context, conversationID, senderID, receiverID, body string) (*models.Message, error)

	// MessagesBetween returns the full message history between two users,
	// oldest first. An empty slice means no conversation or no messages.
	MessagesBetween(ctx context.Context, a, b string) ([]models.Message, error)
}

// UserDirectory owns user accounts and their public profiles.
type UserDirectory interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	PublicProfile(ctx context.Context, id string) (*models.PublicProfile, error)
	ListUsernames(ctx context.Context) ([]string, error)
	// SearchByUsernamePrefix matches usernames case-insensitively by
	// prefix, excluding the requesting user.
	SearchByUsernamePrefix(ctx context.Context, prefix, excludingID string) ([]models.PublicProfile, error)
	SetLastLogout(ctx context.Context, userID string, t time.Time) error
}

// Store bundles both collaborator interfaces behind one backend.
type Store interface {
	ConversationStore
	UserDirectory
	Close()
}

// pairKey canonicalizes an unordered user id pair.
func pairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

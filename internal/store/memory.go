package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
)

// MemoryStore is a process-local Store backend. It is the default when
// no DATABASE_URL is configured and the backend the service tests run
// against. Find-or-create for a pair is serialized under the store lock,
// so the one-conversation-per-pair invariant holds here too.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*models.User        // id -> user
	usernames     map[string]string              // lower(username) -> id
	conversations map[string]*memoryConversation // pair key -> conversation
	byID          map[string]*memoryConversation // conversation id -> conversation
}

type memoryConversation struct {
	id        string
	userA     string
	userB     string
	createdAt time.Time
	messages  []models.Message // append order, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		usernames:     make(map[string]string),
		conversations: make(map[string]*memoryConversation),
		byID:          make(map[string]*memoryConversation),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, exists := s.usernames[key]; exists {
		return apperr.ErrConflict
	}
	cp := *u
	s.users[u.ID] = &cp
	s.usernames[key] = u.ID
	return nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[strings.ToLower(username)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryStore) PublicProfile(ctx context.Context, id string) (*models.PublicProfile, error) {
	u, err := s.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

func (s *MemoryStore) ListUsernames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.users))
	for _, u := range s.users {
		names = append(names, u.Username)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) SearchByUsernamePrefix(ctx context.Context, prefix, excludingID string) ([]models.PublicProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	var out []models.PublicProfile
	for _, u := range s.users {
		if u.ID == excludingID {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			out = append(out, u.Public())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) SetLastLogout(ctx context.Context, userID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	ts := t
	u.LastLogout = &ts
	return nil
}

func (s *MemoryStore) FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	lo, hi := pairKey(a, b)
	key := lo + "|" + hi

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[key]
	if !ok {
		conv = &memoryConversation{
			id:        uuid.New().String(),
			userA:     lo,
			userB:     hi,
			createdAt: time.Now(),
		}
		s.conversations[key] = conv
		s.byID[conv.id] = conv
	}
	return s.exportLocked(conv), nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID, senderID, receiverID, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	msg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	conv.messages = append(conv.messages, msg)
	return &msg, nil
}

func (s *MemoryStore) ConversationsByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Conversation
	for _, conv := range s.conversations {
		if conv.userA != userID && conv.userB != userID {
			continue
		}
		out = append(out, *s.exportLocked(conv))
	}
	// Stable order for callers: most recently created first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MessagesBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	lo, hi := pairKey(a, b)

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[lo+"|"+hi]
	if !ok {
		return nil, nil
	}
	msgs := make([]models.Message, len(conv.messages))
	copy(msgs, conv.messages)
	return msgs, nil
}

// exportLocked builds the public Conversation shape with participants
// populated and messages newest-first. Caller must hold at least a read
// lock.
func (s *MemoryStore) exportLocked(conv *memoryConversation) *models.Conversation {
	out := &models.Conversation{
		ID:        conv.id,
		CreatedAt: conv.createdAt,
	}
	for _, id := range []string{conv.userA, conv.userB} {
		if u, ok := s.users[id]; ok {
			out.Participants = append(out.Participants, u.Public())
		}
	}
	out.Messages = make([]models.Message, 0, len(conv.messages))
	for i := len(conv.messages) - 1; i >= 0; i-- {
		out.Messages = append(out.Messages, conv.messages[i])
	}
	return out
}

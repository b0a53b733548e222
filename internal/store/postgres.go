package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on top of a pgx connection pool.
// messageScanLimit caps how many messages are loaded per conversation
// when building chat lists; the newest message always survives the cap.
type PostgresStore struct {
	pool             *pgxpool.Pool
	messageScanLimit int
}

func NewPostgresStore(pool *pgxpool.Pool, messageScanLimit int) *PostgresStore {
	if messageScanLimit <= 0 {
		messageScanLimit = 50
	}
	return &PostgresStore{pool: pool, messageScanLimit: messageScanLimit}
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables on first run. The ordered-pair check
// plus the unique constraint enforce at most one conversation per pair
// at the schema level.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			fullname TEXT NOT NULL,
			username TEXT NOT NULL UNIQUE,
			gender TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			last_logout TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			user_a UUID NOT NULL REFERENCES users(id),
			user_b UUID NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT conversations_pair_unique UNIQUE (user_a, user_b),
			CONSTRAINT conversations_pair_ordered CHECK (user_a < user_b)
		);
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			sender_id UUID NOT NULL REFERENCES users(id),
			receiver_id UUID NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS messages_conversation_created_idx
			ON messages (conversation_id, created_at DESC);
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, fullname, username, gender, avatar, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err := s.pool.QueryRow(ctx, query, u.ID, u.Fullname, u.Username, u.Gender, u.Avatar, u.PasswordHash).
		Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(ctx, `SELECT id, fullname, username, gender, avatar, password_hash, last_logout, created_at
		FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(ctx, `SELECT id, fullname, username, gender, avatar, password_hash, last_logout, created_at
		FROM users WHERE lower(username) = lower($1)`, username)
}

func (s *PostgresStore) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Fullname, &u.Username, &u.Gender, &u.Avatar, &u.PasswordHash, &u.LastLogout, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) PublicProfile(ctx context.Context, id string) (*models.PublicProfile, error) {
	u, err := s.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

func (s *PostgresStore) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PostgresStore) SearchByUsernamePrefix(ctx context.Context, prefix, excludingID string) ([]models.PublicProfile, error) {
	query := `SELECT id, fullname, username, avatar, last_logout
		FROM users WHERE username ILIKE $1 || '%' AND id <> $2 ORDER BY username`
	rows, err := s.pool.Query(ctx, query, prefix, excludingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PublicProfile
	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.Fullname, &p.Username, &p.Avatar, &p.LastLogout); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetLastLogout(ctx context.Context, userID string, t time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_logout = $2 WHERE id = $1`, userID, t)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	low, high := pairKey(a, b)

	var conv models.Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_a, user_b) VALUES ($1, $2, $3)
			ON CONFLICT (user_a, user_b) DO NOTHING
			RETURNING id, created_at`,
		uuid.New().String(), low, high).Scan(&conv.ID, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or the pair already existed; fetch the winner.
		err = s.pool.QueryRow(ctx,
			`SELECT id, created_at FROM conversations WHERE user_a = $1 AND user_b = $2`,
			low, high).Scan(&conv.ID, &conv.CreatedAt)
	}
	if err != nil {
		return nil, err
	}

	for _, id := range []string{low, high} {
		p, err := s.PublicProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		conv.Participants = append(conv.Participants, *p)
	}
	return &conv, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID, senderID, receiverID, body string) (*models.Message, error) {
	msg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           body,
	}
	query := `INSERT INTO messages (id, conversation_id, sender_id, receiver_id, body)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err := s.pool.QueryRow(ctx, query, msg.ID, conversationID, senderID, receiverID, body).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *PostgresStore) ConversationsByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `SELECT c.id, c.created_at,
			ua.id, ua.fullname, ua.username, ua.avatar, ua.last_logout,
			ub.id, ub.fullname, ub.username, ub.avatar, ub.last_logout
		FROM conversations c
		JOIN users ua ON ua.id = c.user_a
		JOIN users ub ON ub.id = c.user_b
		WHERE c.user_a = $1 OR c.user_b = $1
		ORDER BY c.created_at DESC`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	index := make(map[string]int)
	for rows.Next() {
		var c models.Conversation
		var pa, pb models.PublicProfile
		if err := rows.Scan(&c.ID, &c.CreatedAt,
			&pa.ID, &pa.Fullname, &pa.Username, &pa.Avatar, &pa.LastLogout,
			&pb.ID, &pb.Fullname, &pb.Username, &pb.Avatar, &pb.LastLogout); err != nil {
			return nil, err
		}
		c.Participants = []models.PublicProfile{pa, pb}
		index[c.ID] = len(convs)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}

	// Newest messages per conversation, capped by the scan limit.
	msgQuery := `SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.body, m.created_at
		FROM conversations c,
		LATERAL (
			SELECT id, conversation_id, sender_id, receiver_id, body, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT $2
		) m
		WHERE c.user_a = $1 OR c.user_b = $1`
	msgRows, err := s.pool.Query(ctx, msgQuery, userID, s.messageScanLimit)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var m models.Message
		if err := msgRows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[m.ConversationID]; ok {
			convs[i].Messages = append(convs[i].Messages, m)
		}
	}
	return convs, msgRows.Err()
}

func (s *PostgresStore) MessagesBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	low, high := pairKey(a, b)
	query := `SELECT m.id, m.conversation_id, m.sender_id, m.receiver_id, m.body, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_a = $1 AND c.user_b = $2
		ORDER BY m.created_at ASC`
	rows, err := s.pool.Query(ctx, query, low, high)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

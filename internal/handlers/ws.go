package handlers

import (
	"context"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"messenger-backend/internal/chat"
	"messenger-backend/internal/models"
	"messenger-backend/internal/presence"
	"messenger-backend/internal/services"
	"messenger-backend/internal/utils"
)

// WSDeps bundles what the websocket surface needs.
type WSDeps struct {
	Registry   *presence.Registry
	Router     *chat.Router
	Aggregator *chat.Aggregator
	Users      *services.UserService
}

const sessionBuffer = 64

// session is one live websocket connection. Outbound frames go through
// a buffered channel drained by a single writer goroutine; the
// underlying conn is not safe for concurrent writes.
type session struct {
	userID   string
	username string
	conn     *websocket.Conn

	out       chan any
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	chatList *chat.ChatList
}

func newSession(userID, username string, conn *websocket.Conn) *session {
	return &session{
		userID:   userID,
		username: username,
		conn:     conn,
		out:      make(chan any, sessionBuffer),
		done:     make(chan struct{}),
	}
}

// Send queues an event for delivery. It never blocks: a closed session
// or a full buffer drops the event and reports false.
func (s *session) Send(v any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- v:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

func (s *session) ChatList() *chat.ChatList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatList
}

func (s *session) SeedChatList(l *chat.ChatList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatList = l
}

func (s *session) writePump() {
	for {
		select {
		case v := <-s.out:
			if err := s.conn.WriteJSON(v); err != nil {
				utils.LogError(err, "WriteJSON")
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// RegistryPeers adapts the presence registry to the delivery router.
type RegistryPeers struct {
	Registry *presence.Registry
}

func (p RegistryPeers) Peer(userID string) (chat.Peer, bool) {
	sess, ok := p.Registry.Lookup(userID)
	if !ok {
		return nil, false
	}
	peer, ok := sess.(chat.Peer)
	return peer, ok
}

// WebSocketHandler handles the websocket connection lifecycle: register
// presence on connect, dispatch client events, unregister and stamp
// last-seen on disconnect.
func WebSocketHandler(deps WSDeps) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID := c.Locals("user_id").(string)
		username, _ := c.Locals("username").(string)

		s := newSession(userID, username, c)
		go s.writePump()

		deps.Registry.Register(userID, s)

		defer func() {
			deps.Registry.Unregister(userID, s)
			s.close()
			c.Close()
			// Stamp last seen unless a newer connection took over the
			// slot while this one was shutting down.
			if !deps.Registry.Online(userID) {
				if err := deps.Users.Logout(context.Background(), userID); err != nil {
					utils.LogError(err, "Logout")
				}
			}
		}()

		s.Send(models.WSEvent{Event: "connected"})

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
			HandleClientEvent(s, msgType, msg, deps)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token before the request proceeds
func AuthMiddleware(c *fiber.Ctx) error {
	// Get token from query param `access_token` or Authorization header
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	c.Locals("user_id", uid)

	if u, ok := claims["username"].(string); ok {
		c.Locals("username", u)
	}

	return c.Next()
}

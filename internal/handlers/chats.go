package handlers

import (
	"github.com/gofiber/fiber/v2"

	"messenger-backend/internal/chat"
	"messenger-backend/internal/models"
	"messenger-backend/internal/presence"
	"messenger-backend/internal/store"
)

// ChatListHandler returns the authenticated user's aggregated chat
// list, one entry per counterpart ordered by recency. This is the pull
// side of the chat-list contract: the client fetches the full view here
// and receives incremental updates over the websocket afterwards.
func ChatListHandler(reg *presence.Registry, agg *chat.Aggregator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		entries, err := ChatListForUser(c.Context(), userID, reg, agg)
		if err != nil {
			return c.Status(statusFromErr(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(entries)
	}
}

// MessagesHandler returns the full history with one counterpart, oldest
// first
func MessagesHandler(cs store.ConversationStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		otherID := c.Params("user_id")
		if otherID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user id required"})
		}
		msgs, err := cs.MessagesBetween(c.Context(), userID, otherID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		return c.JSON(msgs)
	}
}

// SendMessageHandler is the HTTP send path; it runs the same delivery
// router as the websocket one, so persistence and live push behave
// identically.
func SendMessageHandler(router *chat.Router) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		receiverID := c.Params("user_id")

		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}

		msg, err := router.Send(c.Context(), userID, receiverID, req.Message)
		if err != nil {
			return c.Status(statusFromErr(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}
}

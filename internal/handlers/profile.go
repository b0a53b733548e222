package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/services"
)

// statusFromErr maps the service error taxonomy onto HTTP statuses.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidRecipient):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// GetProfileHandler returns the authenticated user's public profile
func GetProfileHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		p, err := userService.Profile(c.Context(), userID)
		if err != nil {
			return c.Status(statusFromErr(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(p)
	}
}

// SearchUsersHandler matches users by handle prefix, excluding the
// requesting user
func SearchUsersHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		prefix := c.Query("username")
		if prefix == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username required"})
		}
		users, err := userService.Search(c.Context(), prefix, userID)
		if err != nil {
			return c.Status(statusFromErr(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(users)
	}
}

// ListUsernamesHandler returns every registered handle, used by the
// client for availability checks
func ListUsernamesHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := userService.Usernames(c.Context())
		if err != nil {
			return c.Status(statusFromErr(err)).JSON(fiber.Map{"error": err.Error()})
		}
		if names == nil {
			names = []string{}
		}
		return c.JSON(names)
	}
}

// LogoutHandler stamps the user's last-logout time
func LogoutHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := userService.Logout(c.Context(), userID); err != nil {
			return c.Status(statusFromErr(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "logged out"})
	}
}

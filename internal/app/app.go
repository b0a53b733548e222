package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/chat"
	"messenger-backend/internal/db"
	"messenger-backend/internal/handlers"
	"messenger-backend/internal/models"
	"messenger-backend/internal/presence"
	"messenger-backend/internal/services"
	"messenger-backend/internal/store"
	"messenger-backend/internal/utils"
)

func Run() {
	// Load Env
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Storage backend: Postgres when DATABASE_URL is set, otherwise the
	// in-memory store.
	var st store.Store
	if connString := utils.GetEnv("DATABASE_URL", ""); connString != "" {
		pool, err := db.Connect(connString)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		pg := store.NewPostgresStore(pool, utils.GetEnvInt("CHAT_SCAN_LIMIT", 50))
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		st = pg
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Core wiring
	registry := presence.NewRegistry()
	userService := services.NewUserService(st)
	aggregator := chat.NewAggregator(st)
	router := chat.NewRouter(st, st, handlers.RegistryPeers{Registry: registry})

	wsDeps := handlers.WSDeps{
		Registry:   registry,
		Router:     router,
		Aggregator: aggregator,
		Users:      userService,
	}

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return c.Status(409).JSON(fiber.Map{"error": "username already exists"})
			}
			if errors.Is(err, apperr.ErrValidation) {
				return c.Status(400).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return c.Status(404).JSON(fiber.Map{"error": "user not found"})
			}
			return c.Status(401).JSON(fiber.Map{"error": "invalid credentials"})
		}
		return c.JSON(res)
	})

	// Refresh token endpoint
	api.Post("/refresh", func(c *fiber.Ctx) error {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if body.RefreshToken == "" {
			return c.Status(400).JSON(fiber.Map{"error": "refresh_token required"})
		}

		claims, err := services.ValidateRefreshToken(body.RefreshToken)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid refresh token"})
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token claims"})
		}
		username, _ := claims["username"].(string)

		access, err := services.GenerateJWT(userID, username)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to generate access token"})
		}
		refresh, err := services.GenerateRefreshToken(userID, username)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to generate refresh token"})
		}

		return c.JSON(fiber.Map{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware)

	protected.Post("/logout", handlers.LogoutHandler(userService))
	protected.Get("/profile", handlers.GetProfileHandler(userService))
	protected.Get("/users", handlers.ListUsernamesHandler(userService))
	protected.Get("/users/search", handlers.SearchUsersHandler(userService))

	// Chat Routes
	protected.Get("/chats", handlers.ChatListHandler(registry, aggregator))
	protected.Get("/messages/:user_id", handlers.MessagesHandler(st))
	protected.Post("/messages/:user_id", handlers.SendMessageHandler(router))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. AuthMiddleware checks token.
	// WSUpgradeMiddleware checks if it's a WS request.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(wsDeps))

	// Start Server
	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
}

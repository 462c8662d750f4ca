package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/jpcarvajal/chatpay-backend/internal/handlers"
	"github.com/jpcarvajal/chatpay-backend/internal/middleware"
	"github.com/jpcarvajal/chatpay-backend/internal/services"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	app *fiber.App,
	store storage.Store,
	auth *services.AuthService,
	manager *services.DialogueManager,
	notifier services.Notifier,
) {
	healthHandler := handlers.NewHealthHandler("1.0.0")
	authHandler := handlers.NewAuthHandler(auth)
	chatHandler := handlers.NewChatHandler(manager)
	conversationHandler := handlers.NewConversationHandler(store)
	whatsappHandler := handlers.NewWhatsAppHandler(store, manager, notifier)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to ChatPay Backend!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":  "/health",
				"auth":    "/auth",
				"api":     "/api",
				"webhook": "/webhook/whatsapp",
			},
		})
	})

	app.Get("/health", healthHandler.Check)

	// Auth routes
	authGroup := app.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// API routes (JWT protected)
	api := app.Group("/api", middleware.RequireAuth(auth, store))

	conversations := api.Group("/conversations")
	conversations.Post("/chat", chatHandler.Chat)
	conversations.Get("/", conversationHandler.ListConversations)
	conversations.Get("/:id", conversationHandler.GetConversation)
	conversations.Post("/:id/close", conversationHandler.CloseConversation)
	conversations.Delete("/:id", conversationHandler.DeleteConversation)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/whatsapp", whatsappHandler.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(), whatsappHandler.HandleWebhook)
	}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
	"github.com/jpcarvajal/chatpay-backend/internal/services"
)

// ChatRequest is one inbound chat message
type ChatRequest struct {
	ConversationID uint   `json:"conversation_id"`
	Message        string `json:"message"`
}

// ChatHandler exposes the dialogue manager over HTTP
type ChatHandler struct {
	manager *services.DialogueManager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(manager *services.DialogueManager) *ChatHandler {
	return &ChatHandler{manager: manager}
}

// Chat handles one conversational turn for the authenticated user
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	reply, err := h.manager.HandleMessage(c.Context(), user.ID, req.ConversationID, req.Message)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(reply)
}

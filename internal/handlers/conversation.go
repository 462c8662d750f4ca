package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

// ConversationHandler serves conversation history for the authenticated user
type ConversationHandler struct {
	store storage.Store
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(store storage.Store) *ConversationHandler {
	return &ConversationHandler{store: store}
}

func currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals("user").(*models.User)
	return user, ok
}

// ListConversations returns the user's conversations, oldest first
func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	conversations, err := h.store.GetConversationsByUser(user.ID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list conversations",
		})
	}

	return c.JSON(fiber.Map{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// GetConversation returns one conversation with its recent turns
func (h *ConversationHandler) GetConversation(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation ID",
		})
	}

	conv, err := h.store.GetConversation(uint(id))
	if err != nil || conv.UserID != user.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	turns, err := h.store.GetTurnsByConversation(conv.ID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load conversation turns",
		})
	}

	return c.JSON(fiber.Map{
		"conversation": conv,
		"turns":        turns,
	})
}

// CloseConversation marks a conversation as abandoned
func (h *ConversationHandler) CloseConversation(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation ID",
		})
	}

	conv, err := h.store.GetConversation(uint(id))
	if err != nil || conv.UserID != user.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	now := time.Now()
	conv.Status = models.StatusAbandoned
	conv.EndedAt = &now
	if err := h.store.UpdateConversation(conv); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to close conversation",
		})
	}

	return c.JSON(fiber.Map{
		"message":      "Conversation closed",
		"conversation": conv,
	})
}

// DeleteConversation removes a conversation and its history
func (h *ConversationHandler) DeleteConversation(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation ID",
		})
	}

	conv, err := h.store.GetConversation(uint(id))
	if err != nil || conv.UserID != user.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	if err := h.store.DeleteConversation(conv.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete conversation",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Conversation deleted",
	})
}

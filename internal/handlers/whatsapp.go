package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jpcarvajal/chatpay-backend/internal/services"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

// WhatsAppHandler bridges Twilio's WhatsApp webhook to the dialogue manager
type WhatsAppHandler struct {
	store    storage.Store
	manager  *services.DialogueManager
	notifier services.Notifier
}

// NewWhatsAppHandler creates a new WhatsApp handler. notifier may be nil
// when Twilio is not configured; replies are then only logged.
func NewWhatsAppHandler(store storage.Store, manager *services.DialogueManager, notifier services.Notifier) *WhatsAppHandler {
	return &WhatsAppHandler{
		store:    store,
		manager:  manager,
		notifier: notifier,
	}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // WhatsApp number (whatsapp:+573001234567)
	To         string `form:"To"`
	Body       string `form:"Body"`
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Status callbacks arrive on the same webhook with an empty body
	if payload.Body == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	from := strings.TrimPrefix(payload.From, "whatsapp:")
	log.Printf("📱 WhatsApp message from %s: %s", from, payload.Body)

	user, err := h.store.GetUserByPhone(services.CanonicalPhone(from))
	if err != nil {
		h.reply(from, "No encontré una cuenta asociada a este número. Regístrate primero en la aplicación.")
		return c.SendStatus(fiber.StatusOK)
	}

	// WhatsApp users always continue their active conversation, if any
	var conversationID uint
	if conv, err := h.store.GetActiveConversationByUser(user.ID); err == nil {
		conversationID = conv.ID
	}

	chatReply, err := h.manager.HandleMessage(c.Context(), user.ID, conversationID, payload.Body)
	if err != nil {
		log.Printf("Error processing WhatsApp message: %v", err)
		h.reply(from, "Lo siento, algo salió mal. Por favor intenta de nuevo.")
		return c.SendStatus(fiber.StatusOK)
	}

	h.reply(from, chatReply.Response)
	return c.SendStatus(fiber.StatusOK)
}

func (h *WhatsAppHandler) reply(to, message string) {
	if h.notifier == nil {
		log.Printf("📤 Response (not sent - Twilio not configured): %s", message)
		return
	}
	if err := h.notifier.Send(to, message); err != nil {
		log.Printf("❌ Failed to send WhatsApp response: %v", err)
	}
}

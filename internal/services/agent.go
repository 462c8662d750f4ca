package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

// Dispatcher publishes a transfer for asynchronous execution and returns
// the correlation id that links it to its eventual result.
type Dispatcher interface {
	Dispatch(ctx context.Context, conv *models.Conversation) (string, error)
}

// ChatReply is the synchronous answer to one inbound message
type ChatReply struct {
	ConversationID uint   `json:"conversation_id"`
	Response       string `json:"response"`
	Status         string `json:"status"`
}

// DialogueManager drives the turn-by-turn transfer conversation: it
// extracts and accumulates slots, validates them, requires an explicit
// confirmation before any money moves, dispatches the transfer and leaves
// the cycle open until the reconciler closes it.
type DialogueManager struct {
	store      storage.Store
	extractor  *Extractor
	dispatcher Dispatcher
	cache      *ContextCache
	locks      *ConversationLocks
}

// NewDialogueManager creates the dialogue manager. cache may be nil.
func NewDialogueManager(
	store storage.Store,
	extractor *Extractor,
	dispatcher Dispatcher,
	cache *ContextCache,
	locks *ConversationLocks,
) *DialogueManager {
	return &DialogueManager{
		store:      store,
		extractor:  extractor,
		dispatcher: dispatcher,
		cache:      cache,
		locks:      locks,
	}
}

// HandleMessage is the inbound entry point: one user message in, one reply
// out. conversationID zero (or unknown) starts a new conversation.
func (d *DialogueManager) HandleMessage(ctx context.Context, userID, conversationID uint, text string) (*ChatReply, error) {
	conv, err := d.resolveConversation(userID, conversationID)
	if err != nil {
		return nil, err
	}

	d.locks.Lock(conv.ID)
	defer d.locks.Unlock(conv.ID)

	// reload under the lock so a concurrent reconciliation is not lost
	conv, err = d.store.GetConversation(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %d: %w", conv.ID, err)
	}

	userPhase := conv.Phase
	reply := d.step(ctx, conv, text)

	if err := d.store.UpdateConversation(conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation %d: %w", conv.ID, err)
	}
	if _, err := d.store.AppendTurn(&models.Turn{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        text,
		Phase:          userPhase,
	}); err != nil {
		return nil, fmt.Errorf("failed to record user turn: %w", err)
	}
	if _, err := d.store.AppendTurn(&models.Turn{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        reply,
		Phase:          conv.Phase,
	}); err != nil {
		return nil, fmt.Errorf("failed to record assistant turn: %w", err)
	}

	if d.cache != nil {
		d.cache.SetConversation(ctx, conv)
	}

	return &ChatReply{
		ConversationID: conv.ID,
		Response:       reply,
		Status:         conv.Status,
	}, nil
}

// resolveConversation loads the target conversation, creating a new one
// when none exists and reactivating closed ones, as the chat API allows
// users to keep talking on a finished conversation.
func (d *DialogueManager) resolveConversation(userID, conversationID uint) (*models.Conversation, error) {
	if conversationID != 0 {
		conv, err := d.store.GetConversation(conversationID)
		if err == nil && conv.UserID == userID {
			if conv.Status != models.StatusActive {
				conv.Status = models.StatusActive
				if err := d.store.UpdateConversation(conv); err != nil {
					return nil, fmt.Errorf("failed to reactivate conversation %d: %w", conv.ID, err)
				}
			}
			return conv, nil
		}
		if err != nil && err != storage.ErrNotFound {
			return nil, fmt.Errorf("failed to load conversation %d: %w", conversationID, err)
		}
		// unknown or foreign id: fall through and start fresh
	}

	conv, err := d.store.CreateConversation(&models.Conversation{
		UserID: userID,
		Status: models.StatusActive,
		Phase:  models.PhaseCollecting,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// step runs one state-machine transition and returns the reply text.
// It mutates conv; the caller persists it.
func (d *DialogueManager) step(ctx context.Context, conv *models.Conversation, text string) string {
	// an in-flight dispatch must not be corrupted by new messages
	if conv.Phase == models.PhaseAwaitingResult || conv.Phase == models.PhaseDispatching {
		return "Tu transferencia anterior todavía está en proceso. Te avisaré en cuanto haya un resultado."
	}

	// a terminal cycle restarts collecting on the next message
	if conv.Phase == models.PhaseResolved || conv.Phase == models.PhaseCancelled {
		conv.ClearSlots()
		conv.PendingCorrelationID = ""
		conv.Phase = models.PhaseCollecting
	}

	if conv.Phase == models.PhaseAwaitingConfirmation {
		return d.stepConfirmation(ctx, conv, text)
	}
	return d.stepCollecting(ctx, conv, text)
}

func (d *DialogueManager) stepCollecting(ctx context.Context, conv *models.Conversation, text string) string {
	if isBalanceQuery(text) {
		return d.balanceReply(conv.UserID)
	}
	if isOffTopic(text) {
		return "Solo puedo ayudarte con transferencias de dinero y consultas de saldo. " +
			"¿Te gustaría hacer una transferencia o consultar tu saldo?"
	}

	delta := d.extractor.Extract(ctx, text, PriorSlots{Phone: conv.RecipientPhone, Amount: conv.Amount})
	return d.mergeAndAdvance(conv, delta)
}

func (d *DialogueManager) stepConfirmation(ctx context.Context, conv *models.Conversation, text string) string {
	// balance questions get answered without disturbing the pending confirmation
	if isBalanceQuery(text) {
		return d.balanceReply(conv.UserID)
	}

	switch ClassifyIntent(text) {
	case IntentConfirm:
		return d.dispatchTransfer(ctx, conv)

	case IntentCancel:
		conv.ClearSlots()
		conv.Phase = models.PhaseCancelled
		conv.Status = models.StatusAbandoned
		return "Transferencia cancelada. Si deseas hacer otra transferencia, dime el teléfono del destinatario y el monto."

	default:
		// the user may be correcting a slot instead of confirming
		delta := d.extractor.Extract(ctx, text, PriorSlots{Phone: conv.RecipientPhone, Amount: conv.Amount})
		if delta.Empty() {
			return "Por favor escribe CONFIRMO para ejecutar la transferencia o CANCELAR para cancelarla."
		}
		conv.Phase = models.PhaseCollecting
		return d.mergeAndAdvance(conv, delta)
	}
}

// mergeAndAdvance folds validated slot candidates into the conversation,
// reports invalid ones field by field, asks for what is still missing and
// moves to confirmation once both slots are present and valid. A new
// explicit value always overwrites a previously accumulated one.
func (d *DialogueManager) mergeAndAdvance(conv *models.Conversation, delta SlotDelta) string {
	result := ValidateSlots(delta)

	for _, slot := range result.Valid {
		switch slot {
		case SlotPhone:
			conv.RecipientPhone = NormalizePhone(delta.Phone)
		case SlotAmount:
			conv.Amount = delta.Amount
		}
	}

	var invalid []string
	if reason, ok := result.Invalid[SlotPhone]; ok {
		invalid = append(invalid, "Teléfono: "+reason)
	}
	if reason, ok := result.Invalid[SlotAmount]; ok {
		invalid = append(invalid, "Monto: "+reason)
	}

	if len(invalid) > 0 {
		// valid slots were already kept; only the broken fields are reported
		return strings.Join(invalid, "\n")
	}

	switch {
	case conv.HasPhone() && conv.HasAmount():
		conv.Phase = models.PhaseAwaitingConfirmation
		return d.confirmationPrompt(conv)
	case conv.HasPhone():
		return fmt.Sprintf("Tengo el teléfono %s. ¿Qué monto deseas transferir?", conv.RecipientPhone)
	case conv.HasAmount():
		return fmt.Sprintf("Tengo el monto de $%s %s. ¿A qué número de teléfono (10 dígitos) deseas enviarlo?",
			formatAmount(conv.Amount), conv.Currency)
	default:
		return "¡Hola! Puedo ayudarte a transferir dinero. Dime el número de teléfono del destinatario (10 dígitos) y el monto que deseas enviar."
	}
}

func (d *DialogueManager) confirmationPrompt(conv *models.Conversation) string {
	prompt := fmt.Sprintf("Para transferir $%s %s al teléfono %s, escribe CONFIRMO. Si deseas cancelar, escribe CANCELAR.",
		formatAmount(conv.Amount), conv.Currency, conv.RecipientPhone)

	if user, err := d.store.GetUser(conv.UserID); err == nil {
		return fmt.Sprintf("Tu saldo actual es $%s %s. %s", formatAmount(user.Balance), user.Currency, prompt)
	}
	return prompt
}

func (d *DialogueManager) dispatchTransfer(ctx context.Context, conv *models.Conversation) string {
	conv.Phase = models.PhaseDispatching

	correlationID, err := d.dispatcher.Dispatch(ctx, conv)
	if err != nil {
		log.Printf("Dispatch failed for conversation %d: %v", conv.ID, err)
		// fall back so the user can retry; the abandoned id is never reused
		conv.Phase = models.PhaseAwaitingConfirmation
		return "No pude enviar tu transferencia en este momento. Escribe CONFIRMO para intentarlo de nuevo o CANCELAR para cancelar."
	}

	conv.PendingCorrelationID = correlationID
	conv.Phase = models.PhaseAwaitingResult
	return fmt.Sprintf("Tu solicitud de transferencia ha sido enviada (ID: %s). Procesando transferencia de $%s %s al %s...",
		correlationID, formatAmount(conv.Amount), conv.Currency, conv.RecipientPhone)
}

func (d *DialogueManager) balanceReply(userID uint) string {
	user, err := d.store.GetUser(userID)
	if err != nil {
		log.Printf("Failed to load balance for user %d: %v", userID, err)
		return "No pude obtener tu saldo en este momento. Por favor, intenta más tarde."
	}
	return fmt.Sprintf("Tu saldo actual es $%s %s.", formatAmount(user.Balance), user.Currency)
}

var balanceKeywords = []string{
	"saldo",
	"balance",
	"cuánto tengo",
	"cuanto tengo",
	"cuánto dinero tengo",
	"cuanto dinero tengo",
}

func isBalanceQuery(message string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(message))
	for _, keyword := range balanceKeywords {
		if strings.Contains(cleaned, keyword) {
			return true
		}
	}
	return false
}

// offTopic lists themes that are clearly not about money transfers; anything
// not listed is allowed through so the conversation stays natural.
var offTopic = []string{
	"distancia del sol",
	"distancia de la luna",
	"planeta",
	"galaxia",
	"universo",
	"astronomía",
	"astronomia",
	"capital de",
	"pronóstico del tiempo",
	"pronostico del tiempo",
	"clima en",
	"temperatura en",
}

func isOffTopic(message string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(message))
	for _, keyword := range offTopic {
		if strings.Contains(cleaned, keyword) {
			return true
		}
	}
	return false
}

// formatAmount renders a monetary value with thousands separators,
// keeping decimals only when present ("100000" -> "100,000")
func formatAmount(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}

	s := strconv.FormatFloat(value, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := sign + strings.Join(groups, ",")
	if fracPart != "" {
		out += "." + fracPart
	}
	return out
}

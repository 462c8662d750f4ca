package models

import (
	"time"

	"gorm.io/gorm"
)

// Phase is the dialogue state of the current transfer cycle
type Phase string

const (
	PhaseCollecting           Phase = "collecting"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseDispatching          Phase = "dispatching"
	PhaseAwaitingResult       Phase = "awaiting_result"
	PhaseResolved             Phase = "resolved"
	PhaseCancelled            Phase = "cancelled"
)

// Conversation lifecycle status as exposed on the REST API
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// Conversation holds the accumulated transfer slots and lifecycle phase
// of one ongoing chat. A conversation carries successive transfer cycles:
// resolving or cancelling a cycle clears the slots and the next message
// starts collecting again on the same row.
type Conversation struct {
	gorm.Model
	UserID         uint   `json:"user_id" gorm:"index;not null"`
	Status         string `json:"status" gorm:"size:20;default:active"`
	Phase          Phase  `json:"phase" gorm:"size:30;default:collecting"`
	RecipientPhone string `json:"recipient_phone" gorm:"size:20"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency" gorm:"size:10;default:COP"`

	// PendingCorrelationID is set only while a dispatched transfer is in
	// flight. At most one in-flight transfer per conversation.
	PendingCorrelationID string `json:"pending_correlation_id" gorm:"size:255;index"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// HasPhone reports whether the recipient phone slot is filled
func (c *Conversation) HasPhone() bool {
	return c.RecipientPhone != ""
}

// HasAmount reports whether the amount slot is filled
func (c *Conversation) HasAmount() bool {
	return c.Amount > 0
}

// ClearSlots resets the transfer slots for a fresh collecting cycle
func (c *Conversation) ClearSlots() {
	c.RecipientPhone = ""
	c.Amount = 0
}

// Turn is one message in a conversation, immutable once recorded
type Turn struct {
	gorm.Model
	ConversationID uint   `json:"conversation_id" gorm:"index;not null"`
	Role           string `json:"role" gorm:"size:20;not null"` // "user" or "assistant"
	Content        string `json:"content" gorm:"type:text;not null"`
	Phase          Phase  `json:"phase" gorm:"size:30"` // phase after this turn was processed
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

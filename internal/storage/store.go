package storage

import (
	"errors"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// ErrDuplicateUser is returned when a username or email is already registered
var ErrDuplicateUser = errors.New("username or email already registered")

// Store defines the interface for storage operations
type Store interface {
	// User operations
	CreateUser(user *models.User) (*models.User, error)
	GetUser(id uint) (*models.User, error)
	GetUserByUsernameOrEmail(identifier string) (*models.User, error)
	GetUserByPhone(phone string) (*models.User, error)
	UpdateUser(user *models.User) error

	// Conversation operations
	CreateConversation(conv *models.Conversation) (*models.Conversation, error)
	GetConversation(id uint) (*models.Conversation, error)
	GetConversationByCorrelationID(correlationID string) (*models.Conversation, error)
	GetActiveConversationByUser(userID uint) (*models.Conversation, error)
	GetConversationsByUser(userID uint, offset, limit int) ([]*models.Conversation, error)
	GetAllConversations(offset, limit int) ([]*models.Conversation, error)
	UpdateConversation(conv *models.Conversation) error
	DeleteConversation(id uint) error

	// Turn operations
	AppendTurn(turn *models.Turn) (*models.Turn, error)
	GetTurnsByConversation(conversationID uint, limit int) ([]*models.Turn, error)
}

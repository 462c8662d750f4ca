package storage

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

// DatabaseStore implements Store using GORM/PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) CreateUser(user *models.User) (*models.User, error) {
	var count int64
	s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", user.Username, user.Email).
		Count(&count)
	if count > 0 {
		return nil, ErrDuplicateUser
	}

	if user.Currency == "" {
		user.Currency = models.DefaultCurrency
	}
	if err := s.db.Create(user).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return user, nil
}

func (s *DatabaseStore) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByUsernameOrEmail(identifier string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ? OR email = ?", identifier, identifier).First(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByPhone(phone string) (*models.User, error) {
	var user models.User
	err := s.db.Where("phone = ?", phone).First(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *DatabaseStore) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

func (s *DatabaseStore) CreateConversation(conv *models.Conversation) (*models.Conversation, error) {
	if conv.Status == "" {
		conv.Status = models.StatusActive
	}
	if conv.Phase == "" {
		conv.Phase = models.PhaseCollecting
	}
	if conv.Currency == "" {
		conv.Currency = models.DefaultCurrency
	}
	if conv.StartedAt.IsZero() {
		conv.StartedAt = s.db.NowFunc()
	}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *DatabaseStore) GetConversation(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.First(&conv, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &conv, nil
}

func (s *DatabaseStore) GetConversationByCorrelationID(correlationID string) (*models.Conversation, error) {
	if correlationID == "" {
		return nil, ErrNotFound
	}
	var conv models.Conversation
	err := s.db.Where("pending_correlation_id = ?", correlationID).First(&conv).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &conv, nil
}

func (s *DatabaseStore) GetActiveConversationByUser(userID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Where("user_id = ? AND status = ?", userID, models.StatusActive).
		Order("id DESC").
		First(&conv).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &conv, nil
}

func (s *DatabaseStore) GetConversationsByUser(userID uint, offset, limit int) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	q := s.db.Where("user_id = ?", userID).Order("id ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *DatabaseStore) GetAllConversations(offset, limit int) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	q := s.db.Order("id ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *DatabaseStore) UpdateConversation(conv *models.Conversation) error {
	return s.db.Save(conv).Error
}

func (s *DatabaseStore) DeleteConversation(id uint) error {
	result := s.db.Delete(&models.Conversation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) AppendTurn(turn *models.Turn) (*models.Turn, error) {
	if err := s.db.Create(turn).Error; err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *DatabaseStore) GetTurnsByConversation(conversationID uint, limit int) ([]*models.Turn, error) {
	var turns []*models.Turn
	q := s.db.Where("conversation_id = ?", conversationID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&turns).Error; err != nil {
		return nil, err
	}
	// reverse back to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

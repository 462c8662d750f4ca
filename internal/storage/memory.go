package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

// MemoryStore is an in-memory implementation of Store for testing
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[uint]*models.User
	conversations map[uint]*models.Conversation
	turns         map[uint][]*models.Turn // keyed by conversation id
	nextUserID    uint
	nextConvID    uint
	nextTurnID    uint
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uint]*models.User),
		conversations: make(map[uint]*models.Conversation),
		turns:         make(map[uint][]*models.Turn),
		nextUserID:    1,
		nextConvID:    1,
		nextTurnID:    1,
	}
}

func (m *MemoryStore) CreateUser(user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return nil, ErrDuplicateUser
		}
	}

	cp := *user
	cp.ID = m.nextUserID
	cp.CreatedAt = time.Now()
	if cp.Currency == "" {
		cp.Currency = models.DefaultCurrency
	}
	m.nextUserID++
	m.users[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (m *MemoryStore) GetUser(id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryStore) GetUserByUsernameOrEmail(identifier string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Phone != "" && u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	cp := *user
	cp.UpdatedAt = time.Now()
	m.users[user.ID] = &cp
	return nil
}

func (m *MemoryStore) CreateConversation(conv *models.Conversation) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *conv
	cp.ID = m.nextConvID
	cp.CreatedAt = time.Now()
	if cp.Status == "" {
		cp.Status = models.StatusActive
	}
	if cp.Phase == "" {
		cp.Phase = models.PhaseCollecting
	}
	if cp.Currency == "" {
		cp.Currency = models.DefaultCurrency
	}
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now()
	}
	m.nextConvID++
	m.conversations[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (m *MemoryStore) GetConversation(id uint) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *MemoryStore) GetConversationByCorrelationID(correlationID string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if correlationID == "" {
		return nil, ErrNotFound
	}
	for _, conv := range m.conversations {
		if conv.PendingCorrelationID == correlationID {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetActiveConversationByUser(userID uint) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Conversation
	for _, conv := range m.conversations {
		if conv.UserID != userID || conv.Status != models.StatusActive {
			continue
		}
		if latest == nil || conv.ID > latest.ID {
			latest = conv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryStore) GetConversationsByUser(userID uint, offset, limit int) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			cp := *conv
			result = append(result, &cp)
		}
	}
	sortConversations(result)
	return paginate(result, offset, limit), nil
}

func (m *MemoryStore) GetAllConversations(offset, limit int) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		cp := *conv
		result = append(result, &cp)
	}
	sortConversations(result)
	return paginate(result, offset, limit), nil
}

func (m *MemoryStore) UpdateConversation(conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	cp := *conv
	cp.UpdatedAt = time.Now()
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteConversation(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.turns, id)
	return nil
}

func (m *MemoryStore) AppendTurn(turn *models.Turn) (*models.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[turn.ConversationID]; !ok {
		return nil, ErrNotFound
	}

	cp := *turn
	cp.ID = m.nextTurnID
	cp.CreatedAt = time.Now()
	m.nextTurnID++
	m.turns[cp.ConversationID] = append(m.turns[cp.ConversationID], &cp)

	out := cp
	return &out, nil
}

func (m *MemoryStore) GetTurnsByConversation(conversationID uint, limit int) ([]*models.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := m.turns[conversationID]
	start := 0
	if limit > 0 && len(turns) > limit {
		start = len(turns) - limit
	}

	result := make([]*models.Turn, 0, len(turns)-start)
	for _, t := range turns[start:] {
		cp := *t
		result = append(result, &cp)
	}
	return result, nil
}

func sortConversations(convs []*models.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].ID < convs[j].ID
	})
}

func paginate(convs []*models.Conversation, offset, limit int) []*models.Conversation {
	if offset >= len(convs) {
		return []*models.Conversation{}
	}
	convs = convs[offset:]
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs
}

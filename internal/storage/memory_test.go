package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

func TestMemoryStoreUsers(t *testing.T) {
	store := NewMemoryStore()

	user, err := store.CreateUser(&models.User{
		Username: "juan", Email: "juan@example.com", HashedPassword: "x", Phone: "3009998877",
	})
	require.NoError(t, err)
	require.Equal(t, uint(1), user.ID)
	require.Equal(t, models.DefaultCurrency, user.Currency)

	t.Run("duplicate username or email", func(t *testing.T) {
		_, err := store.CreateUser(&models.User{Username: "JUAN", Email: "other@example.com"})
		require.ErrorIs(t, err, ErrDuplicateUser)
		_, err = store.CreateUser(&models.User{Username: "other", Email: "Juan@Example.com"})
		require.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("lookup by username, email and phone", func(t *testing.T) {
		byName, err := store.GetUserByUsernameOrEmail("juan")
		require.NoError(t, err)
		require.Equal(t, user.ID, byName.ID)

		byEmail, err := store.GetUserByUsernameOrEmail("juan@example.com")
		require.NoError(t, err)
		require.Equal(t, user.ID, byEmail.ID)

		byPhone, err := store.GetUserByPhone("3009998877")
		require.NoError(t, err)
		require.Equal(t, user.ID, byPhone.ID)

		_, err = store.GetUserByPhone("0000000000")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update balance", func(t *testing.T) {
		user.Balance = 250000
		require.NoError(t, store.UpdateUser(user))

		got, err := store.GetUser(user.ID)
		require.NoError(t, err)
		require.Equal(t, 250000.0, got.Balance)
	})

	t.Run("copies do not alias the store", func(t *testing.T) {
		got, err := store.GetUser(user.ID)
		require.NoError(t, err)
		got.Balance = -1

		again, err := store.GetUser(user.ID)
		require.NoError(t, err)
		require.Equal(t, 250000.0, again.Balance)
	})
}

func TestMemoryStoreConversations(t *testing.T) {
	store := NewMemoryStore()
	user, err := store.CreateUser(&models.User{Username: "juan", Email: "juan@example.com"})
	require.NoError(t, err)

	conv, err := store.CreateConversation(&models.Conversation{UserID: user.ID})
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, conv.Status)
	require.Equal(t, models.PhaseCollecting, conv.Phase)
	require.False(t, conv.StartedAt.IsZero())

	t.Run("correlation id lookup", func(t *testing.T) {
		conv.PendingCorrelationID = "TXN-12345678"
		require.NoError(t, store.UpdateConversation(conv))

		got, err := store.GetConversationByCorrelationID("TXN-12345678")
		require.NoError(t, err)
		require.Equal(t, conv.ID, got.ID)

		_, err = store.GetConversationByCorrelationID("TXN-FFFFFFFF")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetConversationByCorrelationID("")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("active conversation picks the latest", func(t *testing.T) {
		second, err := store.CreateConversation(&models.Conversation{UserID: user.ID})
		require.NoError(t, err)

		got, err := store.GetActiveConversationByUser(user.ID)
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)

		second.Status = models.StatusCompleted
		require.NoError(t, store.UpdateConversation(second))

		got, err = store.GetActiveConversationByUser(user.ID)
		require.NoError(t, err)
		require.Equal(t, conv.ID, got.ID)
	})

	t.Run("pagination", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := store.CreateConversation(&models.Conversation{UserID: user.ID})
			require.NoError(t, err)
		}

		page, err := store.GetConversationsByUser(user.ID, 0, 3)
		require.NoError(t, err)
		require.Len(t, page, 3)

		rest, err := store.GetConversationsByUser(user.ID, 3, 0)
		require.NoError(t, err)
		require.Len(t, rest, 4)

		// oldest first, ids strictly increasing across pages
		require.Less(t, page[2].ID, rest[0].ID)

		empty, err := store.GetConversationsByUser(user.ID, 100, 10)
		require.NoError(t, err)
		require.Empty(t, empty)
	})

	t.Run("delete removes turns too", func(t *testing.T) {
		victim, err := store.CreateConversation(&models.Conversation{UserID: user.ID})
		require.NoError(t, err)
		_, err = store.AppendTurn(&models.Turn{ConversationID: victim.ID, Role: models.RoleUser, Content: "hola"})
		require.NoError(t, err)

		require.NoError(t, store.DeleteConversation(victim.ID))
		_, err = store.GetConversation(victim.ID)
		require.ErrorIs(t, err, ErrNotFound)

		turns, err := store.GetTurnsByConversation(victim.ID, 0)
		require.NoError(t, err)
		require.Empty(t, turns)
	})
}

func TestMemoryStoreTurns(t *testing.T) {
	store := NewMemoryStore()
	user, err := store.CreateUser(&models.User{Username: "juan", Email: "juan@example.com"})
	require.NoError(t, err)
	conv, err := store.CreateConversation(&models.Conversation{UserID: user.ID})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := store.AppendTurn(&models.Turn{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        fmt.Sprintf("mensaje %d", i),
		})
		require.NoError(t, err)
	}

	t.Run("limit keeps the most recent in order", func(t *testing.T) {
		turns, err := store.GetTurnsByConversation(conv.ID, 3)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		require.Equal(t, "mensaje 3", turns[0].Content)
		require.Equal(t, "mensaje 5", turns[2].Content)
	})

	t.Run("zero limit returns everything", func(t *testing.T) {
		turns, err := store.GetTurnsByConversation(conv.ID, 0)
		require.NoError(t, err)
		require.Len(t, turns, 6)
	})

	t.Run("unknown conversation rejects appends", func(t *testing.T) {
		_, err := store.AppendTurn(&models.Turn{ConversationID: 999, Role: models.RoleUser, Content: "x"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

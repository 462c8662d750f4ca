package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Send(to, message string) error {
	f.sent = append(f.sent, message)
	return nil
}

func newAwaitingConversation(t *testing.T, store storage.Store, correlationID string) (*models.User, *models.Conversation) {
	t.Helper()

	user, err := store.CreateUser(&models.User{
		Username: "juan", Email: "juan@example.com", HashedPassword: "x",
		Phone: "3009998877", Balance: 500000,
	})
	require.NoError(t, err)

	conv, err := store.CreateConversation(&models.Conversation{
		UserID:               user.ID,
		Status:               models.StatusActive,
		Phase:                models.PhaseAwaitingResult,
		RecipientPhone:       "3001234567",
		Amount:               1000,
		PendingCorrelationID: correlationID,
	})
	require.NoError(t, err)
	return user, conv
}

func TestReconcilerSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{}
	reconciler := NewReconciler(store, NewConversationLocks(), notifier)
	_, conv := newAwaitingConversation(t, store, "TXN-AAAA1111")

	balance := 499000.0
	err := reconciler.OnResult(context.Background(), &models.TransferResult{
		TransactionID: "TXN-AAAA1111",
		Status:        models.TransferStatusSuccess,
		Message:       "Transferencia exitosa",
		BalanceAfter:  &balance,
		Currency:      "COP",
	})
	require.NoError(t, err)

	conv, err = store.GetConversation(conv.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhaseResolved, conv.Phase)
	require.Equal(t, models.StatusCompleted, conv.Status)
	require.Empty(t, conv.PendingCorrelationID)
	require.False(t, conv.HasPhone())
	require.False(t, conv.HasAmount())

	// assistant turn carries the worker's message and the new balance
	turns, err := store.GetTurnsByConversation(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Contains(t, turns[0].Content, "Transferencia exitosa")
	require.Contains(t, turns[0].Content, "499,000")

	require.Len(t, notifier.sent, 1)
	require.Equal(t, turns[0].Content, notifier.sent[0])
}

func TestReconcilerFailureReason(t *testing.T) {
	store := storage.NewMemoryStore()
	reconciler := NewReconciler(store, NewConversationLocks(), nil)
	_, conv := newAwaitingConversation(t, store, "TXN-BBBB2222")

	err := reconciler.OnResult(context.Background(), &models.TransferResult{
		TransactionID: "TXN-BBBB2222",
		Status:        models.TransferStatusFailed,
		ErrorMessage:  "saldo insuficiente",
	})
	require.NoError(t, err)

	turns, err := store.GetTurnsByConversation(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Contains(t, turns[0].Content, "fallida")
	require.Contains(t, turns[0].Content, "saldo insuficiente")

	// a failed transfer still closes the cycle
	conv, err = store.GetConversation(conv.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhaseResolved, conv.Phase)
}

func TestReconcilerIgnoresUnknownCorrelationID(t *testing.T) {
	store := storage.NewMemoryStore()
	reconciler := NewReconciler(store, NewConversationLocks(), nil)
	_, conv := newAwaitingConversation(t, store, "TXN-CCCC3333")

	err := reconciler.OnResult(context.Background(), &models.TransferResult{
		TransactionID: "TXN-UNKNOWN1",
		Status:        models.TransferStatusSuccess,
	})
	require.NoError(t, err)

	conv, err = store.GetConversation(conv.ID)
	require.NoError(t, err)
	require.Equal(t, models.PhaseAwaitingResult, conv.Phase)
	require.Equal(t, "TXN-CCCC3333", conv.PendingCorrelationID)
}

func TestReconcilerDuplicateResultIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	reconciler := NewReconciler(store, NewConversationLocks(), nil)
	_, conv := newAwaitingConversation(t, store, "TXN-DDDD4444")

	result := &models.TransferResult{
		TransactionID: "TXN-DDDD4444",
		Status:        models.TransferStatusSuccess,
	}
	require.NoError(t, reconciler.OnResult(context.Background(), result))
	require.NoError(t, reconciler.OnResult(context.Background(), result))

	// the redelivery left no second turn behind
	turns, err := store.GetTurnsByConversation(conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

// flakyConsumer fails its first subscriptions, then delivers one result and
// blocks like a live broker subscription would.
type flakyConsumer struct {
	mu       sync.Mutex
	failures int
	delivery []byte
	calls    int
}

func (f *flakyConsumer) Consume(ctx context.Context, queue string, handler func(body []byte) error) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call <= f.failures {
		return errors.New("channel/connection is not open")
	}
	if f.delivery != nil {
		_ = handler(f.delivery)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *flakyConsumer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestResultListenerResubscribesAfterBrokerFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	reconciler := NewReconciler(store, NewConversationLocks(), nil)
	_, conv := newAwaitingConversation(t, store, "TXN-EEEE5555")

	body, err := json.Marshal(&models.TransferResult{
		TransactionID: "TXN-EEEE5555",
		Status:        models.TransferStatusSuccess,
	})
	require.NoError(t, err)

	consumer := &flakyConsumer{failures: 2, delivery: body}
	listener := NewResultListener(consumer, reconciler)
	listener.backoff = time.Millisecond
	listener.maxBackoff = 5 * time.Millisecond

	listener.Start()
	defer listener.Stop()

	// the first two subscriptions fail; the loop must come back for a third
	// and process the delivery it finally gets
	require.Eventually(t, func() bool {
		return consumer.callCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := store.GetConversation(conv.ID)
		return err == nil && got.Phase == models.PhaseResolved
	}, 2*time.Second, 5*time.Millisecond)
}

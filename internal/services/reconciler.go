package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

// ResultQueue is where the banking worker publishes transfer outcomes.
const ResultQueue = "transfer_responses"

// Notifier pushes a message to the user outside the request cycle,
// typically over WhatsApp.
type Notifier interface {
	Send(to, message string) error
}

// ResultConsumer is the broker side the reconciler subscribes to.
type ResultConsumer interface {
	Consume(ctx context.Context, queue string, handler func(body []byte) error) error
}

// Reconciler closes the loop on dispatched transfers: it matches an
// asynchronous result to the conversation that is waiting on it, records
// the outcome and resets the conversation for the next transfer.
type Reconciler struct {
	store    storage.Store
	locks    *ConversationLocks
	notifier Notifier
}

// NewReconciler creates a reconciler. locks must be the same instance the
// dialogue manager uses so result handling and user messages serialize on
// the same conversation. notifier may be nil.
func NewReconciler(store storage.Store, locks *ConversationLocks, notifier Notifier) *Reconciler {
	return &Reconciler{store: store, locks: locks, notifier: notifier}
}

// OnResult applies one transfer result. Results whose correlation id does
// not match any waiting conversation are ignored, which makes redelivery
// and duplicate results safe.
func (r *Reconciler) OnResult(ctx context.Context, result *models.TransferResult) error {
	conv, err := r.store.GetConversationByCorrelationID(result.TransactionID)
	if err == storage.ErrNotFound {
		log.Printf("Ignoring result for unknown transaction %s", result.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up transaction %s: %w", result.TransactionID, err)
	}

	r.locks.Lock(conv.ID)
	defer r.locks.Unlock(conv.ID)

	// re-check under the lock: a concurrent duplicate may have won
	conv, err = r.store.GetConversation(conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load conversation %d: %w", conv.ID, err)
	}
	if conv.PendingCorrelationID != result.TransactionID {
		log.Printf("Ignoring stale result for transaction %s", result.TransactionID)
		return nil
	}

	reply := resultReply(result)

	conv.PendingCorrelationID = ""
	conv.ClearSlots()
	conv.Phase = models.PhaseResolved
	conv.Status = models.StatusCompleted
	if err := r.store.UpdateConversation(conv); err != nil {
		return fmt.Errorf("failed to save conversation %d: %w", conv.ID, err)
	}
	if _, err := r.store.AppendTurn(&models.Turn{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        reply,
		Phase:          conv.Phase,
	}); err != nil {
		return fmt.Errorf("failed to record result turn: %w", err)
	}

	r.notify(conv.UserID, reply)
	return nil
}

// notify pushes the outcome to the user's phone on a best-effort basis.
func (r *Reconciler) notify(userID uint, message string) {
	if r.notifier == nil {
		return
	}
	user, err := r.store.GetUser(userID)
	if err != nil || user.Phone == "" {
		return
	}
	if err := r.notifier.Send(user.Phone, message); err != nil {
		log.Printf("⚠️ Failed to push result to user %d: %v", userID, err)
	}
}

func resultReply(result *models.TransferResult) string {
	var reply string
	switch {
	case result.Message != "":
		reply = result.Message
	case result.Status == models.TransferStatusSuccess:
		reply = "Transferencia completada."
	case result.ErrorMessage != "":
		reply = "Transferencia fallida: " + result.ErrorMessage
	default:
		reply = "Transferencia fallida."
	}

	if result.BalanceAfter != nil {
		currency := result.Currency
		if currency == "" {
			currency = models.DefaultCurrency
		}
		reply += fmt.Sprintf(" Tu saldo después de la transferencia es $%s %s.",
			formatAmount(*result.BalanceAfter), currency)
	}
	return reply
}

// ResultListener runs the reconciler against the broker's result queue in
// a background goroutine. A lost subscription is re-established with
// exponential backoff until Stop is called.
type ResultListener struct {
	consumer   ResultConsumer
	reconciler *Reconciler
	backoff    time.Duration
	maxBackoff time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewResultListener(consumer ResultConsumer, reconciler *Reconciler) *ResultListener {
	return &ResultListener{
		consumer:   consumer,
		reconciler: reconciler,
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Start launches the consume loop. Malformed payloads are logged and
// dropped so they cannot block the queue.
func (l *ResultListener) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	handler := func(body []byte) error {
		var result models.TransferResult
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to decode transfer result: %w", err)
		}
		return l.reconciler.OnResult(ctx, &result)
	}

	go func() {
		defer close(l.done)
		log.Printf("🔄 Listening for transfer results on queue %s", ResultQueue)

		backoff := l.backoff
		for {
			err := l.consumer.Consume(ctx, ResultQueue, handler)
			if ctx.Err() != nil {
				return
			}

			log.Printf("⚠️ Result subscription lost, retrying in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > l.maxBackoff {
				backoff = l.maxBackoff
			}
		}
	}()
}

func (l *ResultListener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

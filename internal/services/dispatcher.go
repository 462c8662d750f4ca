package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

// TransferQueue is the work queue the banking worker consumes from.
const TransferQueue = "transfers"

var ErrNoPublisher = errors.New("transfer queue is not connected")

// Publisher abstracts the message broker for outgoing transfer requests.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// TransferDispatcher serializes a confirmed transfer and hands it to the
// broker under a fresh correlation id.
type TransferDispatcher struct {
	publisher Publisher
	timeout   time.Duration
}

func NewTransferDispatcher(publisher Publisher) *TransferDispatcher {
	return &TransferDispatcher{
		publisher: publisher,
		timeout:   10 * time.Second,
	}
}

// NewCorrelationID builds a transaction id like TXN-3FA85F64. Each dispatch
// attempt gets its own id; ids from failed attempts are never reused.
func NewCorrelationID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TXN-" + strings.ToUpper(hex[:8])
}

func (t *TransferDispatcher) Dispatch(ctx context.Context, conv *models.Conversation) (string, error) {
	if t.publisher == nil {
		return "", ErrNoPublisher
	}

	correlationID := NewCorrelationID()
	request := models.TransferRequest{
		TransactionID:  correlationID,
		ConversationID: fmt.Sprintf("%d", conv.ID),
		UserID:         conv.UserID,
		RecipientPhone: conv.RecipientPhone,
		Amount:         conv.Amount,
		Currency:       conv.Currency,
	}
	if request.Currency == "" {
		request.Currency = models.DefaultCurrency
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.publisher.Publish(ctx, TransferQueue, body); err != nil {
		return "", fmt.Errorf("failed to publish transfer request: %w", err)
	}
	return correlationID, nil
}

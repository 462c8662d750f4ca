package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
)

type fakePublisher struct {
	queue string
	body  []byte
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, queue string, body []byte) error {
	f.queue = queue
	f.body = body
	return f.err
}

func TestNewCorrelationID(t *testing.T) {
	pattern := regexp.MustCompile(`^TXN-[0-9A-F]{8}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewCorrelationID()
		require.Regexp(t, pattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate correlation id %s", id)
		seen[id] = struct{}{}
	}
}

func TestTransferDispatcherPublishesRequest(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := NewTransferDispatcher(publisher)

	conv := &models.Conversation{
		UserID:         7,
		RecipientPhone: "3001234567",
		Amount:         1000,
		Currency:       "COP",
	}
	conv.ID = 42

	correlationID, err := dispatcher.Dispatch(context.Background(), conv)
	require.NoError(t, err)
	require.Equal(t, TransferQueue, publisher.queue)

	var request models.TransferRequest
	require.NoError(t, json.Unmarshal(publisher.body, &request))
	require.Equal(t, correlationID, request.TransactionID)
	require.Equal(t, "42", request.ConversationID)
	require.Equal(t, uint(7), request.UserID)
	require.Equal(t, "3001234567", request.RecipientPhone)
	require.Equal(t, 1000.0, request.Amount)
	require.Equal(t, "COP", request.Currency)
}

func TestTransferDispatcherPublishError(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	dispatcher := NewTransferDispatcher(publisher)

	_, err := dispatcher.Dispatch(context.Background(), &models.Conversation{})
	require.Error(t, err)
}

func TestTransferDispatcherNoPublisher(t *testing.T) {
	dispatcher := NewTransferDispatcher(nil)

	_, err := dispatcher.Dispatch(context.Background(), &models.Conversation{})
	require.ErrorIs(t, err, ErrNoPublisher)
}

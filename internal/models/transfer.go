package models

// DefaultCurrency is used when the user never specifies one
const DefaultCurrency = "COP"

// TransferRequest is the message published to the transaction service.
// TransactionID doubles as the idempotency key on the consumer side.
type TransferRequest struct {
	TransactionID  string  `json:"transaction_id"`
	ConversationID string  `json:"conversation_id"`
	UserID         uint    `json:"user_id"`
	RecipientPhone string  `json:"recipient_phone"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

// Transfer result statuses produced by the transaction service
const (
	TransferStatusSuccess = "success"
	TransferStatusFailed  = "failed"
)

// TransferResult is the asynchronous outcome consumed from the response queue
type TransferResult struct {
	TransactionID  string   `json:"transaction_id"`
	ConversationID string   `json:"conversation_id"`
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	BalanceAfter   *float64 `json:"balance_after,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
}

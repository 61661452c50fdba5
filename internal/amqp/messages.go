package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried by TransactionEventMessage.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"
)

// Sources for created transactions.
const (
	SourceManual    = "manual"
	SourceRecurring = "recurring"
)

// TransactionEventMessage is a lightweight ledger event. It carries only the
// transaction id; consumers fetch the full record from the store.
type TransactionEventMessage struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transactionId"`
	Source        string    `json:"source,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(event, transactionID, source string) *TransactionEventMessage {
	return &TransactionEventMessage{
		Event:         event,
		TransactionID: transactionID,
		Source:        source,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes.
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

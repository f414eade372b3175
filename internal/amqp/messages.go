package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// EventTransactionCreated is set as the AMQP message type.
const EventTransactionCreated = "transaction.created"

// TransactionCreatedMessage describes a committed transaction.
// Amount is the decimal string so consumers never round through floats.
type TransactionCreatedMessage struct {
	ID             int64     `json:"id"`
	Date           string    `json:"date"`
	UserTelegramID int64     `json:"user_telegram_id"`
	CategoryID     int64     `json:"category_id"`
	SubcategoryID  int64     `json:"subcategory_id"`
	Amount         string    `json:"amount"`
	Comment        string    `json:"comment,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(tx core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		ID:             tx.ID,
		Date:           core.FormatTimestamp(tx.Date),
		UserTelegramID: tx.UserTelegramID,
		CategoryID:     tx.CategoryID,
		SubcategoryID:  tx.SubcategoryID,
		Amount:         tx.Amount.StringFixed(2),
		Comment:        tx.Comment,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expense-tracker/internal/core"
)

// TransactionEvent announces that a transaction row changed.
// It carries only the id; consumers read the current row from the store.
type TransactionEvent struct {
	ID        int64     `json:"id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(event string, id int64) *TransactionEvent {
	return &TransactionEvent{
		ID:        id,
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid transaction id %d", msg.ID)
	}
	switch msg.Event {
	case core.EventTransactionCreated, core.EventTransactionUpdated:
	default:
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
	return &msg, nil
}

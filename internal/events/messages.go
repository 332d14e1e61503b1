package events

import (
	"encoding/json"
	"time"
)

// Actions carried by transaction events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TransactionEvent is a lightweight notification published after a successful
// transaction mutation. Consumers that need the full record fetch it from the
// API; the event carries only what alerting needs.
type TransactionEvent struct {
	Action      string    `json:"action"`
	ID          string    `json:"id"`
	CategoryID  string    `json:"categoryId,omitempty"`
	AmountCents int64     `json:"amount,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewTransactionEvent creates an event stamped with the current time.
func NewTransactionEvent(action, id, categoryID string, amountCents int64) TransactionEvent {
	return TransactionEvent{
		Action:      action,
		ID:          id,
		CategoryID:  categoryID,
		AmountCents: amountCents,
		OccurredAt:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON parses an event from JSON bytes.
func TransactionEventFromJSON(data []byte) (TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TransactionEvent{}, err
	}
	return ev, nil
}

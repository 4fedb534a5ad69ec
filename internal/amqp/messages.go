package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventImported EventKind = "imported"
	EventCleared  EventKind = "cleared"
)

// TransactionEvent announces a change to the transaction store. It carries
// only identifiers; consumers read current state from the database.
type TransactionEvent struct {
	Kind      EventKind `json:"kind"`
	ID        int64     `json:"id,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent creates an event for a single transaction.
func NewTransactionEvent(kind EventKind, id int64) *TransactionEvent {
	return &TransactionEvent{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// NewBatchEvent creates an event that affects many rows, such as an import.
func NewBatchEvent(kind EventKind, batchID string) *TransactionEvent {
	return &TransactionEvent{
		Kind:      kind,
		BatchID:   batchID,
		Timestamp: time.Now(),
	}
}

func (e *TransactionEvent) Validate() error {
	switch e.Kind {
	case EventCreated, EventUpdated, EventDeleted:
		if e.ID <= 0 {
			return fmt.Errorf("%s event requires an id", e.Kind)
		}
	case EventImported, EventCleared:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and validates an event.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

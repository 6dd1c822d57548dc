// Package events carries transaction mutation notifications from the web
// front end to the ledger worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"expenex/internal/core"
)

type Type string

const (
	TypeCreated Type = "transaction.created"
	TypeUpdated Type = "transaction.updated"
	TypeDeleted Type = "transaction.deleted"
)

func (t Type) Valid() bool {
	return t == TypeCreated || t == TypeUpdated || t == TypeDeleted
}

// Event describes one successful mutation. Deletes carry only identity fields.
type Event struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	Kind          core.Kind       `json:"kind"`
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	Label         string          `json:"label,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func NewEvent(t Type, tx core.Transaction) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		Kind:          tx.Kind,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Label:         tx.Label,
		Amount:        tx.Amount,
		Category:      tx.Category,
		OccurredAt:    time.Now().UTC(),
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if !e.Type.Valid() {
		return Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	if !e.Kind.Valid() {
		return Event{}, fmt.Errorf("unknown transaction kind %q", e.Kind)
	}
	return e, nil
}

// Publisher sends mutation events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event; used when AMQP is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MemoryPublisher records events in order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (m *MemoryPublisher) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

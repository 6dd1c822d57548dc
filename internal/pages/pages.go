// Package pages holds the view controllers behind each screen. Controllers
// are safe for concurrent use; every fetch is tagged with a sequence number
// and a response older than the latest issued fetch is discarded.
package pages

import (
	"context"

	"expenex/internal/core"
	"expenex/internal/events"
	"expenex/internal/log"
	"expenex/internal/session"
)

// Gateway is the subset of the API client the controllers need.
type Gateway interface {
	ListTransactions(ctx context.Context, s session.Session, kind core.Kind) (core.TransactionList, error)
	GetTransaction(ctx context.Context, s session.Session, kind core.Kind, id string) (core.Transaction, error)
	CreateTransaction(ctx context.Context, s session.Session, kind core.Kind, d core.Draft) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, s session.Session, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, s session.Session, kind core.Kind, id string) error
	Dashboard(ctx context.Context, s session.Session, r core.DateRange) (core.DashboardSnapshot, error)
}

// Status is the load state of a page.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Deps are shared by every controller.
type Deps struct {
	Gateway   Gateway
	Publisher events.Publisher
	Logger    *log.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	d.Logger = d.Logger.WithComponent(log.ComponentPages)
	return d
}

// publish is best effort; a broker outage never fails a mutation.
func (d Deps) publish(ctx context.Context, t events.Type, tx core.Transaction) {
	if err := d.Publisher.Publish(ctx, events.NewEvent(t, tx)); err != nil {
		d.Logger.WarnContext(ctx, "Failed to publish transaction event",
			"type", string(t),
			log.FieldKind, string(tx.Kind),
			log.FieldTransactionID, tx.ID,
			log.FieldError, err.Error())
	}
}

const missingFieldsMessage = "Please fill in all required fields"

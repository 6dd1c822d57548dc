package pages

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"expenex/internal/api"
	"expenex/internal/core"
	"expenex/internal/events"
	"expenex/internal/log"
	"expenex/internal/session"
)

// ListState is a snapshot of a list page.
type ListState struct {
	Kind           core.Kind
	Status         Status
	Items          []core.Transaction
	CategoryTotals core.CategoryTotals
	Total          decimal.Decimal
	// Error is set in the failed state.
	Error string
	// Notice reports a failed mutation while the list stays ready.
	Notice string
	Seq    uint64
}

func (s ListState) Count() int         { return len(s.Items) }
func (s ListState) CategoryCount() int { return len(s.CategoryTotals) }

// Breakdown returns the category rows with their share of the grand total.
func (s ListState) Breakdown() []core.CategoryAmount {
	return s.CategoryTotals.Rows(s.Total)
}

// ListPage shows every transaction of one kind.
type ListPage struct {
	kind core.Kind
	deps Deps

	mu    sync.Mutex
	seq   uint64
	state ListState
}

func NewListPage(kind core.Kind, deps Deps) *ListPage {
	return &ListPage{
		kind: kind,
		deps: deps.withDefaults(),
		state: ListState{
			Kind:           kind,
			Status:         StatusLoading,
			CategoryTotals: core.CategoryTotals{},
		},
	}
}

func (p *ListPage) State() ListState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *ListPage) snapshot() ListState {
	st := p.state
	st.Items = append([]core.Transaction(nil), p.state.Items...)
	st.CategoryTotals = make(core.CategoryTotals, len(p.state.CategoryTotals))
	for k, v := range p.state.CategoryTotals {
		st.CategoryTotals[k] = v
	}
	return st
}

// Load fetches the list. The returned error is the fetch failure, nil when the
// fetch succeeded or its response was discarded as stale.
func (p *ListPage) Load(ctx context.Context, s session.Session) (ListState, error) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.state.Status = StatusLoading
	p.state.Seq = seq
	p.mu.Unlock()

	list, err := p.deps.Gateway.ListTransactions(ctx, s, p.kind)

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq {
		p.deps.Logger.DebugContext(ctx, "Discarding stale list response",
			log.FieldKind, string(p.kind),
			log.FieldSequence, seq)
		return p.snapshot(), nil
	}

	if err != nil {
		p.deps.Logger.WarnContext(ctx, "Failed to fetch transactions",
			log.FieldKind, string(p.kind),
			log.FieldErrorType, string(api.Classify(err)),
			log.FieldError, err.Error())
		p.state.Status = StatusFailed
		p.state.Error = "Failed to fetch " + string(p.kind) + " data"
		return p.snapshot(), err
	}

	p.state.Status = StatusReady
	p.state.Error = ""
	p.state.Items = list.Items
	p.state.CategoryTotals = list.CategoryTotals
	if p.state.CategoryTotals == nil {
		p.state.CategoryTotals = core.CategoryTotals{}
	}
	p.state.Total = list.Total
	return p.snapshot(), nil
}

// Retry is Load from the failed state.
func (p *ListPage) Retry(ctx context.Context, s session.Session) (ListState, error) {
	return p.Load(ctx, s)
}

// Delete removes one transaction. A successful delete is followed by exactly
// one reload; a failed delete keeps the items and sets Notice.
func (p *ListPage) Delete(ctx context.Context, s session.Session, id string) (ListState, error) {
	if err := p.deps.Gateway.DeleteTransaction(ctx, s, p.kind, id); err != nil {
		p.deps.Logger.WarnContext(ctx, "Failed to delete transaction",
			log.FieldKind, string(p.kind),
			log.FieldTransactionID, id,
			log.FieldErrorType, string(api.Classify(err)),
			log.FieldError, err.Error())

		p.mu.Lock()
		p.state.Notice = api.Message(err, "Failed to delete "+string(p.kind))
		st := p.snapshot()
		p.mu.Unlock()
		return st, err
	}

	p.deps.Logger.InfoContext(ctx, "Transaction deleted",
		log.FieldKind, string(p.kind),
		log.FieldTransactionID, id)
	p.deps.publish(ctx, events.TypeDeleted, core.Transaction{ID: id, Kind: p.kind, UserID: s.UserID})

	p.mu.Lock()
	p.state.Notice = ""
	p.mu.Unlock()
	return p.Load(ctx, s)
}

package pages

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"expenex/internal/api"
	"expenex/internal/core"
	"expenex/internal/events"
	"expenex/internal/log"
	"expenex/internal/session"
)

// FormInput is the raw form submission.
type FormInput struct {
	Label    string
	Amount   string
	Category string
}

// FormState is what a create or edit form renders.
type FormState struct {
	Kind       core.Kind
	ID         string
	Label      string
	Amount     string
	Category   string
	Categories []core.Category
	Error      string
}

func newFormState(kind core.Kind) FormState {
	return FormState{Kind: kind, Categories: core.Categories(kind)}
}

// set applies raw input with the amount coerced the way a numeric field does.
func (f FormState) set(in FormInput) FormState {
	f.Label = in.Label
	f.Category = in.Category
	if d, ok := core.CoerceAmount(in.Amount); ok {
		f.Amount = d.String()
	} else {
		f.Amount = ""
	}
	return f
}

func (f FormState) draft() core.Draft {
	amount, _ := decimal.NewFromString(f.Amount)
	return core.Draft{
		Label:    strings.TrimSpace(f.Label),
		Amount:   amount,
		Category: strings.TrimSpace(f.Category),
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingFields),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory):
		return missingFieldsMessage
	}
	return err.Error()
}

// CreateForm creates transactions of one kind.
type CreateForm struct {
	kind core.Kind
	deps Deps
}

func NewCreateForm(kind core.Kind, deps Deps) *CreateForm {
	return &CreateForm{kind: kind, deps: deps.withDefaults()}
}

// Blank is the initial form.
func (f *CreateForm) Blank() FormState {
	return newFormState(f.kind)
}

// Set returns the form after a field edit.
func (f *CreateForm) Set(in FormInput) FormState {
	return newFormState(f.kind).set(in)
}

// Submit validates and, when valid, issues exactly one create request. On
// failure the entered values are returned for resubmission.
func (f *CreateForm) Submit(ctx context.Context, s session.Session, in FormInput) (FormState, core.Transaction, error) {
	st := f.Set(in)
	d := st.draft()
	if err := d.Validate(f.kind); err != nil {
		st.Error = validationMessage(err)
		return st, core.Transaction{}, err
	}

	tx, err := f.deps.Gateway.CreateTransaction(ctx, s, f.kind, d)
	if err != nil {
		f.deps.Logger.WarnContext(ctx, "Failed to create transaction",
			log.FieldKind, string(f.kind),
			log.FieldErrorType, string(api.Classify(err)),
			log.FieldError, err.Error())
		st.Error = api.Message(err, "Failed to create "+string(f.kind))
		return st, core.Transaction{}, err
	}

	f.deps.Logger.InfoContext(ctx, "Transaction created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(string(f.kind), tx.ID, d.Category, d.Amount.String()).
			ToSlice()...)
	f.deps.publish(ctx, events.TypeCreated, tx)
	return st, tx, nil
}

// EditForm loads one transaction and replaces it with a full-record update.
// Only the most recently loaded record is held.
type EditForm struct {
	kind core.Kind
	deps Deps

	mu      sync.Mutex
	held    core.Transaction
	holding bool
}

func NewEditForm(kind core.Kind, deps Deps) *EditForm {
	return &EditForm{
		kind: kind,
		deps: deps.withDefaults(),
	}
}

// heldRecord returns the loaded record when it is id.
func (f *EditForm) heldRecord(id string) (core.Transaction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.holding || f.held.ID != id {
		return core.Transaction{}, false
	}
	return f.held, true
}

// Load fetches the record and pre-populates the form.
func (f *EditForm) Load(ctx context.Context, s session.Session, id string) (FormState, error) {
	st := newFormState(f.kind)
	st.ID = id

	tx, err := f.deps.Gateway.GetTransaction(ctx, s, f.kind, id)
	if err != nil {
		f.deps.Logger.WarnContext(ctx, "Failed to fetch transaction",
			log.FieldKind, string(f.kind),
			log.FieldTransactionID, id,
			log.FieldError, err.Error())
		st.Error = "Failed to fetch " + string(f.kind) + " data."
		return st, err
	}

	f.mu.Lock()
	f.held, f.holding = tx, true
	f.mu.Unlock()

	st.Label = tx.Label
	st.Amount = tx.Amount.String()
	st.Category = tx.Category
	return st, nil
}

// Submit sends the loaded record with the edited fields applied. The record
// is fetched again when it is not held from an earlier Load.
func (f *EditForm) Submit(ctx context.Context, s session.Session, id string, in FormInput) (FormState, core.Transaction, error) {
	st := newFormState(f.kind).set(in)
	st.ID = id
	d := st.draft()
	if err := d.Validate(f.kind); err != nil {
		st.Error = validationMessage(err)
		return st, core.Transaction{}, err
	}

	original, ok := f.heldRecord(id)
	if !ok {
		tx, err := f.deps.Gateway.GetTransaction(ctx, s, f.kind, id)
		if err != nil {
			st.Error = "Failed to fetch " + string(f.kind) + " data."
			return st, core.Transaction{}, err
		}
		original = tx
	}
	if original.UserID == "" {
		original.UserID = s.UserID
	}

	updated, err := f.deps.Gateway.UpdateTransaction(ctx, s, original.Apply(d))
	if err != nil {
		f.deps.Logger.WarnContext(ctx, "Failed to update transaction",
			log.NewFields().
				WithOperation(log.OpUpdate).
				WithTransaction(string(f.kind), id, "", "").
				WithError(err).
				ToSlice()...)
		st.Error = api.Message(err, "Failed to update "+string(f.kind)+".")
		return st, core.Transaction{}, err
	}

	f.mu.Lock()
	if f.holding && f.held.ID == id {
		f.held, f.holding = core.Transaction{}, false
	}
	f.mu.Unlock()

	f.deps.Logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().
			WithOperation(log.OpUpdate).
			WithTransaction(string(f.kind), id, updated.Category, updated.Amount.String()).
			ToSlice()...)
	f.deps.publish(ctx, events.TypeUpdated, updated)
	return st, updated, nil
}

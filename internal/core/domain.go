package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind selects between the two transaction collections.
	Kind string

	// Transaction is a single income or expense record as returned by the API.
	// Label holds "source" for incomes and "title" for expenses.
	Transaction struct {
		ID       string
		Kind     Kind
		Label    string
		Amount   decimal.Decimal
		Category string
		Date     time.Time
		UserID   string
	}

	// Draft carries the fields collected by a create or edit form.
	Draft struct {
		Label    string
		Amount   decimal.Decimal
		Category string
	}
)

var (
	ErrUnknownKind     = errors.New("unknown transaction kind")
	ErrMissingFields   = errors.New("please fill in all required fields")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyLabel      = errors.New("empty label")
)

// ParseKind accepts the singular kind name and the plural collection name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "incomes":
		return Income, nil
	case "expense", "expenses":
		return Expense, nil
	}
	return "", ErrUnknownKind
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Collection is the plural API path segment ("incomes", "expenses").
func (k Kind) Collection() string {
	return string(k) + "s"
}

// LabelField is the wire name of the free text field.
func (k Kind) LabelField() string {
	if k == Income {
		return "source"
	}
	return "title"
}

// Title is the capitalised display name.
func (k Kind) Title() string {
	switch k {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	}
	return string(k)
}

// Validate runs the required-field checks done before any create or update request.
// Every missing field maps to ErrMissingFields so the form can show a single message.
func (d Draft) Validate(kind Kind) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if strings.TrimSpace(d.Label) == "" || strings.TrimSpace(d.Category) == "" || d.Amount.IsZero() {
		return ErrMissingFields
	}
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !IsCategory(kind, d.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// Draft returns the editable part of the transaction.
func (t Transaction) Draft() Draft {
	return Draft{Label: t.Label, Amount: t.Amount, Category: t.Category}
}

// Apply replaces the editable fields, keeping identity, date and owner.
func (t Transaction) Apply(d Draft) Transaction {
	t.Label = strings.TrimSpace(d.Label)
	t.Amount = d.Amount
	t.Category = strings.TrimSpace(d.Category)
	return t
}

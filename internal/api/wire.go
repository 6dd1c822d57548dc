package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"expenex/internal/core"
)

// flexID accepts a string, a number or an object carrying _id/id.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
	case '{':
		var obj struct {
			MongoID flexID `json:"_id"`
			ID      flexID `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*f = firstID(obj.MongoID, obj.ID)
	default:
		*f = flexID(b)
	}
	return nil
}

func firstID(ids ...flexID) flexID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

type wireTransaction struct {
	MongoID  flexID          `json:"_id"`
	ID       flexID          `json:"id"`
	Source   string          `json:"source"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	UserID   flexID          `json:"userId"`
}

func (w wireTransaction) toCore(kind core.Kind) core.Transaction {
	label := w.Title
	if kind == core.Income {
		label = w.Source
	}
	return core.Transaction{
		ID:       string(firstID(w.MongoID, w.ID)),
		Kind:     kind,
		Label:    label,
		Amount:   w.Amount,
		Category: w.Category,
		Date:     parseDate(w.Date),
		UserID:   string(w.UserID),
	}
}

// outgoingTransaction is the request body of create and update. Only the
// label field matching the kind is set.
type outgoingTransaction struct {
	ID       string      `json:"_id,omitempty"`
	Source   string      `json:"source,omitempty"`
	Title    string      `json:"title,omitempty"`
	Amount   json.Number `json:"amount"`
	Category string      `json:"category"`
	Date     string      `json:"date,omitempty"`
	UserID   string      `json:"userId,omitempty"`
}

func newOutgoing(kind core.Kind, id string, d core.Draft, date time.Time, userID string) outgoingTransaction {
	out := outgoingTransaction{
		ID:       id,
		Amount:   json.Number(d.Amount.String()),
		Category: d.Category,
		UserID:   userID,
	}
	if kind == core.Income {
		out.Source = d.Label
	} else {
		out.Title = d.Label
	}
	if !date.IsZero() {
		out.Date = date.UTC().Format(time.RFC3339)
	}
	return out
}

type listResponse struct {
	Incomes        []wireTransaction          `json:"incomes"`
	Expenses       []wireTransaction          `json:"expenses"`
	CategoryTotals map[string]decimal.Decimal `json:"categoryTotals"`
	Total          decimal.Decimal            `json:"total"`
}

func (l listResponse) toCore(kind core.Kind) core.TransactionList {
	src := l.Expenses
	if kind == core.Income {
		src = l.Incomes
	}
	items := make([]core.Transaction, 0, len(src))
	for _, w := range src {
		items = append(items, w.toCore(kind))
	}
	totals := core.CategoryTotals{}
	for k, v := range l.CategoryTotals {
		totals[k] = v
	}
	return core.TransactionList{
		Kind:           kind,
		Items:          items,
		CategoryTotals: totals,
		Total:          l.Total,
	}
}

type dashboardResponse struct {
	Totals struct {
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Balance decimal.Decimal `json:"balance"`
	} `json:"totals"`
	Counts struct {
		Income  int `json:"income"`
		Expense int `json:"expense"`
	} `json:"counts"`
	Breakdowns struct {
		Income  map[string]decimal.Decimal `json:"income"`
		Expense map[string]decimal.Decimal `json:"expense"`
	} `json:"breakdowns"`
}

func (d dashboardResponse) toCore() core.DashboardSnapshot {
	snap := core.EmptySnapshot()
	snap.Totals = core.Totals{
		Income:  d.Totals.Income,
		Expense: d.Totals.Expense,
		Balance: d.Totals.Balance,
	}
	snap.Counts = core.Counts{Income: d.Counts.Income, Expense: d.Counts.Expense}
	for k, v := range d.Breakdowns.Income {
		snap.Breakdowns[core.Income][k] = v
	}
	for k, v := range d.Breakdowns.Expense {
		snap.Breakdowns[core.Expense][k] = v
	}
	return snap
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID flexID `json:"userId"`
	User   flexID `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, core.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

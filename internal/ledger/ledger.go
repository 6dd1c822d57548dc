// Package ledger mirrors transaction mutation events into an append-only
// spreadsheet, one row per event.
package ledger

import (
	"context"
	"strings"
	"time"

	"expenex/internal/events"
)

// Header is the first row of a fresh ledger sheet.
var Header = []string{"Occurred At", "Event", "Kind", "Transaction", "Label", "Amount", "Category", "User", "Event ID"}

// Writer appends ledger rows.
type Writer interface {
	// Append stores row and returns a reference to where it landed.
	Append(ctx context.Context, row Row) (rowRef string, err error)
}

// Row is one ledger line.
type Row struct {
	OccurredAt    time.Time
	EventID       string
	Type          events.Type
	Kind          string
	TransactionID string
	Label         string
	Amount        string
	Category      string
	UserID        string
}

// RowFromEvent flattens e. Delete events leave the amount empty since
// they only carry identity fields.
func RowFromEvent(e events.Event) Row {
	row := Row{
		OccurredAt:    e.OccurredAt.UTC(),
		EventID:       e.ID,
		Type:          e.Type,
		Kind:          string(e.Kind),
		TransactionID: e.TransactionID,
		Label:         e.Label,
		Category:      e.Category,
		UserID:        e.UserID,
	}
	if e.Type != events.TypeDeleted {
		row.Amount = e.Amount.StringFixed(2)
	}
	return row
}

// Values returns the cells in Header order. Free text cells are quoted so
// the sheet never evaluates them as formulas.
func (r Row) Values() []any {
	return []any{
		r.OccurredAt.Format(time.RFC3339),
		string(r.Type),
		r.Kind,
		textCell(r.TransactionID),
		textCell(r.Label),
		r.Amount,
		textCell(r.Category),
		textCell(r.UserID),
		textCell(r.EventID),
	}
}

// textCell prefixes a quote to values the sheet would parse as a formula.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryTotals maps a category label to the summed amount of its transactions.
type CategoryTotals map[string]decimal.Decimal

// CategoryAmount is one row of a category breakdown.
type CategoryAmount struct {
	Name    string
	Amount  decimal.Decimal
	Percent int // share of the breakdown total, 0-100
	Width   int // bar width, at least 2 when the amount is positive
}

// TransactionList is the server response to a list request.
type TransactionList struct {
	Kind           Kind
	Items          []Transaction
	CategoryTotals CategoryTotals
	Total          decimal.Decimal
}

// Totals holds the dashboard summary amounts.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Counts holds the number of transactions per kind.
type Counts struct {
	Income  int
	Expense int
}

// DashboardSnapshot is the server-computed aggregate for a date range.
type DashboardSnapshot struct {
	Totals     Totals
	Counts     Counts
	Breakdowns map[Kind]CategoryTotals
}

// Sum adds every amount of the mapping.
func (c CategoryTotals) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c {
		total = total.Add(v)
	}
	return total
}

// Rows returns the breakdown sorted by amount descending, then name.
// Percentages are relative to total; when total is not positive the sum
// of the mapping is used instead.
func (c CategoryTotals) Rows(total decimal.Decimal) []CategoryAmount {
	if !total.IsPositive() {
		total = c.Sum()
	}
	rows := make([]CategoryAmount, 0, len(c))
	for name, amount := range c {
		pct := Percent(amount, total)
		width := pct
		if amount.IsPositive() && width < 2 {
			width = 2
		}
		if width > 100 {
			width = 100
		}
		rows = append(rows, CategoryAmount{Name: name, Amount: amount, Percent: pct, Width: width})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Amount.Equal(rows[j].Amount) {
			return rows[i].Amount.GreaterThan(rows[j].Amount)
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// Breakdown returns the mapping of kind, never nil.
func (s DashboardSnapshot) Breakdown(kind Kind) CategoryTotals {
	if m, ok := s.Breakdowns[kind]; ok && m != nil {
		return m
	}
	return CategoryTotals{}
}

// BalanceSign is 1, -1 or 0 depending on the balance.
func (s DashboardSnapshot) BalanceSign() int {
	return s.Totals.Balance.Sign()
}

// EmptySnapshot is the initial dashboard state before the first response.
func EmptySnapshot() DashboardSnapshot {
	return DashboardSnapshot{
		Breakdowns: map[Kind]CategoryTotals{Income: {}, Expense: {}},
	}
}

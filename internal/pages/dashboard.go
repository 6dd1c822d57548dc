package pages

import (
	"context"
	"errors"
	"sync"
	"time"

	"expenex/internal/api"
	"expenex/internal/core"
	"expenex/internal/log"
	"expenex/internal/session"
)

// DashboardState is a snapshot of the dashboard.
type DashboardState struct {
	Range    core.DateRange
	Snapshot core.DashboardSnapshot
	Status   Status
	Error    string
	// CustomStart and CustomEnd are the custom inputs, kept even while only one is set.
	CustomStart string
	CustomEnd   string
	Seq         uint64
}

// BalanceClass is the CSS class for the balance card.
func (s DashboardState) BalanceClass() string {
	switch s.Snapshot.BalanceSign() {
	case 1:
		return "positive"
	case -1:
		return "negative"
	}
	return "zero"
}

func (s DashboardState) IncomeRows() []core.CategoryAmount {
	return s.Snapshot.Breakdown(core.Income).Rows(s.Snapshot.Totals.Income)
}

func (s DashboardState) ExpenseRows() []core.CategoryAmount {
	return s.Snapshot.Breakdown(core.Expense).Rows(s.Snapshot.Totals.Expense)
}

// Dashboard shows server aggregates for a selectable date range.
type Dashboard struct {
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	seq   uint64
	state DashboardState
}

func NewDashboard(deps Deps, now func() time.Time) *Dashboard {
	if now == nil {
		now = time.Now
	}
	return &Dashboard{
		deps: deps.withDefaults(),
		now:  now,
		state: DashboardState{
			Range:    core.DateRange{Preset: core.RangeAll},
			Snapshot: core.EmptySnapshot(),
			Status:   StatusLoading,
		},
	}
}

func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Refresh fetches the active range again.
func (d *Dashboard) Refresh(ctx context.Context, s session.Session) (DashboardState, error) {
	d.mu.Lock()
	r := d.state.Range
	d.mu.Unlock()
	if r.Preset == core.RangeCustom && !r.Bounded() {
		return d.State(), nil
	}
	return d.fetch(ctx, s, r)
}

// Select activates a preset and fetches it. Selecting custom fetches only
// when both custom bounds are already set.
func (d *Dashboard) Select(ctx context.Context, s session.Session, p core.RangePreset) (DashboardState, error) {
	if p == core.RangeCustom {
		d.mu.Lock()
		start, end := d.state.CustomStart, d.state.CustomEnd
		d.mu.Unlock()
		return d.applyCustom(ctx, s, start, end)
	}

	r, err := core.ResolvePreset(p, d.now())
	if err != nil {
		d.mu.Lock()
		d.state.Error = err.Error()
		st := d.state
		d.mu.Unlock()
		return st, err
	}
	return d.fetch(ctx, s, r)
}

// SetCustomStart edits the custom start date ("" clears it).
func (d *Dashboard) SetCustomStart(ctx context.Context, s session.Session, day string) (DashboardState, error) {
	d.mu.Lock()
	end := d.state.CustomEnd
	d.mu.Unlock()
	return d.applyCustom(ctx, s, day, end)
}

// SetCustomEnd edits the custom end date ("" clears it).
func (d *Dashboard) SetCustomEnd(ctx context.Context, s session.Session, day string) (DashboardState, error) {
	d.mu.Lock()
	start := d.state.CustomStart
	d.mu.Unlock()
	return d.applyCustom(ctx, s, start, day)
}

// SetCustom edits both custom dates at once.
func (d *Dashboard) SetCustom(ctx context.Context, s session.Session, start, end string) (DashboardState, error) {
	return d.applyCustom(ctx, s, start, end)
}

// applyCustom switches to the custom preset. An end before start is rejected:
// the previous range and inputs stay, the error is shown and nothing is fetched.
func (d *Dashboard) applyCustom(ctx context.Context, s session.Session, startRaw, endRaw string) (DashboardState, error) {
	start, errStart := core.ParseDay(startRaw)
	end, errEnd := core.ParseDay(endRaw)
	if err := errors.Join(errStart, errEnd); err != nil {
		d.mu.Lock()
		d.state.Error = "Invalid date"
		st := d.state
		d.mu.Unlock()
		return st, err
	}

	if start.IsZero() || end.IsZero() {
		d.mu.Lock()
		d.state.Range = core.DateRange{Preset: core.RangeCustom, Start: start, End: end}
		d.state.CustomStart, d.state.CustomEnd = startRaw, endRaw
		d.state.Error = ""
		st := d.state
		d.mu.Unlock()
		return st, nil
	}

	r, err := core.CustomRange(start, end)
	if err != nil {
		d.deps.Logger.InfoContext(ctx, "Rejected custom range",
			log.FieldRangeStart, startRaw,
			log.FieldRangeEnd, endRaw,
			log.FieldError, err.Error())
		d.mu.Lock()
		d.state.Error = "End date must be on or after start date"
		st := d.state
		d.mu.Unlock()
		return st, err
	}

	d.mu.Lock()
	d.state.CustomStart, d.state.CustomEnd = startRaw, endRaw
	d.mu.Unlock()
	return d.fetch(ctx, s, r)
}

func (d *Dashboard) fetch(ctx context.Context, s session.Session, r core.DateRange) (DashboardState, error) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.state.Range = r
	d.state.Status = StatusLoading
	d.state.Error = ""
	d.state.Seq = seq
	d.mu.Unlock()

	snap, err := d.deps.Gateway.Dashboard(ctx, s, r)

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		d.deps.Logger.DebugContext(ctx, "Discarding stale dashboard response",
			log.FieldSequence, seq)
		return d.state, nil
	}
	if err != nil {
		d.deps.Logger.WarnContext(ctx, "Failed to fetch dashboard",
			log.FieldRangeStart, r.StartParam(),
			log.FieldRangeEnd, r.EndParam(),
			log.FieldErrorType, string(api.Classify(err)),
			log.FieldError, err.Error())
		d.state.Status = StatusFailed
		d.state.Error = api.Message(err, "Failed to fetch dashboard data")
		return d.state, err
	}
	d.state.Status = StatusReady
	d.state.Snapshot = snap
	return d.state, nil
}

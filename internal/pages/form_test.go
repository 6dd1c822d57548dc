package pages

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"expenex/internal/api"
	"expenex/internal/core"
	"expenex/internal/events"
)

func TestCreateForm_SetCoercesAmount(t *testing.T) {
	f := NewCreateForm(core.Income, Deps{Gateway: &fakeGateway{}})

	tests := []struct {
		raw  string
		want string
	}{
		{"12.5", "12.5"},
		{"12.5abc", "12.5"},
		{"abc", ""},
		{"0", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := f.Set(FormInput{Amount: tt.raw}).Amount; got != tt.want {
			t.Errorf("Set(amount=%q).Amount = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCreateForm_InvalidSubmissionSendsNothing(t *testing.T) {
	tests := []struct {
		name string
		in   FormInput
	}{
		{"empty form", FormInput{}},
		{"missing label", FormInput{Amount: "10", Category: "Salary"}},
		{"zero amount", FormInput{Label: "ACME", Amount: "0", Category: "Salary"}},
		{"garbage amount", FormInput{Label: "ACME", Amount: "abc", Category: "Salary"}},
		{"missing category", FormInput{Label: "ACME", Amount: "10"}},
		{"category from other kind", FormInput{Label: "ACME", Amount: "10", Category: "Food"}},
		{"negative amount", FormInput{Label: "ACME", Amount: "-5", Category: "Salary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			f := NewCreateForm(core.Income, Deps{Gateway: gw})

			st, _, err := f.Submit(context.Background(), testSession, tt.in)
			if err == nil {
				t.Fatal("Submit() error = nil")
			}
			if st.Error != "Please fill in all required fields" {
				t.Errorf("Error = %q", st.Error)
			}
			if len(gw.createCalls) != 0 {
				t.Errorf("create requests = %d, want 0", len(gw.createCalls))
			}
		})
	}
}

func TestCreateForm_ValidSubmissionSendsExactlyOne(t *testing.T) {
	gw := &fakeGateway{}
	pub := &events.MemoryPublisher{}
	f := NewCreateForm(core.Expense, Deps{Gateway: gw, Publisher: pub})

	_, tx, err := f.Submit(context.Background(), testSession, FormInput{Label: " Lunch ", Amount: "12.5abc", Category: "Food"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(gw.createCalls) != 1 {
		t.Fatalf("create requests = %d, want 1", len(gw.createCalls))
	}
	d := gw.createCalls[0]
	if d.Label != "Lunch" || !d.Amount.Equal(decimal.RequireFromString("12.5")) || d.Category != "Food" {
		t.Errorf("draft = %+v", d)
	}
	if tx.UserID != "user-1" {
		t.Errorf("UserID = %q, want session user", tx.UserID)
	}
	if evs := pub.Events(); len(evs) != 1 || evs[0].Type != events.TypeCreated {
		t.Errorf("events = %+v", evs)
	}
}

func TestCreateForm_FailureKeepsValues(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"server message", &api.Error{Kind: api.KindServer, Status: 400, Message: "Amount too large"}, "Amount too large"},
		{"no message", &api.Error{Kind: api.KindTransport}, "Failed to create income"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{createErr: tt.err}
			f := NewCreateForm(core.Income, Deps{Gateway: gw})

			in := FormInput{Label: "ACME", Amount: "100", Category: "Salary"}
			st, _, err := f.Submit(context.Background(), testSession, in)
			if !errors.Is(err, tt.err) {
				t.Errorf("Submit() error = %v", err)
			}
			if st.Error != tt.wantMsg {
				t.Errorf("Error = %q, want %q", st.Error, tt.wantMsg)
			}
			if st.Label != "ACME" || st.Amount != "100" || st.Category != "Salary" {
				t.Errorf("values not kept: %+v", st)
			}
		})
	}
}

func TestEditForm_LoadAndSubmit(t *testing.T) {
	gw := &fakeGateway{getTx: core.Transaction{
		Label:    "ACME",
		Amount:   decimal.NewFromInt(100),
		Category: "Salary",
		UserID:   "user-1",
	}}
	pub := &events.MemoryPublisher{}
	f := NewEditForm(core.Income, Deps{Gateway: gw, Publisher: pub})

	st, err := f.Load(context.Background(), testSession, "tx-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.Label != "ACME" || st.Amount != "100" || st.Category != "Salary" {
		t.Errorf("pre-populated form = %+v", st)
	}

	_, updated, err := f.Submit(context.Background(), testSession, "tx-1", FormInput{Label: "ACME Corp", Amount: "150", Category: "Bonus"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gw.getCalls != 1 {
		t.Errorf("get requests = %d, want 1", gw.getCalls)
	}
	if len(gw.updateCalls) != 1 {
		t.Fatalf("update requests = %d, want 1", len(gw.updateCalls))
	}
	sent := gw.updateCalls[0]
	if sent.ID != "tx-1" || sent.Label != "ACME Corp" || sent.Category != "Bonus" || sent.UserID != "user-1" {
		t.Errorf("sent record = %+v", sent)
	}
	if updated.ID != "tx-1" {
		t.Errorf("updated = %+v", updated)
	}
	if evs := pub.Events(); len(evs) != 1 || evs[0].Type != events.TypeUpdated {
		t.Errorf("events = %+v", evs)
	}
}

func TestEditForm_SubmitWithoutLoadFetchesRecord(t *testing.T) {
	gw := &fakeGateway{getTx: core.Transaction{Label: "Rent", Amount: decimal.NewFromInt(900), Category: "Bills"}}
	f := NewEditForm(core.Expense, Deps{Gateway: gw})

	if _, _, err := f.Submit(context.Background(), testSession, "tx-9", FormInput{Label: "Rent", Amount: "950", Category: "Bills"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gw.getCalls != 1 || len(gw.updateCalls) != 1 {
		t.Errorf("get, update = %d, %d; want 1, 1", gw.getCalls, len(gw.updateCalls))
	}
	if gw.updateCalls[0].UserID != "user-1" {
		t.Errorf("UserID = %q, want session user", gw.updateCalls[0].UserID)
	}
}

func TestEditForm_HoldsOnlyLatestLoad(t *testing.T) {
	gw := &fakeGateway{getTx: core.Transaction{Label: "Rent", Amount: decimal.NewFromInt(900), Category: "Bills", UserID: "user-1"}}
	f := NewEditForm(core.Expense, Deps{Gateway: gw})
	ctx := context.Background()

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		if _, err := f.Load(ctx, testSession, id); err != nil {
			t.Fatalf("Load(%s) error = %v", id, err)
		}
	}
	if _, ok := f.heldRecord("tx-1"); ok {
		t.Error("earlier load still held")
	}
	if tx, ok := f.heldRecord("tx-3"); !ok || tx.ID != "tx-3" {
		t.Errorf("heldRecord(tx-3) = %+v, %v", tx, ok)
	}

	// tx-1 is no longer held, so submitting it fetches the record again.
	if _, _, err := f.Submit(ctx, testSession, "tx-1", FormInput{Label: "Rent", Amount: "950", Category: "Bills"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gw.getCalls != 4 {
		t.Errorf("get requests = %d, want 4", gw.getCalls)
	}
	if _, ok := f.heldRecord("tx-3"); !ok {
		t.Error("submitting another id dropped the held record")
	}

	if _, _, err := f.Submit(ctx, testSession, "tx-3", FormInput{Label: "Rent", Amount: "975", Category: "Bills"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gw.getCalls != 4 {
		t.Errorf("held record was fetched again: get requests = %d", gw.getCalls)
	}
	if _, ok := f.heldRecord("tx-3"); ok {
		t.Error("record still held after a successful update")
	}
}

func TestEditForm_Failures(t *testing.T) {
	gw := &fakeGateway{getErr: &api.Error{Kind: api.KindNotFound, Status: 404}}
	f := NewEditForm(core.Income, Deps{Gateway: gw})

	st, err := f.Load(context.Background(), testSession, "missing")
	if !errors.Is(err, api.ErrNotFound) {
		t.Errorf("Load() error = %v", err)
	}
	if st.Error != "Failed to fetch income data." {
		t.Errorf("Error = %q", st.Error)
	}

	gw = &fakeGateway{getTx: core.Transaction{Label: "x", Amount: decimal.NewFromInt(1), Category: "Other"}, updateErr: &api.Error{Kind: api.KindServer, Status: 500}}
	f = NewEditForm(core.Income, Deps{Gateway: gw})
	st, _, err = f.Submit(context.Background(), testSession, "tx-1", FormInput{Label: "y", Amount: "2", Category: "Other"})
	if err == nil || st.Error != "Failed to update income." {
		t.Errorf("Submit() = %q, %v", st.Error, err)
	}
	if st.Label != "y" || st.Amount != "2" {
		t.Errorf("values not kept: %+v", st)
	}
}

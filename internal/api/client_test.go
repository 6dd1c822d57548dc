package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expenex/internal/api/apitest"
	"expenex/internal/core"
	"expenex/internal/session"
)

func newTestClient(t *testing.T, srv *apitest.Server, onUnauthorized UnauthorizedFunc) *Client {
	t.Helper()
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Timeout: 5 * time.Second, OnUnauthorized: onUnauthorized})
}

func testSession() session.Session {
	return session.Session{
		ID:     session.NewID(),
		Token:  apitest.Token("user-1", time.Now().Add(time.Hour)),
		UserID: "user-1",
	}
}

func TestClient_ListTransactions(t *testing.T) {
	srv := apitest.New()
	c := newTestClient(t, srv, nil)
	srv.Seed("incomes", apitest.Record{Source: "ACME", Amount: decimal.RequireFromString("1000.50"), Category: "Salary"})
	srv.Seed("incomes", apitest.Record{Source: "Side gig", Amount: decimal.RequireFromString("200"), Category: "Freelance"})

	list, err := c.ListTransactions(context.Background(), testSession(), core.Income)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(list.Items))
	}
	if !list.Total.Equal(decimal.RequireFromString("1200.5")) {
		t.Errorf("Total = %s, want 1200.5", list.Total)
	}
	if got := list.CategoryTotals["Salary"]; !got.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("CategoryTotals[Salary] = %s, want 1000.5", got)
	}
	if list.Items[0].ID == "" || list.Items[0].Label == "" {
		t.Errorf("item not decoded: %+v", list.Items[0])
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"expenses":[],"categoryTotals":{},"total":0}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	s := session.Session{ID: session.NewID(), Token: "abc"}
	if _, err := c.ListTransactions(context.Background(), s, core.Expense); err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if got != "Bearer abc" {
		t.Errorf("Authorization = %q, want Bearer abc", got)
	}
}

func TestClient_DecodesIDFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":42,"title":"Lunch","amount":"12.30","category":"Food","date":"2024-05-01","userId":{"_id":"u9"}}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	tx, err := c.GetTransaction(context.Background(), testSession(), core.Expense, "42")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if tx.ID != "42" || tx.Label != "Lunch" || tx.UserID != "u9" {
		t.Errorf("GetTransaction() = %+v", tx)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("12.3")) {
		t.Errorf("Amount = %s, want 12.3", tx.Amount)
	}
	if tx.Date.Format(core.DateLayout) != "2024-05-01" {
		t.Errorf("Date = %v", tx.Date)
	}
}

func TestClient_CreateTransactionBody(t *testing.T) {
	srv := apitest.New()
	c := newTestClient(t, srv, nil)
	s := testSession()

	draft := core.Draft{Label: "Groceries", Amount: decimal.RequireFromString("12.5"), Category: "Food"}
	tx, err := c.CreateTransaction(context.Background(), s, core.Expense, draft)
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if tx.ID == "" {
		t.Error("created transaction has no id")
	}

	bodies := srv.Bodies("POST /expenses")
	if len(bodies) != 1 {
		t.Fatalf("got %d create requests, want 1", len(bodies))
	}
	body := bodies[0]
	if body["title"] != "Groceries" || body["category"] != "Food" || body["userId"] != "user-1" {
		t.Errorf("create body = %v", body)
	}
	if body["amount"] != 12.5 {
		t.Errorf("amount = %v (%T), want number 12.5", body["amount"], body["amount"])
	}
	if _, ok := body["source"]; ok {
		t.Error("expense body must not carry source")
	}
}

func TestClient_UpdateTransactionSendsFullRecord(t *testing.T) {
	srv := apitest.New()
	c := newTestClient(t, srv, nil)
	id := srv.Seed("incomes", apitest.Record{Source: "ACME", Amount: decimal.NewFromInt(10), Category: "Salary", UserID: "user-1"})

	tx, err := c.GetTransaction(context.Background(), testSession(), core.Income, id)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	tx = tx.Apply(core.Draft{Label: "ACME Corp", Amount: decimal.NewFromInt(20), Category: "Bonus"})

	if _, err := c.UpdateTransaction(context.Background(), testSession(), tx); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}
	body := srv.Bodies("PUT /incomes/" + id)[0]
	for _, key := range []string{"_id", "source", "amount", "category", "userId", "date"} {
		if _, ok := body[key]; !ok {
			t.Errorf("update body missing %q: %v", key, body)
		}
	}
	if recs := srv.Records("incomes"); recs[0].Source != "ACME Corp" || recs[0].Category != "Bonus" {
		t.Errorf("record not updated: %+v", recs[0])
	}
}

func TestClient_DashboardQuery(t *testing.T) {
	srv := apitest.New()
	c := newTestClient(t, srv, nil)
	srv.Seed("incomes", apitest.Record{Source: "A", Amount: decimal.NewFromInt(100), Category: "Salary", Date: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)})
	srv.Seed("expenses", apitest.Record{Title: "B", Amount: decimal.NewFromInt(30), Category: "Food", Date: time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)})
	srv.Seed("expenses", apitest.Record{Title: "C", Amount: decimal.NewFromInt(99), Category: "Bills", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})

	r, err := core.CustomRange(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CustomRange() error = %v", err)
	}
	snap, err := c.Dashboard(context.Background(), testSession(), r)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if q := srv.Queries(); len(q) != 1 || q[0] != "endDate=2024-05-31&startDate=2024-05-01" {
		t.Errorf("queries = %v", q)
	}
	if !snap.Totals.Balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("Balance = %s, want 70", snap.Totals.Balance)
	}
	if snap.Counts.Expense != 1 {
		t.Errorf("Counts.Expense = %d, want 1", snap.Counts.Expense)
	}
	if _, ok := snap.Breakdown(core.Expense)["Bills"]; ok {
		t.Error("out of range expense included in breakdown")
	}
}

func TestClient_DashboardUnboundedSendsNoDates(t *testing.T) {
	srv := apitest.New()
	c := newTestClient(t, srv, nil)

	if _, err := c.Dashboard(context.Background(), testSession(), core.DateRange{Preset: core.RangeAll}); err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if q := srv.Queries(); len(q) != 1 || q[0] != "" {
		t.Errorf("queries = %q, want one empty query", q)
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		message  string
		wantKind ErrorKind
		wantIs   error
	}{
		{"server error with message", http.StatusInternalServerError, "boom", KindServer, nil},
		{"bad request", http.StatusBadRequest, "Amount must be positive", KindServer, nil},
		{"not found", http.StatusNotFound, "", KindNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, "jwt expired", KindUnauthorized, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.New()
			c := newTestClient(t, srv, nil)
			srv.Fail("GET /expenses", apitest.Failure{Status: tt.status, Message: tt.message})

			_, err := c.ListTransactions(context.Background(), testSession(), core.Expense)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *api.Error", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.Status != tt.status {
				t.Errorf("Kind, Status = %s, %d; want %s, %d", apiErr.Kind, apiErr.Status, tt.wantKind, tt.status)
			}
			if apiErr.Message != tt.message {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.message)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v) = false", tt.wantIs)
			}
			if got := Message(err, "fallback"); tt.message == "" && got != "fallback" {
				t.Errorf("Message() = %q, want fallback", got)
			}
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url})
	_, err := c.ListTransactions(context.Background(), testSession(), core.Income)
	if Classify(err) != KindTransport {
		t.Errorf("Classify() = %s, want transport (err = %v)", Classify(err), err)
	}
}

func TestClient_UnauthorizedClearsSessionOnce(t *testing.T) {
	srv := apitest.New()
	store := &countingStore{MemoryStore: session.NewMemoryStore()}
	mgr := session.NewManager(store, session.Options{})

	var hookCalls atomic.Int32
	c := newTestClient(t, srv, func(ctx context.Context, s session.Session) {
		hookCalls.Add(1)
		mgr.Invalidate(ctx, s.ID)
	})

	s := session.Session{ID: session.NewID(), Token: "not-a-valid-token", UserID: "user-1"}
	store.Save(context.Background(), s)

	var wg sync.WaitGroup
	for _, kind := range []core.Kind{core.Income, core.Expense, core.Income, core.Expense} {
		wg.Add(1)
		go func(kind core.Kind) {
			defer wg.Done()
			_, err := c.ListTransactions(context.Background(), s, kind)
			if !IsUnauthorized(err) {
				t.Errorf("error = %v, want unauthorized", err)
			}
		}(kind)
	}
	wg.Wait()

	if n := hookCalls.Load(); n != 4 {
		t.Errorf("hook called %d times, want 4", n)
	}
	if n := store.deletes.Load(); n != 1 {
		t.Errorf("session deleted %d times, want 1", n)
	}
	if _, err := store.Get(context.Background(), s.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("session still present: %v", err)
	}
}

func TestClient_LoginAndRegister(t *testing.T) {
	srv := apitest.New()
	c := newTestClient(t, srv, nil)

	if err := c.Register(context.Background(), "Ada", "ada@example.com", "pw"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register(context.Background(), "Ada", "ada@example.com", "pw"); Message(err, "") != "User already exists" {
		t.Errorf("second Register() error = %v", err)
	}

	res, err := c.Login(context.Background(), "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == "" || res.UserID == "" {
		t.Errorf("Login() = %+v", res)
	}

	_, err = c.Login(context.Background(), "ada@example.com", "wrong")
	if Message(err, "") != "Invalid credentials" {
		t.Errorf("Login() with wrong password error = %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{core.ErrMissingFields, KindValidation},
		{core.ErrInvalidRange, KindValidation},
		{context.DeadlineExceeded, KindTransport},
		{&Error{Kind: KindNotFound}, KindNotFound},
		{errors.New("other"), KindServer},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type countingStore struct {
	*session.MemoryStore
	deletes atomic.Int32
}

func (c *countingStore) Delete(ctx context.Context, id string) error {
	c.deletes.Add(1)
	return c.MemoryStore.Delete(ctx, id)
}

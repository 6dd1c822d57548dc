package pages

import (
	"context"
	"sync"

	"expenex/internal/core"
	"expenex/internal/session"
)

// fakeGateway records calls and lets tests script responses.
type fakeGateway struct {
	mu sync.Mutex

	lists     []core.TransactionList
	listErrs  []error
	listGates []chan struct{}
	listCalls int

	getTx    core.Transaction
	getErr   error
	getCalls int

	createErr   error
	createCalls []core.Draft

	updateErr   error
	updateCalls []core.Transaction

	deleteErr   error
	deleteCalls []string

	dashboards []core.DashboardSnapshot
	dashErr    error
	dashGates  []chan struct{}
	dashRanges []core.DateRange
}

func (f *fakeGateway) ListTransactions(ctx context.Context, _ session.Session, kind core.Kind) (core.TransactionList, error) {
	f.mu.Lock()
	i := f.listCalls
	f.listCalls++
	var gate chan struct{}
	if i < len(f.listGates) {
		gate = f.listGates[i]
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if i < len(f.listErrs) {
		err = f.listErrs[i]
	}
	if err != nil {
		return core.TransactionList{}, err
	}
	if len(f.lists) == 0 {
		return core.TransactionList{Kind: kind}, nil
	}
	if i >= len(f.lists) {
		i = len(f.lists) - 1
	}
	return f.lists[i], nil
}

func (f *fakeGateway) GetTransaction(_ context.Context, _ session.Session, kind core.Kind, id string) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return core.Transaction{}, f.getErr
	}
	tx := f.getTx
	tx.ID, tx.Kind = id, kind
	return tx, nil
}

func (f *fakeGateway) CreateTransaction(_ context.Context, s session.Session, kind core.Kind, d core.Draft) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, d)
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	return core.Transaction{ID: "new-1", Kind: kind, UserID: s.UserID}.Apply(d), nil
}

func (f *fakeGateway) UpdateTransaction(_ context.Context, _ session.Session, tx core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, tx)
	if f.updateErr != nil {
		return core.Transaction{}, f.updateErr
	}
	return tx, nil
}

func (f *fakeGateway) DeleteTransaction(_ context.Context, _ session.Session, _ core.Kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeGateway) Dashboard(_ context.Context, _ session.Session, r core.DateRange) (core.DashboardSnapshot, error) {
	f.mu.Lock()
	i := len(f.dashRanges)
	f.dashRanges = append(f.dashRanges, r)
	var gate chan struct{}
	if i < len(f.dashGates) {
		gate = f.dashGates[i]
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dashErr != nil {
		return core.DashboardSnapshot{}, f.dashErr
	}
	if len(f.dashboards) == 0 {
		return core.EmptySnapshot(), nil
	}
	if i >= len(f.dashboards) {
		i = len(f.dashboards) - 1
	}
	return f.dashboards[i], nil
}

func (f *fakeGateway) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeGateway) ranges() []core.DateRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.DateRange(nil), f.dashRanges...)
}

var testSession = session.Session{ID: "s1", Token: "t", UserID: "user-1"}

package pages

import (
	"time"

	"expenex/internal/cache"
	"expenex/internal/core"
)

// Workspace groups the controllers of one browser session.
type Workspace struct {
	Dashboard *Dashboard
	lists     map[core.Kind]*ListPage
	creates   map[core.Kind]*CreateForm
	edits     map[core.Kind]*EditForm
}

func NewWorkspace(deps Deps, now func() time.Time) *Workspace {
	w := &Workspace{
		Dashboard: NewDashboard(deps, now),
		lists:     make(map[core.Kind]*ListPage),
		creates:   make(map[core.Kind]*CreateForm),
		edits:     make(map[core.Kind]*EditForm),
	}
	for _, k := range []core.Kind{core.Income, core.Expense} {
		w.lists[k] = NewListPage(k, deps)
		w.creates[k] = NewCreateForm(k, deps)
		w.edits[k] = NewEditForm(k, deps)
	}
	return w
}

func (w *Workspace) List(kind core.Kind) *ListPage     { return w.lists[kind] }
func (w *Workspace) Create(kind core.Kind) *CreateForm { return w.creates[kind] }
func (w *Workspace) Edit(kind core.Kind) *EditForm     { return w.edits[kind] }

// Registry keeps one Workspace per session id in an LRU cache, so requests
// from the same browser share sequence counters. A workspace expires after
// ttl without requests.
type Registry struct {
	deps  Deps
	now   func() time.Time
	cache *cache.LRUCache[*Workspace]
}

func NewRegistry(deps Deps, size int, ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		deps:  deps,
		now:   now,
		cache: cache.NewLRUCache[*Workspace](size, ttl).WithClock(now).WithSlidingExpiry(),
	}
}

// For returns the workspace of sessionID, creating it on first use.
func (r *Registry) For(sessionID string) *Workspace {
	return r.cache.GetOrSet(sessionID, func() *Workspace {
		return NewWorkspace(r.deps, r.now)
	})
}

// Forget drops the workspace after logout.
func (r *Registry) Forget(sessionID string) {
	r.cache.Delete(sessionID)
}

// Cleaner exposes the cache for periodic sweeping.
func (r *Registry) Cleaner() cache.Cleaner {
	return r.cache
}

func (r *Registry) Size() int {
	return r.cache.Size()
}

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque token", "opaque-token", false},
		{"jwt without exp", signedToken(t, time.Time{}), false},
		{"jwt expiring later", signedToken(t, testNow.Add(time.Hour)), false},
		{"jwt already expired", signedToken(t, testNow.Add(-time.Minute)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenExpired(tt.token, testNow); got != tt.want {
				t.Errorf("TokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestManager(store Store) *Manager {
	return NewManager(store, Options{
		CookieName: "sid",
		LoginPath:  "/",
		Now:        func() time.Time { return testNow },
	})
}

func protected() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "no session", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(s.UserID))
	})
}

func TestGuard_RedirectsWithoutSession(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()

	m.Guard(protected()).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}

func TestGuard_HTMXRedirect(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()

	m.Guard(protected()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("HX-Redirect"); got != "/" {
		t.Errorf("HX-Redirect = %q, want /", got)
	}
}

func TestGuard_PassesAuthenticatedSession(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)

	login := httptest.NewRecorder()
	s, err := m.Start(context.Background(), login, "token", "user-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	m.Guard(protected()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "user-1" {
		t.Errorf("body = %q, want user-1", w.Body.String())
	}
	if got, _ := store.Get(context.Background(), s.ID); got.Token != "token" {
		t.Errorf("stored token = %q, want token", got.Token)
	}
}

func TestGuard_ExpiredTokenCountsAsAbsent(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)
	s := Session{ID: NewID(), Token: signedToken(t, testNow.Add(-time.Hour)), UserID: "user-1"}
	store.Save(context.Background(), s)

	req := httptest.NewRequest(http.MethodGet, "/income", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: s.ID})
	w := httptest.NewRecorder()
	m.Guard(protected()).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if store.Len() != 0 {
		t.Errorf("expired session was not deleted")
	}
}

func TestLogoutThenNavigateRedirects(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)

	login := httptest.NewRecorder()
	if _, err := m.Start(context.Background(), login, "token", "user-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cookies := login.Result().Cookies()

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range cookies {
		logoutReq.AddCookie(c)
	}
	logout := httptest.NewRecorder()
	if err := m.End(logout, logoutReq); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("session still stored after logout")
	}

	req := httptest.NewRequest(http.MethodGet, "/expense", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	m.Guard(protected()).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

type countingStore struct {
	*MemoryStore
	deletes atomic.Int32
}

func (c *countingStore) Delete(ctx context.Context, id string) error {
	c.deletes.Add(1)
	time.Sleep(time.Millisecond)
	return c.MemoryStore.Delete(ctx, id)
}

func TestInvalidate_ClearsOnce(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	m := newTestManager(store)
	id := NewID()
	store.Save(context.Background(), Session{ID: id, Token: "t", UserID: "u"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Invalidate(context.Background(), id); err != nil {
				t.Errorf("Invalidate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if err := m.Invalidate(context.Background(), id); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if n := store.deletes.Load(); n != 1 {
		t.Errorf("store.Delete called %d times, want 1", n)
	}
}

func TestLoad_IgnoresMalformedCookie(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "not-a-uuid"})
	if _, ok := m.Load(req); ok {
		t.Error("Load() ok = true for malformed cookie")
	}
}

// Package apitest runs an in-memory finance API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

var signingKey = []byte("apitest-secret")

// Record is a stored income or expense.
type Record struct {
	ID       string          `json:"_id"`
	Source   string          `json:"source,omitempty"`
	Title    string          `json:"title,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
	UserID   string          `json:"userId"`
}

// Failure forces a status for every request whose "METHOD /path" key matches.
type Failure struct {
	Status  int
	Message string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  map[string]map[string]Record // collection -> id -> record
	users    map[string]user
	nextID   int
	calls    map[string]int
	bodies   map[string][]map[string]any
	queries  []string
	failures map[string]Failure
	delay    map[string]time.Duration
	now      func() time.Time
}

type user struct {
	ID       string
	Name     string
	Password string
}

func New() *Server {
	s := &Server{
		records:  map[string]map[string]Record{"incomes": {}, "expenses": {}},
		users:    map[string]user{},
		calls:    map[string]int{},
		bodies:   map[string][]map[string]any{},
		failures: map[string]Failure{},
		delay:    map[string]time.Duration{},
		now:      time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Post("/auth/login", s.login)
	r.Post("/auth/register", s.register)
	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/dashboard", s.dashboard)
		r.Get("/{coll}", s.list)
		r.Post("/{coll}", s.create)
		r.Get("/{coll}/{id}", s.get)
		r.Put("/{coll}/{id}", s.update)
		r.Delete("/{coll}/{id}", s.remove)
	})
	return r
}

// Token mints a signed token for userID that expires at exp.
func Token(userID string, exp time.Time) string {
	claims := jwt.MapClaims{"sub": userID}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	t, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return t
}

// AddUser registers credentials accepted by /auth/login.
func (s *Server) AddUser(id, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = user{ID: id, Password: password}
}

// Seed stores a record under collection ("incomes" or "expenses") and returns its id.
func (s *Server) Seed(collection string, rec Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		s.nextID++
		rec.ID = fmt.Sprintf("rec-%d", s.nextID)
	}
	if rec.Date.IsZero() {
		rec.Date = s.now()
	}
	s.records[collection][rec.ID] = rec
	return rec.ID
}

// Fail makes requests matching "METHOD /path" answer with f until cleared.
func (s *Server) Fail(key string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = f
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]Failure{}
}

// Delay holds requests matching key for d before answering.
func (s *Server) Delay(key string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[key] = d
}

// Calls returns how many requests matched "METHOD /path".
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// Bodies returns the decoded JSON bodies received for key.
func (s *Server) Bodies(key string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.bodies[key]...)
}

// Queries returns the raw query strings of dashboard requests in order.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Server) Records(collection string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records[collection]))
	for _, r := range s.records[collection] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		var body map[string]any
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}

		s.mu.Lock()
		s.calls[key]++
		if body != nil {
			s.bodies[key] = append(s.bodies[key], body)
		}
		if r.URL.Path == "/dashboard" {
			s.queries = append(s.queries, r.URL.RawQuery)
		}
		f, failing := s.failures[key]
		d := s.delay[key]
		s.mu.Unlock()

		if d > 0 {
			time.Sleep(d)
		}
		if failing {
			writeJSON(w, f.Status, map[string]string{"message": f.Message})
			return
		}
		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), body)))
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No token provided"})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return signingKey, nil })
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)

	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok || u.Password != password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  Token(u.ID, s.now().Add(time.Hour)),
		"userId": u.ID,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	name, _ := body["name"].(string)
	if email == "" || password == "" || name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "All fields are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
		return
	}
	s.nextID++
	s.users[email] = user{ID: fmt.Sprintf("user-%d", s.nextID), Name: name, Password: password}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	coll := chi.URLParam(r, "coll")
	if !s.known(coll) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}
	items := s.Records(coll)
	totals := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, it := range items {
		totals[it.Category] = totals[it.Category].Add(it.Amount)
		total = total.Add(it.Amount)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		coll:             items,
		"categoryTotals": numbers(totals),
		"total":          json.Number(total.String()),
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	coll, id := chi.URLParam(r, "coll"), chi.URLParam(r, "id")
	s.mu.Lock()
	rec, ok := s.records[coll][id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	coll := chi.URLParam(r, "coll")
	if !s.known(coll) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}
	rec, ok := recordFrom(bodyFrom(r.Context()))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid record"})
		return
	}
	rec.ID = ""
	id := s.Seed(coll, rec)
	s.mu.Lock()
	rec = s.records[coll][id]
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	coll, id := chi.URLParam(r, "coll"), chi.URLParam(r, "id")
	rec, ok := recordFrom(bodyFrom(r.Context()))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid record"})
		return
	}
	s.mu.Lock()
	old, exists := s.records[coll][id]
	if exists {
		rec.ID = id
		if rec.Date.IsZero() {
			rec.Date = old.Date
		}
		s.records[coll][id] = rec
	}
	s.mu.Unlock()
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	coll, id := chi.URLParam(r, "coll"), chi.URLParam(r, "id")
	s.mu.Lock()
	_, exists := s.records[coll][id]
	delete(s.records[coll], id)
	s.mu.Unlock()
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	start, _ := time.Parse("2006-01-02", r.URL.Query().Get("startDate"))
	end, _ := time.Parse("2006-01-02", r.URL.Query().Get("endDate"))
	inRange := func(t time.Time) bool {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if !start.IsZero() && day.Before(start) {
			return false
		}
		if !end.IsZero() && day.After(end) {
			return false
		}
		return true
	}

	sum := func(coll string) (decimal.Decimal, int, map[string]decimal.Decimal) {
		total, count, by := decimal.Zero, 0, map[string]decimal.Decimal{}
		for _, rec := range s.Records(coll) {
			if !inRange(rec.Date) {
				continue
			}
			total = total.Add(rec.Amount)
			count++
			by[rec.Category] = by[rec.Category].Add(rec.Amount)
		}
		return total, count, by
	}
	inc, incCount, incBy := sum("incomes")
	exp, expCount, expBy := sum("expenses")

	writeJSON(w, http.StatusOK, map[string]any{
		"totals": map[string]json.Number{
			"income":  json.Number(inc.String()),
			"expense": json.Number(exp.String()),
			"balance": json.Number(inc.Sub(exp).String()),
		},
		"counts":     map[string]int{"income": incCount, "expense": expCount},
		"breakdowns": map[string]any{"income": numbers(incBy), "expense": numbers(expBy)},
	})
}

func (s *Server) known(coll string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[coll]
	return ok
}

// MarshalJSON writes the amount as a JSON number like the real API does.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(struct {
		alias
		Amount json.Number `json:"amount"`
	}{alias: alias(r), Amount: json.Number(r.Amount.String())})
}

func recordFrom(body map[string]any) (Record, bool) {
	if body == nil {
		return Record{}, false
	}
	var rec Record
	rec.Source, _ = body["source"].(string)
	rec.Title, _ = body["title"].(string)
	rec.Category, _ = body["category"].(string)
	rec.UserID, _ = body["userId"].(string)
	switch v := body["amount"].(type) {
	case float64:
		rec.Amount = decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Record{}, false
		}
		rec.Amount = d
	default:
		return Record{}, false
	}
	if d, ok := body["date"].(string); ok {
		rec.Date, _ = time.Parse(time.RFC3339, d)
	}
	return rec, true
}

func numbers(m map[string]decimal.Decimal) map[string]json.Number {
	out := make(map[string]json.Number, len(m))
	for k, v := range m {
		out[k] = json.Number(v.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package api is the gateway to the remote finance REST API. Every call is
// issued once, carries the bearer token of the session it is given, and maps
// failures onto the Error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expenex/internal/core"
	"expenex/internal/log"
	"expenex/internal/session"
)

const maxErrorBody = 64 << 10

// UnauthorizedFunc is called with the session whose token the API rejected.
type UnauthorizedFunc func(ctx context.Context, s session.Session)

type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient     *http.Client
	Logger         *log.Logger
	OnUnauthorized UnauthorizedFunc
}

type Client struct {
	baseURL        string
	http           *http.Client
	logger         *log.Logger
	onUnauthorized UnauthorizedFunc
}

// LoginResult is the credential pair stored in the session after login.
type LoginResult struct {
	Token  string
	UserID string
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           hc,
		logger:         logger.WithComponent(log.ComponentAPI),
		onUnauthorized: opts.OnUnauthorized,
	}
}

func (c *Client) ListTransactions(ctx context.Context, s session.Session, kind core.Kind) (core.TransactionList, error) {
	if !kind.Valid() {
		return core.TransactionList{}, core.ErrUnknownKind
	}
	var resp listResponse
	if err := c.do(ctx, &s, "list "+kind.Collection(), http.MethodGet, "/"+kind.Collection(), nil, nil, &resp); err != nil {
		return core.TransactionList{}, err
	}
	return resp.toCore(kind), nil
}

func (c *Client) GetTransaction(ctx context.Context, s session.Session, kind core.Kind, id string) (core.Transaction, error) {
	if !kind.Valid() {
		return core.Transaction{}, core.ErrUnknownKind
	}
	var resp wireTransaction
	if err := c.do(ctx, &s, "get "+string(kind), http.MethodGet, recordPath(kind, id), nil, nil, &resp); err != nil {
		return core.Transaction{}, err
	}
	tx := resp.toCore(kind)
	if tx.ID == "" {
		tx.ID = id
	}
	return tx, nil
}

// CreateTransaction posts d together with the session user id. The returned
// transaction carries the server id when the response includes the record.
func (c *Client) CreateTransaction(ctx context.Context, s session.Session, kind core.Kind, d core.Draft) (core.Transaction, error) {
	if !kind.Valid() {
		return core.Transaction{}, core.ErrUnknownKind
	}
	body := newOutgoing(kind, "", d, time.Time{}, s.UserID)
	var resp wireTransaction
	if err := c.do(ctx, &s, "create "+string(kind), http.MethodPost, "/"+kind.Collection(), nil, body, &resp); err != nil {
		return core.Transaction{}, err
	}
	tx := resp.toCore(kind)
	if tx.Label == "" && tx.Amount.IsZero() {
		tx = core.Transaction{Kind: kind, UserID: s.UserID}.Apply(d)
		tx.ID = string(firstID(resp.MongoID, resp.ID))
	}
	return tx, nil
}

// UpdateTransaction replaces the whole record identified by tx.ID.
func (c *Client) UpdateTransaction(ctx context.Context, s session.Session, tx core.Transaction) (core.Transaction, error) {
	if !tx.Kind.Valid() {
		return core.Transaction{}, core.ErrUnknownKind
	}
	userID := tx.UserID
	if userID == "" {
		userID = s.UserID
	}
	body := newOutgoing(tx.Kind, tx.ID, tx.Draft(), tx.Date, userID)
	var resp wireTransaction
	if err := c.do(ctx, &s, "update "+string(tx.Kind), http.MethodPut, recordPath(tx.Kind, tx.ID), nil, body, &resp); err != nil {
		return core.Transaction{}, err
	}
	updated := resp.toCore(tx.Kind)
	if updated.ID == "" {
		return tx, nil
	}
	return updated, nil
}

// DeleteTransaction removes one record. The response body is ignored.
func (c *Client) DeleteTransaction(ctx context.Context, s session.Session, kind core.Kind, id string) error {
	if !kind.Valid() {
		return core.ErrUnknownKind
	}
	return c.do(ctx, &s, "delete "+string(kind), http.MethodDelete, recordPath(kind, id), nil, nil, nil)
}

// Dashboard fetches the aggregate for r. Unbounded ranges send no dates.
func (c *Client) Dashboard(ctx context.Context, s session.Session, r core.DateRange) (core.DashboardSnapshot, error) {
	if err := r.Validate(); err != nil {
		return core.DashboardSnapshot{}, err
	}
	q := url.Values{}
	if start := r.StartParam(); start != "" {
		q.Set("startDate", start)
	}
	if end := r.EndParam(); end != "" {
		q.Set("endDate", end)
	}
	var resp dashboardResponse
	if err := c.do(ctx, &s, "dashboard", http.MethodGet, "/dashboard", q, nil, &resp); err != nil {
		return core.DashboardSnapshot{}, err
	}
	return resp.toCore(), nil
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var resp loginResponse
	body := loginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.do(ctx, nil, log.OpLogin, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return LoginResult{}, err
	}
	if resp.Token == "" {
		return LoginResult{}, &Error{Kind: KindServer, Op: log.OpLogin, Status: http.StatusOK, Message: "Login response did not include a token"}
	}
	return LoginResult{Token: resp.Token, UserID: string(firstID(resp.UserID, resp.User))}, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := registerRequest{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	return c.do(ctx, nil, log.OpRegister, http.MethodPost, "/auth/register", nil, body, nil)
}

// Ping checks that the API answers at all; any HTTP status counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: "ping", Err: err}
	}
	resp.Body.Close()
	return nil
}

func recordPath(kind core.Kind, id string) string {
	return "/" + kind.Collection() + "/" + url.PathEscape(id)
}

// do issues a single request. s is nil for the unauthenticated auth endpoints.
func (c *Client) do(ctx context.Context, s *session.Session, op, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldOperation, op,
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err.Error())
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API request completed",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := c.statusError(op, resp)
		if apiErr.Kind == KindUnauthorized && s != nil && c.onUnauthorized != nil {
			c.onUnauthorized(ctx, *s)
		}
		c.logger.WarnContext(ctx, "API request rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, resp.StatusCode,
			log.FieldErrorType, string(apiErr.Kind),
			log.FieldError, apiErr.Error())
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) *Error {
	e := &Error{Kind: KindServer, Op: op, Status: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case http.StatusNotFound:
		e.Kind = KindNotFound
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return e
	}
	var body errorResponse
	if json.Unmarshal(data, &body) == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
	}
	return e
}

// IsUnauthorized is shorthand for errors.Is(err, ErrUnauthorized).
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

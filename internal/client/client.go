// Package client is a typed HTTP client for the clinic inventory API.
// Authentication state lives in an explicit Session value that callers pass
// to every authenticated call; the client itself holds no credentials.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clinic/m/domain"
	"clinic/m/internal/apperr"
	"clinic/m/internal/inventory"
	"clinic/m/internal/pricing"
)

// Session is the result of a login.
type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is a non-2xx response. It unwraps to the matching apperr sentinel so
// callers can use errors.Is(err, apperr.ErrNotFound).
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return (&apperr.ValidationError{Fields: e.Fields}).Error()
	}
	return fmt.Sprintf("clinic api: %d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusForbidden:
		return apperr.ErrForbidden
	case http.StatusUnprocessableEntity:
		return &apperr.ValidationError{Fields: e.Fields}
	}
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, nil, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Register creates an account. sess may be nil only for the first account.
func (c *Client) Register(ctx context.Context, sess *Session, username, email, password, role string) (*Session, error) {
	var s Session
	err := c.do(ctx, sess, http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": email, "password": password, "role": role,
	}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListDrugs(ctx context.Context, sess *Session, query string, includeInactive bool) ([]inventory.DrugView, error) {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	if includeInactive {
		v.Set("include_inactive", "true")
	}
	var out []inventory.DrugView
	if err := c.do(ctx, sess, http.MethodGet, withQuery("/inventory/drugs", v), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDrug(ctx context.Context, sess *Session, id int64) (*inventory.DrugView, error) {
	var out inventory.DrugView
	if err := c.do(ctx, sess, http.MethodGet, drugPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDrug(ctx context.Context, sess *Session, basic inventory.DrugBasics, p inventory.DrugPricing) (*inventory.DrugView, error) {
	var out inventory.DrugView
	body := map[string]any{"basic": basic, "pricing": p}
	if err := c.do(ctx, sess, http.MethodPost, "/inventory/drugs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDrug(ctx context.Context, sess *Session, id int64, req inventory.UpdateDrugRequest) (*inventory.DrugView, error) {
	var out inventory.DrugView
	if err := c.do(ctx, sess, http.MethodPut, drugPath(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Restock submits a restock. When the server files it for approval the
// returned result has Pending set and Drug shows the unchanged stock.
func (c *Client) Restock(ctx context.Context, sess *Session, drugID int64, req inventory.RestockRequest) (*inventory.RestockResult, error) {
	raw, status, err := c.send(ctx, sess, http.MethodPost, drugPath(drugID)+"/restock", req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		var res inventory.RestockResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode restock response: %w", err)
		}
		return &res, nil
	}
	var drug inventory.DrugView
	if err := json.Unmarshal(raw, &drug); err != nil {
		return nil, fmt.Errorf("decode restock response: %w", err)
	}
	return &inventory.RestockResult{Drug: drug}, nil
}

func (c *Client) ListRestocks(ctx context.Context, sess *Session, status domain.RestockStatus) ([]domain.RestockEvent, error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", string(status))
	}
	var out []domain.RestockEvent
	if err := c.do(ctx, sess, http.MethodGet, withQuery("/inventory/restocks", v), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ApproveRestock(ctx context.Context, sess *Session, id string) (*inventory.RestockResult, error) {
	var out inventory.RestockResult
	if err := c.do(ctx, sess, http.MethodPost, "/inventory/restocks/"+url.PathEscape(id)+"/approve", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RejectRestock(ctx context.Context, sess *Session, id, reason string) (*inventory.RestockResult, error) {
	var out inventory.RestockResult
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, sess, http.MethodPost, "/inventory/restocks/"+url.PathEscape(id)+"/reject", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LowStock(ctx context.Context, sess *Session) ([]inventory.DrugView, error) {
	var out []inventory.DrugView
	if err := c.do(ctx, sess, http.MethodGet, "/inventory/low-stock", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Expiring(ctx context.Context, sess *Session, days int) ([]inventory.DrugView, error) {
	v := url.Values{}
	if days > 0 {
		v.Set("days", strconv.Itoa(days))
	}
	var out []inventory.DrugView
	if err := c.do(ctx, sess, http.MethodGet, withQuery("/inventory/drugs/expiring", v), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Quote(ctx context.Context, sess *Session, in pricing.Input) (pricing.Quote, pricing.Display, error) {
	var out struct {
		Quote   pricing.Quote   `json:"quote"`
		Display pricing.Display `json:"display"`
	}
	err := c.do(ctx, sess, http.MethodPost, "/inventory/pricing/quote", in, &out)
	return out.Quote, out.Display, err
}

func (c *Client) Notifications(ctx context.Context, sess *Session, unreadOnly bool) ([]domain.Notification, error) {
	v := url.Values{}
	if unreadOnly {
		v.Set("unread", "true")
	}
	var out []domain.Notification
	if err := c.do(ctx, sess, http.MethodGet, withQuery("/notifications", v), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, sess *Session, method, path string, body, out any) error {
	raw, _, err := c.send(ctx, sess, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, sess *Session, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil && sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, resp.StatusCode, apiErr
	}
	return raw, resp.StatusCode, nil
}

func drugPath(id int64) string {
	return "/inventory/drugs/" + strconv.FormatInt(id, 10)
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

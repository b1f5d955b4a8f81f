// Package backend is the REST client for the booking API that owns users,
// fares and payments. This site never computes prices or stores users itself.
package backend

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
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUnavailable        = errors.New("booking service unavailable")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: http %d", e.Op, e.Status)
}

// Unwrap lets callers test server-side failures with errors.Is(err, ErrUnavailable).
func (e *APIError) Unwrap() error {
	if e.Status >= 500 {
		return ErrUnavailable
	}
	return nil
}

type Client struct {
	hc   *http.Client
	base string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:   &http.Client{Timeout: timeout},
		base: strings.TrimRight(baseURL, "/"),
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	token       string
	contentType string
	body        []byte
}

func (c *Client) jsonRequest(op, method, path string, payload any) (request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("%s: encode: %w", op, err)
	}
	return request{op: op, method: method, path: path, contentType: "application/json", body: b}, nil
}

// do sends rq and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, rq request, out any) error {
	u := c.base + rq.path
	if len(rq.query) > 0 {
		u += "?" + rq.query.Encode()
	}
	var body io.Reader
	if rq.body != nil {
		body = bytes.NewReader(rq.body)
	}
	req, err := http.NewRequestWithContext(ctx, rq.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", rq.op, err)
	}
	req.Header.Set("accept", "application/json")
	if rq.contentType != "" {
		req.Header.Set("content-type", rq.contentType)
	}
	if rq.token != "" {
		req.Header.Set("authorization", "Bearer "+rq.token)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", rq.op, ErrUnavailable, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w: %v", rq.op, ErrUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{Op: rq.op, Status: res.StatusCode, Detail: detail(b)}
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s: decode: %w", rq.op, err)
	}
	return nil
}

// detail pulls the "detail" field FastAPI-style errors carry. Validation
// errors come back as a list of objects; their first msg is used.
func detail(body []byte) string {
	var r struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(r.Detail) > 0 {
		var s string
		if err := json.Unmarshal(r.Detail, &s); err == nil {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(r.Detail, &list); err == nil && len(list) > 0 {
			return list[0].Msg
		}
	}
	return r.Message
}

func statusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Package rest is a small client for PostgREST style backends: tables are
// exposed under /rest/v1/<table>, filtered with query parameters and
// authenticated with a service key.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mutter0815/OutreachHub/pkg/metrics"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultRateLimit   = 20
	defaultBurst       = 10
	defaultMaxRetries  = 3
	defaultBaseBackoff = 200 * time.Millisecond
	defaultPageSize    = 1000
)

type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	RateLimit  float64
	Burst      int
	// MaxRetries of zero selects the default; a negative value disables
	// retries.
	MaxRetries int
	PageSize   int
	// BaseBackoff is doubled on every retry.
	BaseBackoff time.Duration
	HTTPClient  *http.Client
}

type Client struct {
	baseURL     string
	key         string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	pageSize    int
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rest: base url required")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("rest: service key required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("rest: invalid base url: %w", err)
	}

	c := &Client{
		baseURL:     cfg.BaseURL,
		key:         cfg.ServiceKey,
		httpClient:  cfg.HTTPClient,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		pageSize:    cfg.PageSize,
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	} else if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = defaultBaseBackoff
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	limit, burst := cfg.RateLimit, cfg.Burst
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	return c, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Table   string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d (%s): %s", e.Method, e.Table, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Table, e.Status, e.Message)
}

// retryableError marks failures worth another attempt: transport errors,
// 429 and 5xx.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Select fetches every row of table matching q, following limit/offset
// pages until an empty page is returned. A short page is not the end: the
// server may cap rows per response below the page size. Callers that need a
// stable order across pages must set the "order" parameter.
func Select[T any](ctx context.Context, c *Client, table string, q url.Values) ([]T, error) {
	var out []T
	for offset := 0; ; {
		rows, err := SelectPage[T](ctx, c, table, q, c.pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return out, nil
		}
		out = append(out, rows...)
		offset += len(rows)
	}
}

func SelectPage[T any](ctx context.Context, c *Client, table string, q url.Values, limit, offset int) ([]T, error) {
	page := cloneValues(q)
	page.Set("limit", strconv.Itoa(limit))
	page.Set("offset", strconv.Itoa(offset))

	body, err := c.do(ctx, http.MethodGet, table, page, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return rows, nil
}

// Update applies patch to every row of table matching filter.
func (c *Client) Update(ctx context.Context, table string, filter url.Values, patch any) error {
	payload, err := patchPayload(table, filter, patch)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPatch, table, filter, payload, "return=minimal")
	return err
}

// UpdateReturning is Update that decodes the rows the server actually
// changed. An empty result means the filter matched nothing.
func UpdateReturning[T any](ctx context.Context, c *Client, table string, filter url.Values, patch any) ([]T, error) {
	payload, err := patchPayload(table, filter, patch)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPatch, table, filter, payload, "return=representation")
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return rows, nil
}

func patchPayload(table string, filter url.Values, patch any) ([]byte, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("update %s: refusing to patch without a filter", table)
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal %s patch: %w", table, err)
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, table string, q url.Values, payload []byte, prefer string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, err := c.doOnce(ctx, method, table, q, payload, prefer)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, table string, q url.Values, payload []byte, prefer string) ([]byte, error) {
	u := c.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(method, table, "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("%s %s: %w", method, table, err)}
	}
	defer resp.Body.Close()
	metrics.BackendRequestsTotal.WithLabelValues(method, table, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("read %s response: %w", table, err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	se := &StatusError{Method: method, Table: table, Status: resp.StatusCode, Message: string(body)}
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		se.Code, se.Message = apiErr.Code, apiErr.Message
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &retryableError{err: se}
	}
	return nil, se
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q)+2)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

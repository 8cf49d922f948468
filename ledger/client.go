// Package ledger is the HTTP client for the authoritative place ledger.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"travel-planner/models"
	apperrors "travel-planner/utils/errors"
)

const (
	pathSearch = "/search_places"
	pathAdd    = "/add_place"
	pathMark   = "/mark_place"
	pathDelete = "/delete_place"
)

// Client talks to the ledger's HTTP surface. Every failure is explicit:
// transport errors and timeouts come back as TransientNetworkError.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger

	retryInitial time.Duration
	retryMax     uint64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry sets the backoff for idempotent calls (Update, Delete).
// maxRetries 0 disables retrying.
func WithRetry(initial time.Duration, maxRetries uint64) Option {
	return func(c *Client) {
		c.retryInitial = initial
		c.retryMax = maxRetries
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger URL %q: scheme and host required", baseURL)
	}
	c := &Client{
		baseURL:      u,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       zap.NewNop(),
		retryInitial: 200 * time.Millisecond,
		retryMax:     3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search returns candidate places for query near location.
func (c *Client) Search(ctx context.Context, query, location string) ([]models.Candidate, error) {
	u := c.baseURL.JoinPath(pathSearch)
	q := u.Query()
	q.Set("query", query)
	if location != "" {
		q.Set("location", location)
	}
	u.RawQuery = q.Encode()

	var candidates []models.Candidate
	if err := c.do(ctx, http.MethodGet, u, nil, &candidates); err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return candidates, nil
}

// Create persists p and returns it with the ledger-assigned id. Not retried:
// a lost response would otherwise create a duplicate.
func (c *Client) Create(ctx context.Context, p models.Place) (models.Place, error) {
	p.ID = ""
	var created models.Place
	if err := c.do(ctx, http.MethodPost, c.baseURL.JoinPath(pathAdd), p, &created); err != nil {
		return models.Place{}, err
	}
	if created.ID == "" {
		return models.Place{}, apperrors.With(apperrors.ErrInternal, "ledger returned %q without an id", p.Name)
	}
	return created, nil
}

// Update marks a place visited or not and optionally sets its category.
func (c *Client) Update(ctx context.Context, update models.PlaceUpdate) error {
	if update.ID == "" {
		return apperrors.Validation("update requires an id")
	}
	return c.retry(ctx, "mark_place", func() error {
		return c.do(ctx, http.MethodPost, c.baseURL.JoinPath(pathMark), update, nil)
	})
}

// Delete removes the place with id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.Validation("delete requires an id")
	}
	body := struct {
		ID string `json:"id"`
	}{ID: id}
	return c.retry(ctx, "delete_place", func() error {
		return c.do(ctx, http.MethodPost, c.baseURL.JoinPath(pathDelete), body, nil)
	})
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	if c.retryMax == 0 {
		return fn()
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.retryMax), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrTransient) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("retrying ledger call", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, policy)
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", u.Path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", u.Path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A truncated body is indistinguishable from a dropped connection.
		return apperrors.Transient(fmt.Errorf("decoding %s response: %w", u.Path, err))
	}
	return nil
}

func decodeError(resp *http.Response) error {
	kind := apperrors.FromStatus(resp.StatusCode)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiErr apperrors.APIError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		details := apiErr.Message
		if apiErr.Details != "" {
			details += ": " + apiErr.Details
		}
		return apperrors.With(kind, "%s %s", resp.Request.URL.Path, details)
	}
	return apperrors.With(kind, "%s returned %d", resp.Request.URL.Path, resp.StatusCode)
}

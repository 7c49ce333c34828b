// internal/clients/catalog_client.go
package clients

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

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"nftmarket/internal/catalog"
	"nftmarket/internal/eventstore"
)

var _ catalog.Service = (*CatalogClient)(nil)

// RemoteError is a non-2xx answer from the catalog service. It unwraps to
// the catalog sentinel matching its status code.
type RemoteError struct {
	Status  int
	Message string
	kind    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("catalog service: %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.kind }

// CatalogClient talks to the catalog HTTP API. Reads are retried with
// exponential backoff; every call goes through a circuit breaker.
type CatalogClient struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	maxTries uint
	initial  time.Duration
}

type ClientOption func(*clientConfig)

type clientConfig struct {
	http        *http.Client
	maxTries    uint
	initial     time.Duration
	maxFailures uint32
	openTimeout time.Duration
}

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.http = c }
}

// WithRetry sets how often a read is attempted and the first backoff delay.
func WithRetry(maxTries uint, initial time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.maxTries = maxTries
		cfg.initial = initial
	}
}

// WithBreaker opens the circuit after maxFailures consecutive server
// failures and probes again after openTimeout.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.maxFailures = maxFailures
		cfg.openTimeout = openTimeout
	}
}

func NewCatalogClient(baseURL string, opts ...ClientOption) *CatalogClient {
	cfg := clientConfig{
		http:        &http.Client{Timeout: 30 * time.Second},
		maxTries:    3,
		initial:     200 * time.Millisecond,
		maxFailures: 5,
		openTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxTries == 0 {
		cfg.maxTries = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "catalog",
		Timeout: cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.maxFailures
		},
		// client errors say nothing about the health of the service
		IsSuccessful: func(err error) bool {
			var remote *RemoteError
			if errors.As(err, &remote) {
				return remote.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})

	return &CatalogClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     cfg.http,
		breaker:  breaker,
		maxTries: cfg.maxTries,
		initial:  cfg.initial,
	}
}

func (c *CatalogClient) ListAll(ctx context.Context) ([]*catalog.Asset, error) {
	var assets []*catalog.Asset
	err := c.call(ctx, http.MethodGet, "/assets", nil, &assets)
	return assets, err
}

func (c *CatalogClient) GetByID(ctx context.Context, id string) (*catalog.Asset, error) {
	var asset catalog.Asset
	if err := c.call(ctx, http.MethodGet, "/assets/"+url.PathEscape(id), nil, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *CatalogClient) GetByCreator(ctx context.Context, identity string) ([]*catalog.Asset, error) {
	var assets []*catalog.Asset
	err := c.call(ctx, http.MethodGet, "/assets?"+url.Values{"creator": {identity}}.Encode(), nil, &assets)
	return assets, err
}

func (c *CatalogClient) GetByOwner(ctx context.Context, identity string) ([]*catalog.Asset, error) {
	var assets []*catalog.Asset
	err := c.call(ctx, http.MethodGet, "/assets?"+url.Values{"owner": {identity}}.Encode(), nil, &assets)
	return assets, err
}

func (c *CatalogClient) Search(ctx context.Context, query string) ([]*catalog.Asset, error) {
	if strings.TrimSpace(query) == "" {
		return []*catalog.Asset{}, nil
	}
	var assets []*catalog.Asset
	err := c.call(ctx, http.MethodGet, "/search?"+url.Values{"q": {query}}.Encode(), nil, &assets)
	return assets, err
}

func (c *CatalogClient) Create(ctx context.Context, title, description, imageURL, creator, price string, additionalImages ...string) (*catalog.Asset, error) {
	req := catalog.CreateRequest{
		Title:            title,
		Description:      description,
		ImageURL:         imageURL,
		AdditionalImages: additionalImages,
		Creator:          creator,
		Price:            price,
	}
	var asset catalog.Asset
	if err := c.call(ctx, http.MethodPost, "/assets", req, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *CatalogClient) Purchase(ctx context.Context, id, buyer, price string) (*catalog.Asset, error) {
	req := catalog.PurchaseRequest{Buyer: buyer, Price: price}
	var asset catalog.Asset
	if err := c.call(ctx, http.MethodPost, "/assets/"+url.PathEscape(id)+"/purchase", req, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *CatalogClient) Activity(ctx context.Context, id string) ([]eventstore.Event, error) {
	var events []eventstore.Event
	err := c.call(ctx, http.MethodGet, "/assets/"+url.PathEscape(id)+"/activity", nil, &events)
	return events, err
}

// call runs one request through the breaker. Only GETs are retried, since a
// repeated mint or purchase is not idempotent.
func (c *CatalogClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	tries := uint(1)
	if method == http.MethodGet {
		tries = c.maxTries
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.roundTrip(ctx, method, path, payload, out)
		})
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	return err
}

func (c *CatalogClient) roundTrip(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newRemoteError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newRemoteError(status int, msg string) *RemoteError {
	e := &RemoteError{Status: status, Message: msg}
	switch status {
	case http.StatusNotFound:
		e.kind = catalog.ErrNotFound
	case http.StatusBadRequest:
		e.kind = catalog.ErrValidation
		if msg == catalog.ErrSelfPurchase.Error() {
			e.kind = catalog.ErrSelfPurchase
		}
	case http.StatusTooManyRequests:
		e.kind = catalog.ErrRateLimited
	case http.StatusConflict:
		e.kind = eventstore.ErrConcurrencyConflict
	}
	return e
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status >= http.StatusInternalServerError
	}
	// transport errors
	return true
}

// Package orderbook is a client for the protocol's order API, used to turn
// a settlement transaction into the orders it executed.
package orderbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/metrics"
)

// DefaultBaseURL is the public order API.
const DefaultBaseURL = "https://api.cow.fi"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// APIError is a non-2xx response other than 404.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient reports whether err is worth retrying: throttling, server
// errors and transport failures are; bad responses and cancellation are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Config holds order API client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables client-side limiting
	Burst             int
}

// Client fetches orders for a settlement transaction on one network.
type Client struct {
	httpClient *http.Client
	baseURL    string
	network    string
	limiter    *rate.Limiter
}

// NewClient creates a new order API client for network.
func NewClient(cfg Config, network string) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: baseURL,
		network: network,
		limiter: limiter,
	}
}

// OrdersForTransaction returns the orders settled by txHash. A transaction
// the API does not know yields an empty list.
func (c *Client) OrdersForTransaction(ctx context.Context, txHash string) ([]Order, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/api/v1/transactions/%s/orders",
		c.baseURL, url.PathEscape(c.network), url.PathEscape(txHash))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.OrderbookRequestsTotal.WithLabelValues(c.network, "error").Inc()
		return nil, fmt.Errorf("failed to fetch orders for %s: %w", txHash, err)
	}
	defer resp.Body.Close()

	metrics.OrderbookRequestsTotal.WithLabelValues(c.network, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return []Order{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var orders []Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders for %s: %w", txHash, err)
	}
	return orders, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// Order is the subset of the order API response the backfill stores.
type Order struct {
	UID                          string           `json:"uid"`
	Owner                        string           `json:"owner"`
	CreationDate                 time.Time        `json:"creationDate"`
	SellToken                    string           `json:"sellToken"`
	BuyToken                     string           `json:"buyToken"`
	Receiver                     string           `json:"receiver"`
	Kind                         domain.OrderKind `json:"kind"`
	SellAmount                   Amount           `json:"sellAmount"`
	BuyAmount                    Amount           `json:"buyAmount"`
	ExecutedSellAmount           Amount           `json:"executedSellAmount"`
	ExecutedBuyAmount            Amount           `json:"executedBuyAmount"`
	ExecutedSellAmountBeforeFees Amount           `json:"executedSellAmountBeforeFees"`
}

// Amount is a base-10 integer decoded from either a JSON string or a JSON
// number. The raw token is kept so large values never pass through float64.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = "0"
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}

	clean, err := domain.SanitizeAmount(raw)
	if err != nil {
		return err
	}
	*a = Amount(clean)
	return nil
}

func (a Amount) String() string {
	return string(a)
}

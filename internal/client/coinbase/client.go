package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradingbot/internal/config"
	"tradingbot/internal/exception"
)

const DefaultBaseURL = "https://api.coinbase.com/api/v3"

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coinbase API error (%d): %s", e.Status, e.Body)
}

// Unwrap marks server-side failures as transient so callers may retry them.
func (e *APIError) Unwrap() error {
	if e.Status >= http.StatusInternalServerError {
		return exception.ErrTransientUpstream
	}
	return nil
}

type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

type Client struct {
	http   *resty.Client
	creds  Credentials
	retry  RetryPolicy
	logger *zap.Logger
	now    func() time.Time
}

func NewClient(cfg config.CoinbaseConfig, logger *zap.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy := DefaultRetryPolicy()
	if cfg.RetryMax > 0 {
		policy.MaxAttempts = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		policy.Backoff.Min = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		policy.Backoff.Max = cfg.RetryWaitMax
	}
	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http: hc,
		creds: Credentials{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			Passphrase: cfg.Passphrase,
		},
		retry:  policy,
		logger: logger,
		now:    time.Now,
	}
}

// WithRetryPolicy replaces the retry policy; used by tests to avoid real sleeps.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// Sign returns the base64 HMAC-SHA256 of timestamp+METHOD+path+body.
func Sign(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) signedHeaders(method, path, body string) map[string]string {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	return map[string]string{
		"CB-ACCESS-KEY":        c.creds.APIKey,
		"CB-ACCESS-SIGN":       Sign(c.creds.APISecret, ts, method, path, body),
		"CB-ACCESS-TIMESTAMP":  ts,
		"CB-ACCESS-PASSPHRASE": c.creds.Passphrase,
		"Content-Type":         "application/json",
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body := ""
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = string(raw)
	}
	var out []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		req := c.http.R().
			SetContext(ctx).
			SetHeaders(c.signedHeaders(method, path, body))
		if body != "" {
			req.SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s %s: %w: %v", method, path, exception.ErrTransientUpstream, err)
		}
		if resp.StatusCode() == http.StatusTooManyRequests {
			if c.logger != nil {
				c.logger.Warn("coinbase rate limited", zap.String("path", path))
			}
			return fmt.Errorf("%s %s: %w", method, path, exception.ErrRateLimited)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
		}
		out = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	body, err := c.do(ctx, http.MethodGet, "/brokerage/accounts", nil)
	if err != nil {
		return nil, err
	}
	var parsed accountsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return parsed.Accounts, nil
}

func (c *Client) GetBestBidAsk(ctx context.Context, symbol string) (BidAsk, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return BidAsk{}, fmt.Errorf("symbol is required: %w", exception.ErrInvalidInput)
	}
	body, err := c.do(ctx, http.MethodGet, "/brokerage/products/"+url.PathEscape(symbol), nil)
	if err != nil {
		return BidAsk{}, err
	}
	var parsed productResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return BidAsk{}, fmt.Errorf("decode product: %w", err)
	}
	return BidAsk{BestBid: parsed.Price.BestBid.Decimal, BestAsk: parsed.Price.BestAsk.Decimal}, nil
}

// PlaceOrder submits a GTC limit order. ClientOrderID makes resubmission of
// the same decision idempotent on the exchange side.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderResponse, error) {
	if strings.TrimSpace(req.Symbol) == "" || !req.Size.IsPositive() || !req.LimitPrice.IsPositive() {
		return OrderResponse{}, fmt.Errorf("place order: %w", exception.ErrInvalidInput)
	}
	clientOrderID := strings.TrimSpace(req.ClientOrderID)
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	payload := orderPayload{
		ClientOrderID: clientOrderID,
		ProductID:     strings.TrimSpace(req.Symbol),
		Side:          strings.ToUpper(strings.TrimSpace(req.Side)),
		OrderConfiguration: orderConfiguration{
			LimitLimitGTC: limitGTC{
				BaseSize:   req.Size.String(),
				LimitPrice: req.LimitPrice.String(),
				PostOnly:   false,
			},
		},
	}
	body, err := c.do(ctx, http.MethodPost, "/brokerage/orders", payload)
	if err != nil {
		return OrderResponse{}, err
	}
	return parseOrderResponse(body)
}

// GetOrder returns the raw historical order payload for reconciliation.
func (c *Client) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id is required: %w", exception.ErrInvalidInput)
	}
	body, err := c.do(ctx, http.MethodGet, "/brokerage/orders/historical/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

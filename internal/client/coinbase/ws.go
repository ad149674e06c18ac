package coinbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"tradingbot/internal/exception"
)

const DefaultFeedURL = "wss://ws-feed.exchange.coinbase.com"

type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// WSClient is a single connection to the exchange feed.
type WSClient struct {
	url  string
	conn *websocket.Conn
}

func NewWSClient(url string) *WSClient {
	if strings.TrimSpace(url) == "" {
		url = DefaultFeedURL
	}
	return &WSClient{url: url}
}

func (c *WSClient) Connect(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("ws client is nil")
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn
	return nil
}

func (c *WSClient) Close(status websocket.StatusCode, reason string) error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close(status, reason)
}

// Ping needs a concurrent Read to receive the pong.
func (c *WSClient) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("ws not connected")
	}
	return c.conn.Ping(ctx)
}

func (c *WSClient) SubscribeTicker(ctx context.Context, productIDs []string) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("ws not connected")
	}
	payload, err := json.Marshal(subscribeRequest{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Channels:   []string{"ticker", "heartbeat"},
	})
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

// Read returns the next message. Frames that are not JSON objects come back
// as a zero Ticker.
func (c *WSClient) Read(ctx context.Context) (Ticker, error) {
	if c == nil || c.conn == nil {
		return Ticker{}, fmt.Errorf("ws not connected")
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return Ticker{}, err
	}
	var msg Ticker
	if err := json.Unmarshal(data, &msg); err != nil {
		return Ticker{}, nil
	}
	return msg, nil
}

type TickerStreamOptions struct {
	URL        string
	ProductIDs []string
	// PingEvery is the keepalive period; one failed ping drops the session.
	PingEvery   time.Duration
	PingTimeout time.Duration
	Backoff     exception.Backoff
	Logger      *zap.Logger
}

// TickerStream keeps a ticker subscription alive until ctx is cancelled.
// Consecutive failed sessions wait Backoff.Next(n) before redialing; a
// session that got as far as subscribing resets the count.
type TickerStream struct {
	opts TickerStreamOptions
}

func NewTickerStream(opts TickerStreamOptions) *TickerStream {
	if opts.URL == "" {
		opts.URL = DefaultFeedURL
	}
	if opts.PingEvery <= 0 {
		opts.PingEvery = 20 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.Backoff.Min <= 0 {
		opts.Backoff = exception.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0.5}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &TickerStream{opts: opts}
}

func (s *TickerStream) Run(ctx context.Context, onTicker func(Ticker)) error {
	if s == nil {
		return exception.ErrNilInstance
	}
	if len(s.opts.ProductIDs) == 0 {
		return fmt.Errorf("ticker stream: no products")
	}
	failures := 0
	for {
		subscribed, err := s.session(ctx, onTicker)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			failures = 0
		}
		failures++
		wait := s.opts.Backoff.Next(failures)
		s.opts.Logger.Warn("coinbase ws session ended",
			zap.Error(err),
			zap.Int("failures", failures),
			zap.Duration("retry_in", wait),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// session dials, subscribes and pumps messages until the connection fails.
func (s *TickerStream) session(ctx context.Context, onTicker func(Ticker)) (bool, error) {
	client := NewWSClient(s.opts.URL)
	if err := client.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer client.Close(websocket.StatusNormalClosure, "reconnect")

	if err := client.SubscribeTicker(ctx, s.opts.ProductIDs); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	s.opts.Logger.Info("coinbase ws subscribed", zap.Strings("products", s.opts.ProductIDs))

	sessCtx, drop := context.WithCancel(ctx)
	defer drop()
	go s.keepAlive(sessCtx, client, drop)

	for {
		msg, err := client.Read(sessCtx)
		if err != nil {
			return true, err
		}
		switch msg.Type {
		case "ticker":
			if onTicker != nil {
				onTicker(msg)
			}
		case "error":
			return true, errors.New("coinbase ws error: " + msg.Message)
		}
	}
}

func (s *TickerStream) keepAlive(ctx context.Context, client *WSClient, drop context.CancelFunc) {
	t := time.NewTicker(s.opts.PingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.PingTimeout)
			err := client.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					s.opts.Logger.Warn("coinbase ws ping failed", zap.Error(err))
				}
				drop()
				return
			}
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"tradingbot/internal/handler"
)

type mockAlert struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
	Timeframe  string  `json:"timeframe"`
	Price      float64 `json:"price"`
	TS         string  `json:"ts"`
}

func newMockAlert(rng *rand.Rand, assets []string, now time.Time) mockAlert {
	sides := []string{"buy", "sell"}
	return mockAlert{
		ID:         uuid.NewString(),
		Symbol:     assets[rng.Intn(len(assets))],
		Side:       sides[rng.Intn(len(sides))],
		Confidence: math.Round((0.4+rng.Float64()*0.55)*100) / 100,
		Timeframe:  "1h",
		Price:      math.Round((50+rng.Float64()*(40000-50))*100) / 100,
		TS:         now.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func splitAssets(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"[] `)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func mockAlertsCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tradingctl mock-alerts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	count := fs.Int("count", 3, "number of alerts to send")
	delay := fs.Duration("delay", 2*time.Second, "delay between alerts")
	api := fs.String("api", envOr("API_URL", "http://localhost:8080"), "server base URL")
	secret := fs.String("secret", envOr("TB_WEBHOOK_SECRET", "changeme"), "webhook secret")
	assets := fs.String("assets", envOr("BASE_ASSETS", "BTC-USD,SOL-USD,SUI-USD"), "comma separated symbols")
	if err := fs.Parse(args); err != nil {
		return err
	}
	symbols := splitAssets(*assets)
	if len(symbols) == 0 {
		return errors.New("--assets is empty")
	}

	sender := &alertSender{
		HTTP:   resty.New().SetTimeout(10 * time.Second),
		APIURL: strings.TrimRight(strings.TrimSpace(*api), "/"),
		Secret: *secret,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < *count; i++ {
		alert := newMockAlert(rng, symbols, time.Now())
		status, body, err := sender.Send(ctx, alert)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, alert.Symbol, alert.Side, alert.Price, status, body)
		if i+1 < *count {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(*delay):
			}
		}
	}
	return nil
}

type alertSender struct {
	HTTP   *resty.Client
	APIURL string
	Secret string
}

// Send posts alert with an X-Signature header and returns the status code
// and response body.
func (s *alertSender) Send(ctx context.Context, alert mockAlert) (int, string, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return 0, "", err
	}
	resp, err := s.HTTP.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(handler.SignatureHeader, handler.Sign(body, s.Secret)).
		SetBody(body).
		Post(s.APIURL + "/webhook/tradingview")
	if err != nil {
		return 0, "", fmt.Errorf("post alert %s: %w", alert.ID, err)
	}
	return resp.StatusCode(), strings.TrimSpace(resp.String()), nil
}

package marketdata

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradingbot/internal/client/coinbase"
)

type quote struct {
	bid decimal.Decimal
	ask decimal.Decimal
	at  time.Time
}

// TickerCache holds the latest best bid/ask per symbol from the stream.
type TickerCache struct {
	mu     sync.RWMutex
	quotes map[string]quote
	now    func() time.Time
}

func NewTickerCache() *TickerCache {
	return &TickerCache{quotes: map[string]quote{}, now: time.Now}
}

func (c *TickerCache) Update(tk coinbase.Ticker) {
	if c == nil {
		return
	}
	symbol := strings.TrimSpace(tk.ProductID)
	if symbol == "" {
		return
	}
	c.mu.Lock()
	c.quotes[symbol] = quote{bid: tk.BestBid.Decimal, ask: tk.BestAsk.Decimal, at: c.now()}
	c.mu.Unlock()
}

// BidAsk returns the cached quote when it is younger than maxAge.
func (c *TickerCache) BidAsk(symbol string, maxAge time.Duration) (coinbase.BidAsk, bool) {
	if c == nil {
		return coinbase.BidAsk{}, false
	}
	c.mu.RLock()
	q, ok := c.quotes[strings.TrimSpace(symbol)]
	c.mu.RUnlock()
	if !ok {
		return coinbase.BidAsk{}, false
	}
	if maxAge > 0 && c.now().Sub(q.at) > maxAge {
		return coinbase.BidAsk{}, false
	}
	return coinbase.BidAsk{BestBid: q.bid, BestAsk: q.ask}, true
}

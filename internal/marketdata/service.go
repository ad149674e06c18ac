package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradingbot/internal/client/coinbase"
	"tradingbot/internal/exception"
)

type Quoter interface {
	GetBestBidAsk(ctx context.Context, symbol string) (coinbase.BidAsk, error)
}

// Service resolves a tradable mid price for a symbol.
type Service struct {
	Client Quoter
	Cache  *TickerCache
	// Offline skips the exchange entirely: paper trading without API keys.
	Offline bool
	MaxAge  time.Duration
	Logger  *zap.Logger
}

// GetMidPrice prefers a fresh streamed quote, then the REST quote, then
// fallback. Without a fallback an upstream failure is returned wrapped in
// ErrTransientUpstream.
func (s *Service) GetMidPrice(ctx context.Context, symbol string, fallback *decimal.Decimal) (decimal.Decimal, error) {
	if s == nil || s.Offline {
		if fallback != nil {
			if s != nil && s.Logger != nil {
				s.Logger.Debug("using fallback price offline", zap.String("symbol", symbol))
			}
			return *fallback, nil
		}
		return decimal.Zero, nil
	}
	if ba, ok := s.Cache.BidAsk(symbol, s.MaxAge); ok {
		if mid, ok := Mid(ba); ok {
			return mid, nil
		}
	}
	if s.Client == nil {
		return orFallback(fallback, fmt.Errorf("market data client missing: %w", exception.ErrTransientUpstream))
	}
	ba, err := s.Client.GetBestBidAsk(ctx, symbol)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("market data fallback", zap.String("symbol", symbol), zap.Error(err))
		}
		if !exception.Retryable(err) {
			err = fmt.Errorf("%w: %v", exception.ErrTransientUpstream, err)
		}
		return orFallback(fallback, fmt.Errorf("best bid/ask %s: %w", symbol, err))
	}
	if mid, ok := Mid(ba); ok {
		return mid, nil
	}
	if fallback != nil {
		return *fallback, nil
	}
	return decimal.Zero, nil
}

// Mid is (bid+ask)/2 when both sides quote, otherwise whichever side does.
func Mid(ba coinbase.BidAsk) (decimal.Decimal, bool) {
	bid, ask := ba.BestBid, ba.BestAsk
	switch {
	case bid.IsPositive() && ask.IsPositive():
		return bid.Add(ask).Div(decimal.NewFromInt(2)), true
	case ask.IsPositive():
		return ask, true
	case bid.IsPositive():
		return bid, true
	}
	return decimal.Zero, false
}

func orFallback(fallback *decimal.Decimal, err error) (decimal.Decimal, error) {
	if fallback != nil {
		return *fallback, nil
	}
	return decimal.Zero, err
}

package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradingbot/internal/config"
	"tradingbot/internal/models"
	"tradingbot/internal/repository"
)

const (
	ReasonPositionLimit = "position limit exceeded"
	ReasonDailyRisk     = "daily risk limit exceeded"
	ReasonSlippage      = "slippage too high"

	TradeDayLayout = "2006-01-02"
)

// Result is the outcome of a single check. Reason is set only when OK is false.
// A passing daily check also reports the notional it booked and the trade day
// it was booked against, so a trade that never happens can give it back.
type Result struct {
	OK       bool
	Reason   string
	TradeDay string
	Booked   decimal.Decimal
}

func pass() Result { return Result{OK: true} }

func fail(reason string) Result { return Result{Reason: reason} }

// Limits are fractions of portfolio notional (or of price for slippage).
type Limits struct {
	MaxPosPct       decimal.Decimal
	MaxDailyRiskPct decimal.Decimal
	MaxSlippagePct  decimal.Decimal
}

func LimitsFromConfig(cfg config.TradingConfig) Limits {
	return Limits{
		MaxPosPct:       decimal.NewFromFloat(cfg.MaxPosPct),
		MaxDailyRiskPct: decimal.NewFromFloat(cfg.MaxDailyRiskPct),
		MaxSlippagePct:  decimal.NewFromFloat(cfg.OrderSlippagePct),
	}
}

// EquityProvider supplies the portfolio notional that limits are scaled by.
type EquityProvider interface {
	PortfolioNotional(ctx context.Context) (decimal.Decimal, error)
}

// StaticEquity reports a fixed notional, the paper cash balance.
type StaticEquity decimal.Decimal

func (s StaticEquity) PortfolioNotional(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(s), nil
}

// Store is the persistence the manager reads and mutates.
type Store interface {
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	ReserveDailyNotional(ctx context.Context, tradeDay string, amount, limit decimal.Decimal) (repository.DailyReservation, error)
	InsertRiskEvent(ctx context.Context, item *models.RiskEvent) error
}

type Manager struct {
	Limits Limits
	Equity EquityProvider
	Repo   Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Proposal is a sized trade awaiting approval.
type Proposal struct {
	Symbol      string
	Side        string
	Qty         decimal.Decimal
	AlertPrice  decimal.Decimal
	MarketPrice decimal.Decimal
}

func (p Proposal) Notional() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice)
}

func (m *Manager) now() time.Time {
	if m != nil && m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// TradeDay is the UTC calendar day daily usage is booked against.
func (m *Manager) TradeDay() string {
	return m.now().Format(TradeDayLayout)
}

func (m *Manager) PortfolioNotional(ctx context.Context) (decimal.Decimal, error) {
	if m == nil || m.Equity == nil {
		return decimal.Zero, nil
	}
	return m.Equity.PortfolioNotional(ctx)
}

// Evaluate runs slippage, position and daily checks in that order and stops
// at the first failure. Only a passing daily check books notional.
func (m *Manager) Evaluate(ctx context.Context, p Proposal) (Result, error) {
	if m == nil {
		return Result{}, fmt.Errorf("risk manager is nil")
	}
	if res := m.CheckSlippage(p.AlertPrice, p.MarketPrice); !res.OK {
		return res, nil
	}
	portfolio, err := m.PortfolioNotional(ctx)
	if err != nil {
		return Result{}, err
	}
	res, err := m.CheckPositionLimit(ctx, p.Symbol, p.Side, p.Qty, p.MarketPrice, portfolio)
	if err != nil || !res.OK {
		return res, err
	}
	return m.CheckDailyRisk(ctx, p.Notional(), portfolio)
}

// CheckSlippage fails when the market has moved more than MaxSlippagePct
// away from the alert price in either direction.
func (m *Manager) CheckSlippage(alertPrice, marketPrice decimal.Decimal) Result {
	if alertPrice.IsZero() {
		return pass()
	}
	deviation := marketPrice.Sub(alertPrice).Abs().Div(alertPrice.Abs())
	if deviation.GreaterThan(m.Limits.MaxSlippagePct) {
		return fail(ReasonSlippage)
	}
	return pass()
}

// CheckPositionLimit fails when the projected position notional would exceed
// MaxPosPct of the portfolio. It does not mutate state.
func (m *Manager) CheckPositionLimit(ctx context.Context, symbol, side string, qty, price, portfolio decimal.Decimal) (Result, error) {
	current := decimal.Zero
	if m.Repo != nil {
		pos, err := m.Repo.GetPosition(ctx, symbol)
		if err != nil {
			return Result{}, err
		}
		if pos != nil {
			current = pos.Qty
		}
	}
	projected := current.Add(qty)
	if strings.EqualFold(side, models.SideSell) {
		projected = current.Sub(qty)
	}
	limit := portfolio.Mul(m.Limits.MaxPosPct)
	if projected.Mul(price).Abs().GreaterThan(limit) {
		if m.Logger != nil {
			m.Logger.Debug("risk: position limit",
				zap.String("symbol", symbol),
				zap.String("projected", projected.String()),
				zap.String("limit", limit.StringFixed(2)),
			)
		}
		return fail(ReasonPositionLimit), nil
	}
	return pass(), nil
}

// CheckDailyRisk books proposed notional against today's budget when it fits.
// A failing call leaves usage unchanged.
func (m *Manager) CheckDailyRisk(ctx context.Context, proposed, portfolio decimal.Decimal) (Result, error) {
	if m.Repo == nil {
		return Result{}, fmt.Errorf("risk manager has no store")
	}
	limit := portfolio.Mul(m.Limits.MaxDailyRiskPct)
	day := m.TradeDay()
	res, err := m.Repo.ReserveDailyNotional(ctx, day, proposed, limit)
	if err != nil {
		return Result{}, err
	}
	if !res.OK {
		if m.Logger != nil {
			m.Logger.Debug("risk: daily budget",
				zap.String("trade_day", day),
				zap.String("used", res.Used.StringFixed(2)),
				zap.String("proposed", proposed.StringFixed(2)),
				zap.String("limit", limit.StringFixed(2)),
			)
		}
		return fail(ReasonDailyRisk), nil
	}
	return Result{OK: true, TradeDay: day, Booked: proposed.Round(2)}, nil
}

// RecordEvent appends an audit entry. alertID may be uuid.Nil.
func (m *Manager) RecordEvent(ctx context.Context, eventType string, alertID uuid.UUID, details map[string]any) error {
	if m == nil || m.Repo == nil {
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	item := &models.RiskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Details:   datatypes.JSON(raw),
		CreatedAt: m.now(),
	}
	if alertID != uuid.Nil {
		id := alertID
		item.AlertID = &id
	}
	return m.Repo.InsertRiskEvent(ctx, item)
}

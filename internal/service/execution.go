package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradingbot/internal/client/coinbase"
	"tradingbot/internal/config"
	"tradingbot/internal/exception"
	"tradingbot/internal/metrics"
	"tradingbot/internal/models"
	"tradingbot/internal/repository"
	"tradingbot/internal/risk"
	"tradingbot/internal/sizing"
	"tradingbot/internal/throttle"
)

const (
	BlockInvalidSide    = "invalid_side"
	BlockThrottled      = "throttled"
	BlockHalted         = "execution_halted"
	BlockZeroQty        = "qty<=0"
	BlockBrokerRejected = "broker_rejected"
	BlockBrokerError    = "broker_error"
)

type MarketData interface {
	GetMidPrice(ctx context.Context, symbol string, fallback *decimal.Decimal) (decimal.Decimal, error)
}

type Broker interface {
	PlaceOrder(ctx context.Context, req coinbase.PlaceOrderRequest) (coinbase.OrderResponse, error)
}

// ExecutionService turns one stored alert into at most one order.
type ExecutionService struct {
	Repo     repository.Repository
	Risk     *risk.Manager
	Throttle *throttle.Throttle
	Market   MarketData
	Broker   Broker
	Metrics  metrics.Sink
	Flags    *SystemSettingsService
	Logger   *zap.Logger
	Config   config.TradingConfig
	Now      func() time.Time
}

func (s *ExecutionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ExecutionService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Execute runs the pipeline for alertID. It is safe to call repeatedly: an
// alert that already produced an order or a terminal event is skipped.
// Business rejections are audited and return nil; a non-nil error means the
// task may be retried when exception.Retryable reports so.
func (s *ExecutionService) Execute(ctx context.Context, alertID uuid.UUID) error {
	if s == nil || s.Repo == nil || s.Risk == nil {
		return exception.ErrNilInstance
	}
	sink := metrics.OrNop(s.Metrics)
	start := time.Now()
	defer func() { sink.ObserveTradeLatency(time.Since(start)) }()

	done, err := s.alreadyProcessed(ctx, alertID)
	if err != nil {
		return err
	}
	if done {
		s.log().Info("alert already processed", zap.String("alert_id", alertID.String()))
		return nil
	}

	alert, err := s.Repo.GetAlertByID(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		s.log().Warn("alert not found", zap.String("alert_id", alertID.String()))
		return nil
	}

	side := strings.ToLower(strings.TrimSpace(alert.Side))
	symbol := strings.TrimSpace(alert.Symbol)
	switch side {
	case models.SideFlat:
		return s.Risk.RecordEvent(ctx, models.RiskEventFlat, alert.ID, map[string]any{
			"alert_id": alert.ID.String(),
		})
	case models.SideBuy, models.SideSell:
	default:
		return s.block(ctx, alert.ID, BlockInvalidSide, nil)
	}

	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureExecution, true) {
		return s.block(ctx, alert.ID, BlockHalted, nil)
	}
	if s.Throttle != nil && !s.Throttle.Allow(ctx, symbol, s.Config.ThrottleWindow) {
		return s.block(ctx, alert.ID, BlockThrottled, nil)
	}
	if err := s.trade(ctx, alert, side, symbol, sink); err != nil {
		s.Throttle.Release(ctx, symbol)
		return err
	}
	return nil
}

func (s *ExecutionService) trade(ctx context.Context, alert *models.Alert, side, symbol string, sink metrics.Sink) error {
	if s.Market == nil {
		return fmt.Errorf("market data not configured: %w", exception.ErrNilInstance)
	}
	fallback := alert.Price
	market, err := s.Market.GetMidPrice(ctx, symbol, &fallback)
	if err != nil {
		return fmt.Errorf("price %s: %w", symbol, err)
	}

	portfolio, err := s.Risk.PortfolioNotional(ctx)
	if err != nil {
		return err
	}
	qty, label := sizing.VolScaled(market, nil, s.Risk.Limits.MaxPosPct, portfolio)
	if !qty.IsPositive() {
		return s.block(ctx, alert.ID, BlockZeroQty, nil)
	}

	res, err := s.Risk.Evaluate(ctx, risk.Proposal{
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		AlertPrice:  alert.Price,
		MarketPrice: market,
	})
	if err != nil {
		return err
	}
	if !res.OK {
		return s.block(ctx, alert.ID, res.Reason, nil)
	}

	dir := decimal.NewFromInt(1)
	if side == models.SideSell {
		dir = decimal.NewFromInt(-1)
	}
	slip := decimal.NewFromFloat(s.Config.OrderSlippagePct)
	limit := market.Mul(decimal.NewFromInt(1).Add(dir.Mul(slip))).Round(8)

	order := &models.Order{
		ID:         uuid.New(),
		AlertID:    alert.ID,
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		LimitPrice: limit,
		Sizing:     label,
	}
	if s.Config.IsLive() {
		return s.submitLive(ctx, order, res, sink)
	}
	return s.fillPaper(ctx, order, market, res, sink)
}

func (s *ExecutionService) alreadyProcessed(ctx context.Context, alertID uuid.UUID) (bool, error) {
	existing, err := s.Repo.GetOrderByAlertID(ctx, alertID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return true, nil
	}
	return s.Repo.HasTerminalRiskEvent(ctx, alertID)
}

func (s *ExecutionService) fillPaper(ctx context.Context, order *models.Order, price decimal.Decimal, booking risk.Result, sink metrics.Sink) error {
	order.Status = models.OrderStatusFilled
	order.Mode = models.OrderModePaper

	created := false
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		pos, err := s.Repo.LockPositionTx(ctx, tx, order.Symbol)
		if err != nil {
			return err
		}
		ok, err := s.Repo.CreateOrderTx(ctx, tx, order)
		if err != nil || !ok {
			return err
		}
		created = true
		fill := &models.Fill{
			ID:       uuid.New(),
			OrderID:  order.ID,
			Symbol:   order.Symbol,
			Qty:      order.Qty,
			Price:    price,
			Fee:      decimal.Zero,
			FilledAt: s.now(),
		}
		if err := s.Repo.InsertFillTx(ctx, tx, fill); err != nil {
			return err
		}
		ApplyFill(pos, order.Side, order.Qty, price)
		return s.Repo.SavePositionTx(ctx, tx, pos)
	})
	if err != nil {
		s.release(ctx, nil, order, booking)
		return fmt.Errorf("paper fill %s: %w", order.AlertID, err)
	}
	if !created {
		s.release(ctx, nil, order, booking)
		s.log().Info("order already exists for alert", zap.String("alert_id", order.AlertID.String()))
		return nil
	}
	sink.OrderSent(models.OrderModePaper)
	sink.OrderFilled()

	s.log().Info("paper fill",
		zap.String("alert_id", order.AlertID.String()),
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side),
		zap.String("qty", order.Qty.String()),
		zap.String("price", price.String()),
	)
	s.recordTerminal(ctx, models.RiskEventPaperFill, order.AlertID, map[string]any{
		"symbol":   order.Symbol,
		"qty":      order.Qty.String(),
		"side":     order.Side,
		"sizing":   order.Sizing,
		"order_id": order.ID.String(),
	})
	return nil
}

func (s *ExecutionService) submitLive(ctx context.Context, order *models.Order, booking risk.Result, sink metrics.Sink) error {
	if s.Broker == nil {
		s.release(ctx, nil, order, booking)
		return fmt.Errorf("live broker not configured: %w", exception.ErrNilInstance)
	}
	order.Status = models.OrderStatusPending
	order.Mode = models.OrderModeLive

	ok, err := s.Repo.CreateOrderTx(ctx, nil, order)
	if err != nil {
		s.release(ctx, nil, order, booking)
		return err
	}
	if !ok {
		s.release(ctx, nil, order, booking)
		s.log().Info("order already reserved for alert", zap.String("alert_id", order.AlertID.String()))
		return nil
	}

	resp, err := s.Broker.PlaceOrder(ctx, coinbase.PlaceOrderRequest{
		ClientOrderID: order.ID.String(),
		Symbol:        order.Symbol,
		Side:          order.Side,
		Size:          order.Qty,
		LimitPrice:    order.LimitPrice,
	})
	if err != nil {
		s.release(ctx, &order.ID, order, booking)
		if exception.Retryable(err) || ctx.Err() != nil {
			return fmt.Errorf("place order %s: %w", order.AlertID, err)
		}
		return s.block(ctx, order.AlertID, BlockBrokerError, map[string]any{
			"error": err.Error(),
		})
	}
	if !resp.Success {
		s.release(ctx, &order.ID, order, booking)
		return s.block(ctx, order.AlertID, BlockBrokerRejected, map[string]any{
			"failure_reason": resp.FailureReason,
		})
	}

	if err := s.Repo.MarkOrderSubmitted(ctx, order.ID, resp.OrderID); err != nil {
		return err
	}
	sink.OrderSent(models.OrderModeLive)

	s.log().Info("live order submitted",
		zap.String("alert_id", order.AlertID.String()),
		zap.String("symbol", order.Symbol),
		zap.String("broker_order_id", resp.OrderID),
	)
	details := map[string]any{
		"symbol":          order.Symbol,
		"qty":             order.Qty.String(),
		"side":            order.Side,
		"sizing":          order.Sizing,
		"order_id":        order.ID.String(),
		"broker_order_id": resp.OrderID,
	}
	if len(resp.Raw) > 0 {
		details["resp"] = resp.Raw
	}
	s.recordTerminal(ctx, models.RiskEventLiveOrder, order.AlertID, details)
	return nil
}

// release undoes what an alert reserved when no order survives: the pending
// order row (when pendingID is set) and the daily notional booked by the risk
// check. Both go in one transaction so a retry starts from a clean slate.
func (s *ExecutionService) release(ctx context.Context, pendingID *uuid.UUID, order *models.Order, booking risk.Result) {
	ctx = context.WithoutCancel(ctx)
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if pendingID != nil {
			if err := s.Repo.DeleteOrderTx(ctx, tx, *pendingID); err != nil {
				return err
			}
		}
		return s.Repo.ReleaseDailyNotionalTx(ctx, tx, booking.TradeDay, booking.Booked)
	})
	if err != nil {
		s.log().Error("release reservation failed",
			zap.String("alert_id", order.AlertID.String()),
			zap.String("order_id", order.ID.String()),
			zap.String("booked", booking.Booked.String()),
			zap.Error(err),
		)
	}
}

// recordTerminal writes the success event after the order is durable. The
// order row already guards redelivery, so a failed write is only logged.
func (s *ExecutionService) recordTerminal(ctx context.Context, eventType string, alertID uuid.UUID, details map[string]any) {
	if err := s.Risk.RecordEvent(ctx, eventType, alertID, details); err != nil {
		s.log().Error("record risk event failed",
			zap.String("type", eventType),
			zap.String("alert_id", alertID.String()),
			zap.Error(err),
		)
	}
}

func (s *ExecutionService) block(ctx context.Context, alertID uuid.UUID, reason string, extra map[string]any) error {
	metrics.OrNop(s.Metrics).RiskBlocked(reason)
	s.log().Info("alert blocked", zap.String("alert_id", alertID.String()), zap.String("reason", reason))
	details := map[string]any{
		"reason":   reason,
		"alert_id": alertID.String(),
	}
	for k, v := range extra {
		details[k] = v
	}
	return s.Risk.RecordEvent(ctx, models.RiskEventBlocked, alertID, details)
}

// ApplyFill folds a fill into pos. Buys re-weight the average price; sells
// reduce quantity and leave the average untouched.
func ApplyFill(pos *models.Position, side string, qty, price decimal.Decimal) {
	if pos == nil {
		return
	}
	if strings.EqualFold(side, models.SideSell) {
		pos.Qty = pos.Qty.Sub(qty)
		return
	}
	total := pos.Qty.Add(qty)
	if total.IsZero() {
		pos.AvgPrice = price
	} else {
		pos.AvgPrice = pos.Qty.Mul(pos.AvgPrice).Add(qty.Mul(price)).Div(total).Round(8)
	}
	pos.Qty = total
}

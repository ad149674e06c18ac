package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradingbot/internal/client/coinbase"
	"tradingbot/internal/config"
	"tradingbot/internal/db/dbtest"
	"tradingbot/internal/exception"
	"tradingbot/internal/marketdata"
	"tradingbot/internal/models"
	"tradingbot/internal/repository"
	gormrepository "tradingbot/internal/repository/gorm"
	"tradingbot/internal/risk"
	"tradingbot/internal/throttle"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingSink struct {
	received int
	sent     map[string]int
	filled   int
	blocked  map[string]int
	observed int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sent: map[string]int{}, blocked: map[string]int{}}
}

func (r *recordingSink) AlertReceived()                    { r.received++ }
func (r *recordingSink) OrderSent(mode string)             { r.sent[mode]++ }
func (r *recordingSink) OrderFilled()                      { r.filled++ }
func (r *recordingSink) RiskBlocked(reason string)         { r.blocked[reason]++ }
func (r *recordingSink) ObserveTradeLatency(time.Duration) { r.observed++ }

type fixedMarket struct {
	price decimal.Decimal
	err   error
}

func (f fixedMarket) GetMidPrice(context.Context, string, *decimal.Decimal) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakeBroker struct {
	resp   coinbase.OrderResponse
	err    error
	reqs   []coinbase.PlaceOrderRequest
	onCall func()
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req coinbase.PlaceOrderRequest) (coinbase.OrderResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.onCall != nil {
		f.onCall()
	}
	return f.resp, f.err
}

type fixture struct {
	svc   *ExecutionService
	store *gormrepository.Store
	sink  *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dbtest.Store(t)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	manager := &risk.Manager{
		Limits: risk.Limits{
			MaxPosPct:       dec("0.25"),
			MaxDailyRiskPct: dec("0.5"),
			MaxSlippagePct:  dec("0.1"),
		},
		Equity: risk.StaticEquity(dec("100000")),
		Repo:   store,
		Now:    func() time.Time { return now },
	}
	sink := newRecordingSink()
	svc := &ExecutionService{
		Repo:     store,
		Risk:     manager,
		Throttle: throttle.New(nil, nil),
		Market:   &marketdata.Service{Offline: true},
		Metrics:  sink,
		Flags:    &SystemSettingsService{Repo: store},
		Config: config.TradingConfig{
			Mode:             config.ModePaper,
			OrderSlippagePct: 0.1,
			ThrottleWindow:   30 * time.Second,
		},
		Now: func() time.Time { return now },
	}
	return &fixture{svc: svc, store: store, sink: sink}
}

func (f *fixture) alert(t *testing.T, symbol, side, price string) uuid.UUID {
	t.Helper()
	item := &models.Alert{ID: uuid.New(), Symbol: symbol, Side: side, Price: dec(price)}
	created, err := f.store.InsertAlert(context.Background(), item)
	require.NoError(t, err)
	require.True(t, created)
	return item.ID
}

func (f *fixture) events(t *testing.T, alertID uuid.UUID) []models.RiskEvent {
	t.Helper()
	items, err := f.store.ListRiskEvents(context.Background(), repository.ListRiskEventsParams{AlertID: &alertID})
	require.NoError(t, err)
	return items
}

func (f *fixture) dailyUsed(t *testing.T) decimal.Decimal {
	t.Helper()
	usage, err := f.store.GetDailyRiskUsage(context.Background(), "2026-03-04")
	require.NoError(t, err)
	if usage == nil {
		return decimal.Zero
	}
	return usage.NotionalUsed
}

func eventDetails(t *testing.T, ev models.RiskEvent) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ev.Details, &out))
	return out
}

func TestExecute_PaperFillEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.alert(t, "BTC-USD", "BUY", "20000")

	require.NoError(t, f.svc.Execute(ctx, id))

	order, err := f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, models.OrderStatusFilled, order.Status)
	require.Equal(t, models.OrderModePaper, order.Mode)
	require.Equal(t, models.SideBuy, order.Side)
	require.True(t, order.Qty.Equal(dec("1.25")), "qty=%s", order.Qty)
	require.True(t, order.LimitPrice.Equal(dec("22000")), "limit=%s", order.LimitPrice)

	fills, err := f.store.ListFillsBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.True(t, fills[0].Price.Equal(dec("20000")))
	require.True(t, fills[0].Fee.IsZero())

	pos, err := f.store.GetPosition(ctx, "BTC-USD")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.True(t, pos.Qty.IsPositive())
	require.True(t, pos.AvgPrice.Equal(dec("20000")))

	evs := f.events(t, id)
	require.Len(t, evs, 1)
	require.Equal(t, models.RiskEventPaperFill, evs[0].Type)
	require.Equal(t, "fallback_fixed_fraction", eventDetails(t, evs[0])["sizing"])

	require.Equal(t, 1, f.sink.sent[models.OrderModePaper])
	require.Equal(t, 1, f.sink.filled)
	require.Equal(t, 1, f.sink.observed)
}

func TestExecute_RedeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.alert(t, "BTC-USD", "buy", "20000")

	require.NoError(t, f.svc.Execute(ctx, id))
	require.NoError(t, f.svc.Execute(ctx, id))

	total, err := f.store.CountOrders(ctx, repository.ListOrdersParams{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	fills, err := f.store.ListFillsBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, fills, 1)
	pos, err := f.store.GetPosition(ctx, "BTC-USD")
	require.NoError(t, err)
	require.True(t, pos.Qty.Equal(dec("1.25")))
	require.Empty(t, f.sink.blocked)
}

func TestExecute_BlockedBranches(t *testing.T) {
	cases := []struct {
		name   string
		side   string
		setup  func(t *testing.T, f *fixture)
		reason string
	}{
		{name: "invalid side", side: "hold", reason: BlockInvalidSide},
		{name: "halted", side: "buy", reason: BlockHalted, setup: func(t *testing.T, f *fixture) {
			require.NoError(t, f.svc.Flags.SetEnabled(context.Background(), FeatureExecution, false))
		}},
		{name: "slippage", side: "buy", reason: risk.ReasonSlippage, setup: func(_ *testing.T, f *fixture) {
			f.svc.Market = fixedMarket{price: dec("30000")}
		}},
		{name: "zero qty", side: "sell", reason: BlockZeroQty, setup: func(_ *testing.T, f *fixture) {
			f.svc.Market = fixedMarket{price: decimal.Zero}
		}},
		{name: "position limit", side: "buy", reason: risk.ReasonPositionLimit, setup: func(t *testing.T, f *fixture) {
			ctx := context.Background()
			require.NoError(t, f.store.EnsurePosition(ctx, "BTC-USD"))
			require.NoError(t, f.store.SavePositionTx(ctx, nil, &models.Position{Symbol: "BTC-USD", Qty: dec("1"), AvgPrice: dec("20000")}))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(t, f)
			}
			id := f.alert(t, "BTC-USD", tc.side, "20000")
			require.NoError(t, f.svc.Execute(context.Background(), id))

			evs := f.events(t, id)
			require.Len(t, evs, 1)
			require.Equal(t, models.RiskEventBlocked, evs[0].Type)
			details := eventDetails(t, evs[0])
			require.Equal(t, tc.reason, details["reason"])
			require.Equal(t, id.String(), details["alert_id"])
			require.Equal(t, 1, f.sink.blocked[tc.reason])

			order, err := f.store.GetOrderByAlertID(context.Background(), id)
			require.NoError(t, err)
			require.Nil(t, order)
		})
	}
}

func TestExecute_ThrottleSecondAlertSameSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.alert(t, "BTC-USD", "buy", "20000")
	second := f.alert(t, "BTC-USD", "sell", "20000")

	require.NoError(t, f.svc.Execute(ctx, first))
	require.NoError(t, f.svc.Execute(ctx, second))

	evs := f.events(t, second)
	require.Len(t, evs, 1)
	require.Equal(t, BlockThrottled, eventDetails(t, evs[0])["reason"])
}

func TestExecute_FlatRecordsEventOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.alert(t, "BTC-USD", "flat", "20000")

	require.NoError(t, f.svc.Execute(ctx, id))
	evs := f.events(t, id)
	require.Len(t, evs, 1)
	require.Equal(t, models.RiskEventFlat, evs[0].Type)
	total, err := f.store.CountOrders(ctx, repository.ListOrdersParams{})
	require.NoError(t, err)
	require.Zero(t, total)

	// A redelivered flat alert is already terminal.
	require.NoError(t, f.svc.Execute(ctx, id))
	require.Len(t, f.events(t, id), 1)
}

func TestExecute_MissingAlert(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	require.NoError(t, f.svc.Execute(context.Background(), id))
	require.Empty(t, f.events(t, id))
}

func TestExecute_MarketFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.svc.Market = fixedMarket{err: exception.ErrTransientUpstream}
	id := f.alert(t, "BTC-USD", "buy", "20000")

	err := f.svc.Execute(context.Background(), id)
	require.Error(t, err)
	require.True(t, exception.Retryable(err))
	require.Empty(t, f.events(t, id))
}

func TestExecute_LiveSubmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broker := &fakeBroker{resp: coinbase.OrderResponse{
		Success: true,
		OrderID: "cb-123",
		Raw:     json.RawMessage(`{"success":true,"order_id":"cb-123"}`),
	}}
	f.svc.Broker = broker
	f.svc.Config.Mode = config.ModeLive
	id := f.alert(t, "BTC-USD", "sell", "20000")

	require.NoError(t, f.svc.Execute(ctx, id))

	order, err := f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, models.OrderStatusSubmitted, order.Status)
	require.Equal(t, models.OrderModeLive, order.Mode)
	require.Equal(t, "cb-123", order.BrokerOrderID)

	require.Len(t, broker.reqs, 1)
	require.Equal(t, order.ID.String(), broker.reqs[0].ClientOrderID)
	require.True(t, broker.reqs[0].LimitPrice.Equal(dec("18000")), "limit=%s", broker.reqs[0].LimitPrice)

	evs := f.events(t, id)
	require.Len(t, evs, 1)
	require.Equal(t, models.RiskEventLiveOrder, evs[0].Type)
	require.Equal(t, "cb-123", eventDetails(t, evs[0])["broker_order_id"])
	require.Equal(t, 1, f.sink.sent[models.OrderModeLive])
	require.Zero(t, f.sink.filled)

	fills, err := f.store.ListFillsBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Empty(t, fills)
}

func TestExecute_LiveBrokerFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broker := &fakeBroker{err: errors.Join(errors.New("429 from exchange"), exception.ErrRateLimited)}
	f.svc.Broker = broker
	f.svc.Config.Mode = config.ModeLive
	id := f.alert(t, "BTC-USD", "buy", "20000")

	err := f.svc.Execute(ctx, id)
	require.Error(t, err)
	require.True(t, exception.Retryable(err))

	order, err := f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, order)
	require.Empty(t, f.events(t, id))
	require.True(t, f.dailyUsed(t).IsZero(), "used=%s", f.dailyUsed(t))

	// The retry places the order again once the exchange recovers.
	broker.err = nil
	broker.resp = coinbase.OrderResponse{Success: true, OrderID: "cb-9"}
	require.NoError(t, f.svc.Execute(ctx, id))
	require.Len(t, broker.reqs, 2)
	order, err = f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, "cb-9", order.BrokerOrderID)
}

func TestExecute_LiveBrokerRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Broker = &fakeBroker{resp: coinbase.OrderResponse{Success: false, FailureReason: "INSUFFICIENT_FUND"}}
	f.svc.Config.Mode = config.ModeLive
	id := f.alert(t, "BTC-USD", "buy", "20000")

	require.NoError(t, f.svc.Execute(ctx, id))
	order, err := f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, order)
	evs := f.events(t, id)
	require.Len(t, evs, 1)
	details := eventDetails(t, evs[0])
	require.Equal(t, BlockBrokerRejected, details["reason"])
	require.Equal(t, "INSUFFICIENT_FUND", details["failure_reason"])
	require.True(t, f.dailyUsed(t).IsZero(), "used=%s", f.dailyUsed(t))
}

func TestExecute_LiveRateLimitRetriesKeepDailyBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broker := &fakeBroker{err: exception.ErrRateLimited}
	f.svc.Broker = broker
	f.svc.Config.Mode = config.ModeLive
	id := f.alert(t, "BTC-USD", "buy", "20000")

	// Each attempt books 25000 of a 50000 budget; two unreturned bookings
	// would block the third attempt.
	for i := 0; i < 2; i++ {
		err := f.svc.Execute(ctx, id)
		require.Error(t, err)
		require.True(t, exception.Retryable(err))
		require.True(t, f.dailyUsed(t).IsZero(), "attempt %d used=%s", i+1, f.dailyUsed(t))
	}

	broker.err = nil
	broker.resp = coinbase.OrderResponse{Success: true, OrderID: "cb-3"}
	require.NoError(t, f.svc.Execute(ctx, id))

	order, err := f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, "cb-3", order.BrokerOrderID)
	require.True(t, f.dailyUsed(t).Equal(dec("25000")), "used=%s", f.dailyUsed(t))
	require.Empty(t, f.sink.blocked)

	evs := f.events(t, id)
	require.Len(t, evs, 1)
	require.Equal(t, models.RiskEventLiveOrder, evs[0].Type)
}

func TestExecute_LiveBrokerHTTPErrorIsBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broker := &fakeBroker{err: &coinbase.APIError{Status: 400, Body: `{"error":"INVALID_ARGUMENT"}`}}
	f.svc.Broker = broker
	f.svc.Config.Mode = config.ModeLive
	id := f.alert(t, "BTC-USD", "buy", "20000")

	require.NoError(t, f.svc.Execute(ctx, id))

	order, err := f.store.GetOrderByAlertID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, order)
	require.True(t, f.dailyUsed(t).IsZero(), "used=%s", f.dailyUsed(t))
	require.Equal(t, 1, f.sink.blocked[BlockBrokerError])

	evs := f.events(t, id)
	require.Len(t, evs, 1)
	require.Equal(t, models.RiskEventBlocked, evs[0].Type)
	details := eventDetails(t, evs[0])
	require.Equal(t, BlockBrokerError, details["reason"])
	require.Contains(t, details["error"], "INVALID_ARGUMENT")

	// Terminal: a redelivery does not call the broker again.
	require.NoError(t, f.svc.Execute(ctx, id))
	require.Len(t, broker.reqs, 1)
}

func TestExecute_LiveCancelledMidCallStaysRetryable(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.Broker = &fakeBroker{err: context.Canceled, onCall: cancel}
	f.svc.Config.Mode = config.ModeLive
	id := f.alert(t, "BTC-USD", "buy", "20000")

	require.ErrorIs(t, f.svc.Execute(ctx, id), context.Canceled)
	require.Empty(t, f.events(t, id))
	require.Empty(t, f.sink.blocked)
	require.True(t, f.dailyUsed(t).IsZero(), "used=%s", f.dailyUsed(t))
	order, err := f.store.GetOrderByAlertID(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, order)
}

// staleOrderLookup misses orders the way a worker does when another worker
// commits between its lookup and its insert.
type staleOrderLookup struct {
	*gormrepository.Store
}

func (staleOrderLookup) GetOrderByAlertID(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func TestExecute_PaperConflictGivesBackBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.alert(t, "BTC-USD", "buy", "20000")
	ok, err := f.store.CreateOrderTx(ctx, nil, &models.Order{
		AlertID: id, Symbol: "BTC-USD", Side: models.SideBuy, Qty: dec("1"), LimitPrice: dec("20000"),
		Status: models.OrderStatusFilled, Mode: models.OrderModePaper,
	})
	require.NoError(t, err)
	require.True(t, ok)
	f.svc.Repo = staleOrderLookup{f.store}

	require.NoError(t, f.svc.Execute(ctx, id))
	require.True(t, f.dailyUsed(t).IsZero(), "used=%s", f.dailyUsed(t))
	fills, err := f.store.ListFillsBySymbol(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Empty(t, fills)
	require.Zero(t, f.sink.filled)
}

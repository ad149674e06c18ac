package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradingbot/internal/models"
)

// AlertRepository is the read/write surface used by ingress and the
// execution pipeline to look alerts up by id.
type AlertRepository interface {
	// InsertAlert returns created=false when an alert with the same id exists.
	InsertAlert(ctx context.Context, item *models.Alert) (bool, error)
	GetAlertByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
}

type Repository interface {
	AlertRepository

	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// orders
	CreateOrderTx(ctx context.Context, tx *gorm.DB, item *models.Order) (bool, error)
	GetOrderByAlertID(ctx context.Context, alertID uuid.UUID) (*models.Order, error)
	MarkOrderSubmitted(ctx context.Context, id uuid.UUID, brokerOrderID string) error
	DeleteOrderTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error)
	CountOrders(ctx context.Context, params ListOrdersParams) (int64, error)

	// fills
	InsertFillTx(ctx context.Context, tx *gorm.DB, item *models.Fill) error
	ListFillsBySymbol(ctx context.Context, symbol string) ([]models.Fill, error)
	ListFillsWithSideBetween(ctx context.Context, from, to time.Time) ([]models.FillWithSide, error)

	// positions
	EnsurePosition(ctx context.Context, symbol string) error
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	LockPositionTx(ctx context.Context, tx *gorm.DB, symbol string) (*models.Position, error)
	SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)

	// daily risk
	GetDailyRiskUsage(ctx context.Context, tradeDay string) (*models.DailyRiskUsage, error)
	ReserveDailyNotional(ctx context.Context, tradeDay string, amount, limit decimal.Decimal) (DailyReservation, error)
	ReleaseDailyNotionalTx(ctx context.Context, tx *gorm.DB, tradeDay string, amount decimal.Decimal) error

	// risk events
	InsertRiskEvent(ctx context.Context, item *models.RiskEvent) error
	HasTerminalRiskEvent(ctx context.Context, alertID uuid.UUID) (bool, error)
	ListRiskEvents(ctx context.Context, params ListRiskEventsParams) ([]models.RiskEvent, error)
	CountRiskEvents(ctx context.Context, params ListRiskEventsParams) (int64, error)

	// pnl snapshots
	UpsertPnLSnapshots(ctx context.Context, items []models.PnLSnapshot) error
	ListPnLSnapshots(ctx context.Context, tradeDay string) ([]models.PnLSnapshot, error)

	// system settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// DailyReservation is the outcome of an atomic check-and-increment of the
// day's notional budget. Used is the stored total after the call.
type DailyReservation struct {
	OK   bool
	Used decimal.Decimal
}

type ListOrdersParams struct {
	Limit   int
	Offset  int
	Symbol  *string
	Status  *string
	Mode    *string
	OrderBy string
	Asc     *bool
}

type ListPositionsParams struct {
	Limit    int
	Offset   int
	OpenOnly bool
	OrderBy  string
	Asc      *bool
}

type ListRiskEventsParams struct {
	Limit   int
	Offset  int
	Type    *string
	AlertID *uuid.UUID
	Since   *time.Time
	OrderBy string
	Asc     *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PnLSnapshot persists one row of the daily report.
type PnLSnapshot struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TradeDay string `gorm:"type:varchar(10);not null;uniqueIndex:idx_pnl_day_symbol" json:"trade_day"`
	Symbol   string `gorm:"type:varchar(50);not null;uniqueIndex:idx_pnl_day_symbol" json:"symbol"`

	// Explicit column names; default naming turns "PnL" into "pn_l".
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(24,2);not null;default:0" json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(24,2);not null;default:0" json:"unrealized_pnl"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PnLSnapshot) TableName() string {
	return "pnl_snapshots"
}

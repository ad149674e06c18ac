package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyRiskUsage accumulates notional committed per UTC trade day.
type DailyRiskUsage struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TradeDay     string          `gorm:"type:varchar(10);not null;uniqueIndex" json:"trade_day"`
	NotionalUsed decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"notional_used"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DailyRiskUsage) TableName() string {
	return "daily_risk"
}

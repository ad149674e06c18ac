package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the signed net holding per symbol.
type Position struct {
	Symbol    string          `gorm:"type:varchar(50);primaryKey" json:"symbol"`
	Qty       decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0" json:"qty"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(18,8);not null;default:0" json:"avg_price"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Fill struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Symbol  string    `gorm:"type:varchar(50);not null;index" json:"symbol"`

	Qty   decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"qty"`
	Price decimal.Decimal `gorm:"type:numeric(18,8);not null" json:"price"`
	Fee   decimal.Decimal `gorm:"type:numeric(18,8);not null;default:0" json:"fee"`

	FilledAt time.Time `gorm:"not null;index" json:"filled_at"`
}

func (Fill) TableName() string {
	return "fills"
}

// FillWithSide joins a fill with the side of its order for PnL netting.
type FillWithSide struct {
	Fill
	Side string `json:"side"`
}

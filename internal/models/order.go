package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusSubmitted = "submitted"

	OrderModePaper = "paper"
	OrderModeLive  = "live"
)

// Order is the single execution decision for an alert. AlertID is unique so
// redelivered alerts cannot produce a second order.
type Order struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AlertID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"alert_id"`
	Symbol  string    `gorm:"type:varchar(50);not null;index" json:"symbol"`
	Side    string    `gorm:"type:varchar(10);not null" json:"side"`

	Qty        decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"qty"`
	LimitPrice decimal.Decimal `gorm:"type:numeric(18,8);not null" json:"limit_price"`

	Status        string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Mode          string `gorm:"type:varchar(10);not null" json:"mode"`
	Sizing        string `gorm:"type:varchar(40)" json:"sizing"`
	BrokerOrderID string `gorm:"type:varchar(100);index" json:"broker_order_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

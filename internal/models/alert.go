package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
	SideFlat = "flat"
)

// Alert is an inbound trading signal. It is written once on ingress and
// never mutated; the sender-supplied ID is the idempotency key.
type Alert struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Symbol     string          `gorm:"type:varchar(50);not null;index" json:"symbol"`
	Side       string          `gorm:"type:varchar(10);not null" json:"side"`
	Price      decimal.Decimal `gorm:"type:numeric(18,8);not null" json:"price"`
	Confidence *float64        `json:"confidence,omitempty"`
	Timeframe  *string         `gorm:"type:varchar(20)" json:"timeframe,omitempty"`
	ReceivedAt time.Time       `gorm:"not null;index" json:"received_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

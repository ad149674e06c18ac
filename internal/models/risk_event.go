package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RiskEventBlocked   = "blocked"
	RiskEventPaperFill = "paper_fill"
	RiskEventLiveOrder = "live_order"
	RiskEventFlat      = "flat"
)

// RiskEvent is the append-only audit trail of pipeline decisions.
type RiskEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Type      string         `gorm:"type:varchar(50);not null;index" json:"type"`
	AlertID   *uuid.UUID     `gorm:"type:uuid;index" json:"alert_id,omitempty"`
	Details   datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (RiskEvent) TableName() string {
	return "risk_events"
}

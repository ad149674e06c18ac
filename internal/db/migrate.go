package db

import (
	"tradingbot/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Alert{},
		&models.Order{},
		&models.Fill{},
		&models.Position{},
		&models.DailyRiskUsage{},
		&models.RiskEvent{},
		&models.PnLSnapshot{},
		&models.SystemSetting{},
	)
}

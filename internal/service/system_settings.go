package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradingbot/internal/models"
	"tradingbot/internal/repository"
)

const (
	// FeatureExecution is the operator halt switch. Off blocks every alert
	// with execution_halted.
	FeatureExecution   = "feature.execution"
	FeaturePnLSnapshot = "feature.pnl_snapshot"
	FeatureDeadLetters = "feature.dead_letter_monitor"
)

type featureSwitch struct {
	def         bool
	description string
}

var featureSwitches = map[string]featureSwitch{
	FeatureExecution:   {true, "execute queued alerts; off halts trading"},
	FeaturePnLSnapshot: {true, "store the daily pnl snapshot from cron"},
	FeatureDeadLetters: {true, "export the dead-letter queue length"},
}

// DefaultFeatureSwitches returns every known switch with its default.
func DefaultFeatureSwitches() map[string]bool {
	out := make(map[string]bool, len(featureSwitches))
	for key, sw := range featureSwitches {
		out[key] = sw.def
	}
	return out
}

// SystemSettingsService stores feature switches as JSON booleans in
// system_settings.
type SystemSettingsService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func switchRow(key string, enabled bool, now time.Time) *models.SystemSetting {
	raw, _ := json.Marshal(enabled)
	desc := featureSwitches[key].description
	if desc == "" {
		desc = "feature switch"
	}
	return &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// EnsureDefaultSwitches seeds missing switches. Stored values are never
// overwritten so a halted pipeline stays halted across restarts.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	keys := make([]string, 0, len(featureSwitches))
	for key := range featureSwitches {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	for _, key := range keys {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := s.Repo.UpsertSystemSetting(ctx, switchRow(key, featureSwitches[key].def, now)); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled reads key, answering fallback when it is unset or unreadable.
func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("read feature switch failed", zap.String("key", key), zap.Error(err))
		}
		return fallback
	}
	if item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := s.Repo.UpsertSystemSetting(ctx, switchRow(key, enabled, time.Now().UTC())); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("feature switch set", zap.String("key", key), zap.Bool("enabled", enabled))
	}
	return nil
}

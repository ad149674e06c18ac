package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingbot/internal/models"
	"tradingbot/internal/repository"
)

var terminalRiskEventTypes = []string{
	models.RiskEventBlocked,
	models.RiskEventPaperFill,
	models.RiskEventLiveOrder,
	models.RiskEventFlat,
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- alerts -----------------------------------------------------------------

func (s *Store) InsertAlert(ctx context.Context, item *models.Alert) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	if item.ReceivedAt.IsZero() {
		item.ReceivedAt = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetAlertByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	if s == nil || s.db == nil || id == uuid.Nil {
		return nil, nil
	}
	var item models.Alert
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- orders -----------------------------------------------------------------

// CreateOrderTx inserts the order unless one already exists for its alert.
func (s *Store) CreateOrderTx(ctx context.Context, tx *gorm.DB, item *models.Order) (bool, error) {
	if item == nil {
		return false, nil
	}
	db := s.pick(tx)
	if db == nil {
		return false, nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetOrderByAlertID(ctx context.Context, alertID uuid.UUID) (*models.Order, error) {
	if s == nil || s.db == nil || alertID == uuid.Nil {
		return nil, nil
	}
	var item models.Order
	err := s.db.WithContext(ctx).Where("alert_id = ?", alertID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) MarkOrderSubmitted(ctx context.Context, id uuid.UUID, brokerOrderID string) error {
	if s == nil || s.db == nil || id == uuid.Nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.OrderStatusSubmitted,
			"broker_order_id": strings.TrimSpace(brokerOrderID),
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (s *Store) DeleteOrderTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	db := s.pick(tx)
	if db == nil || id == uuid.Nil {
		return nil
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{}).Error
}

func (s *Store) ListOrders(ctx context.Context, params repository.ListOrdersParams) ([]models.Order, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrderFilters(s.db.WithContext(ctx).Model(&models.Order{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Order
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOrders(ctx context.Context, params repository.ListOrdersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyOrderFilters(s.db.WithContext(ctx).Model(&models.Order{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyOrderFilters(query *gorm.DB, params repository.ListOrdersParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Mode != nil && strings.TrimSpace(*params.Mode) != "" {
		query = query.Where("mode = ?", strings.TrimSpace(*params.Mode))
	}
	return query
}

// --- fills ------------------------------------------------------------------

func (s *Store) InsertFillTx(ctx context.Context, tx *gorm.DB, item *models.Fill) error {
	if item == nil {
		return nil
	}
	db := s.pick(tx)
	if db == nil {
		return nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.FilledAt.IsZero() {
		item.FilledAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListFillsBySymbol(ctx context.Context, symbol string) ([]models.Fill, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	var items []models.Fill
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Order("filled_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListFillsWithSideBetween returns fills in [from, to) joined with their
// order side, oldest first.
func (s *Store) ListFillsWithSideBetween(ctx context.Context, from, to time.Time) ([]models.FillWithSide, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.FillWithSide
	err := s.db.WithContext(ctx).
		Table("fills").
		Select("fills.*, orders.side AS side").
		Joins("JOIN orders ON orders.id = fills.order_id").
		Where("fills.filled_at >= ? AND fills.filled_at < ?", from.UTC(), to.UTC()).
		Order("fills.filled_at asc").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- positions --------------------------------------------------------------

func (s *Store) EnsurePosition(ctx context.Context, symbol string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return ensurePosition(ctx, s.db, symbol)
}

func ensurePosition(ctx context.Context, db *gorm.DB, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil
	}
	seed := &models.Position{
		Symbol:    symbol,
		Qty:       decimal.Zero,
		AvgPrice:  decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(seed).Error
}

func (s *Store) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LockPositionTx creates the position row if missing and reads it with a
// row lock held until tx ends.
func (s *Store) LockPositionTx(ctx context.Context, tx *gorm.DB, symbol string) (*models.Position, error) {
	db := s.pick(tx)
	if db == nil {
		return nil, nil
	}
	symbol = strings.TrimSpace(symbol)
	if err := ensurePosition(ctx, db, symbol); err != nil {
		return nil, err
	}
	var item models.Position
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("symbol = ?", symbol).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SavePositionTx(ctx context.Context, tx *gorm.DB, item *models.Position) error {
	if item == nil {
		return nil
	}
	db := s.pick(tx)
	if db == nil {
		return nil
	}
	return db.WithContext(ctx).Model(&models.Position{}).
		Where("symbol = ?", item.Symbol).
		Updates(map[string]any{
			"qty":        item.Qty,
			"avg_price":  item.AvgPrice,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{})
	if params.OpenOnly {
		query = query.Where("qty <> 0")
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "symbol")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{})
	if params.OpenOnly {
		query = query.Where("qty <> 0")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- daily risk -------------------------------------------------------------

func (s *Store) GetDailyRiskUsage(ctx context.Context, tradeDay string) (*models.DailyRiskUsage, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.DailyRiskUsage
	err := s.db.WithContext(ctx).Where("trade_day = ?", strings.TrimSpace(tradeDay)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ReserveDailyNotional adds amount (rounded to cents) to the trade day's usage
// only when the new total stays within limit. The day row is locked for the
// duration of the check so concurrent reservations serialize.
func (s *Store) ReserveDailyNotional(ctx context.Context, tradeDay string, amount, limit decimal.Decimal) (repository.DailyReservation, error) {
	var out repository.DailyReservation
	if s == nil || s.db == nil {
		return out, nil
	}
	tradeDay = strings.TrimSpace(tradeDay)
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		seed := &models.DailyRiskUsage{TradeDay: tradeDay, NotionalUsed: decimal.Zero, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_day"}},
			DoNothing: true,
		}).Create(seed).Error; err != nil {
			return err
		}
		var row models.DailyRiskUsage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("trade_day = ?", tradeDay).
			First(&row).Error; err != nil {
			return err
		}
		out.Used = row.NotionalUsed
		next := row.NotionalUsed.Add(amount.Round(2))
		if next.GreaterThan(limit) {
			return nil
		}
		if err := tx.Model(&models.DailyRiskUsage{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{"notional_used": next, "updated_at": now}).Error; err != nil {
			return err
		}
		out.OK = true
		out.Used = next
		return nil
	})
	if err != nil {
		return repository.DailyReservation{}, err
	}
	return out, nil
}

// ReleaseDailyNotionalTx gives back an amount booked by ReserveDailyNotional.
// Usage never drops below zero.
func (s *Store) ReleaseDailyNotionalTx(ctx context.Context, tx *gorm.DB, tradeDay string, amount decimal.Decimal) error {
	db := s.pick(tx)
	if db == nil || !amount.IsPositive() {
		return nil
	}
	var row models.DailyRiskUsage
	err := db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_day = ?", strings.TrimSpace(tradeDay)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	next := row.NotionalUsed.Sub(amount.Round(2))
	if next.IsNegative() {
		next = decimal.Zero
	}
	return db.WithContext(ctx).Model(&models.DailyRiskUsage{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{"notional_used": next, "updated_at": time.Now().UTC()}).Error
}

// --- risk events ------------------------------------------------------------

func (s *Store) InsertRiskEvent(ctx context.Context, item *models.RiskEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) HasTerminalRiskEvent(ctx context.Context, alertID uuid.UUID) (bool, error) {
	if s == nil || s.db == nil || alertID == uuid.Nil {
		return false, nil
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.RiskEvent{}).
		Where("alert_id = ?", alertID).
		Where("type IN ?", terminalRiskEventTypes).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *Store) ListRiskEvents(ctx context.Context, params repository.ListRiskEventsParams) ([]models.RiskEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyRiskEventFilters(s.db.WithContext(ctx).Model(&models.RiskEvent{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.RiskEvent
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRiskEvents(ctx context.Context, params repository.ListRiskEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyRiskEventFilters(s.db.WithContext(ctx).Model(&models.RiskEvent{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyRiskEventFilters(query *gorm.DB, params repository.ListRiskEventsParams) *gorm.DB {
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	if params.AlertID != nil && *params.AlertID != uuid.Nil {
		query = query.Where("alert_id = ?", *params.AlertID)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}
	return query
}

// --- pnl snapshots ----------------------------------------------------------

func (s *Store) UpsertPnLSnapshots(ctx context.Context, items []models.PnLSnapshot) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trade_day"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"realized_pnl",
			"unrealized_pnl",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListPnLSnapshots(ctx context.Context, tradeDay string) ([]models.PnLSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PnLSnapshot
	err := s.db.WithContext(ctx).
		Where("trade_day = ?", strings.TrimSpace(tradeDay)).
		Order("symbol asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

// pick prefers the caller's transaction handle over the store's pool.
func (s *Store) pick(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	if s == nil {
		return nil
	}
	return s.db
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

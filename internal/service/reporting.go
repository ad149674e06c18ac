package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradingbot/internal/models"
	"tradingbot/internal/repository"
	"tradingbot/internal/risk"
)

type PnLRow struct {
	Symbol        string          `json:"symbol"`
	Date          string          `json:"date"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

type ReportingService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Flags  *SystemSettingsService
}

// DailyPnL nets the UTC day's fills per symbol (sells add, buys subtract) and
// marks open positions to the day's last fill price, or to their average
// when the symbol did not trade. Rows are sorted by symbol.
func (s *ReportingService) DailyPnL(ctx context.Context, day time.Time) ([]PnLRow, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	date := from.Format(risk.TradeDayLayout)

	fills, err := s.Repo.ListFillsWithSideBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	realized := map[string]decimal.Decimal{}
	lastPrice := map[string]decimal.Decimal{}
	for _, f := range fills {
		dir := decimal.NewFromInt(-1)
		if f.Side == models.SideSell {
			dir = decimal.NewFromInt(1)
		}
		realized[f.Symbol] = realized[f.Symbol].Add(dir.Mul(f.Qty).Mul(f.Price))
		lastPrice[f.Symbol] = f.Price
	}

	positions, err := s.allPositions(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]PnLRow, 0, len(positions)+len(realized))
	seen := map[string]bool{}
	for _, p := range positions {
		mark, ok := lastPrice[p.Symbol]
		if !ok {
			mark = p.AvgPrice
		}
		rows = append(rows, PnLRow{
			Symbol:        p.Symbol,
			Date:          date,
			RealizedPnL:   realized[p.Symbol].Round(2),
			UnrealizedPnL: p.Qty.Mul(mark.Sub(p.AvgPrice)).Round(2),
		})
		seen[p.Symbol] = true
	}
	for symbol, value := range realized {
		if seen[symbol] {
			continue
		}
		rows = append(rows, PnLRow{
			Symbol:        symbol,
			Date:          date,
			RealizedPnL:   value.Round(2),
			UnrealizedPnL: decimal.Zero,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows, nil
}

func (s *ReportingService) allPositions(ctx context.Context) ([]models.Position, error) {
	const page = 500
	asc := true
	var out []models.Position
	for offset := 0; ; offset += page {
		items, err := s.Repo.ListPositions(ctx, repository.ListPositionsParams{
			Limit:   page,
			Offset:  offset,
			OrderBy: "symbol",
			Asc:     &asc,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < page {
			return out, nil
		}
	}
}

// SnapshotDaily persists DailyPnL for day. It is scheduled shortly before
// UTC midnight and can be re-run; rows are upserted by (day, symbol).
func (s *ReportingService) SnapshotDaily(ctx context.Context, day time.Time) (int, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeaturePnLSnapshot, true) {
		return 0, nil
	}
	rows, err := s.DailyPnL(ctx, day)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	items := make([]models.PnLSnapshot, 0, len(rows))
	for _, r := range rows {
		items = append(items, models.PnLSnapshot{
			TradeDay:      r.Date,
			Symbol:        r.Symbol,
			RealizedPnL:   r.RealizedPnL,
			UnrealizedPnL: r.UnrealizedPnL,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if err := s.Repo.UpsertPnLSnapshots(ctx, items); err != nil {
		return 0, err
	}
	if s.Logger != nil {
		s.Logger.Info("pnl snapshot stored", zap.String("trade_day", rows[0].Date), zap.Int("rows", len(items)))
	}
	return len(items), nil
}

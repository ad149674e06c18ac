package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradingbot/internal/app"
	"tradingbot/internal/config"
	"tradingbot/internal/logger"
	"tradingbot/internal/risk"
	"tradingbot/internal/service"
)

func openApp(ctx context.Context, opts options) (*app.App, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvOnly)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// The CLI writes to stdout; keep the log quiet unless asked otherwise.
	if os.Getenv("TB_LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	log, err := logger.New(cfg.Log, zap.String("component", "tradingctl"))
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func seedDemoCmd(ctx context.Context, opts options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tradingctl seed-demo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := a.Config.Trading.BaseAssets
	for _, symbol := range symbols {
		if err := a.Store.EnsurePosition(ctx, strings.TrimSpace(symbol)); err != nil {
			return fmt.Errorf("seed %s: %w", symbol, err)
		}
	}
	fmt.Fprintln(out, "Seeded demo positions for", strings.Join(symbols, ", "))
	return nil
}

func reportCmd(ctx context.Context, opts options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tradingctl report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dayRaw := fs.String("day", "", "YYYY-MM-DD (default today, UTC)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day := time.Now().UTC()
	if v := strings.TrimSpace(*dayRaw); v != "" {
		parsed, err := time.Parse(risk.TradeDayLayout, v)
		if err != nil {
			return errors.New("--day must be YYYY-MM-DD")
		}
		day = parsed
	}

	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.Reporting.DailyPnL(ctx, day)
	if err != nil {
		return err
	}
	printReport(out, rows)
	return nil
}

func printReport(w io.Writer, rows []service.PnLRow) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s %s: realized=%s unrealized=%s\n",
			row.Date, row.Symbol, row.RealizedPnL.StringFixed(2), row.UnrealizedPnL.StringFixed(2))
	}
}

func executeCmd(ctx context.Context, opts options, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tradingctl execute", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	alertRaw := fs.String("alert", "", "alert id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	alertID, err := uuid.Parse(strings.TrimSpace(*alertRaw))
	if err != nil {
		return errors.New("--alert must be a uuid")
	}

	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Execution.Execute(ctx, alertID); err != nil {
		return fmt.Errorf("execute %s: %w", alertID, err)
	}
	order, err := a.Store.GetOrderByAlertID(ctx, alertID)
	if err != nil {
		return err
	}
	if order != nil {
		fmt.Fprintf(out, "%s %s %s %s @ %s (%s, %s)\n",
			alertID, order.Symbol, order.Side, order.Qty, order.LimitPrice, order.Mode, order.Status)
		return nil
	}
	fmt.Fprintf(out, "%s no order placed; see /api/v1/risk-events?alert_id=%s\n", alertID, alertID)
	return nil
}

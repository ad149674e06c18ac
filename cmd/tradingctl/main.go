package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

type options struct {
	ConfigPath string
	EnvOnly    bool
}

func usage(w io.Writer) {
	fmt.Fprint(w, `tradingctl [global flags] <command> [flags]

Global Flags:
  --config      config file (env: TB_CONFIG, default config/config.yaml)
  --env-only    read configuration from TB_* env vars only (env: TB_ENV_ONLY)

Commands:
  seed-demo                      create zero positions for trading.base_assets
  report [--day YYYY-MM-DD]      print the daily PnL report
  execute --alert <uuid>         run the execution pipeline for a stored alert
  mock-alerts [--count --delay --api --secret]
                                 send signed random alerts to a running server
`)
}

func main() {
	defaultPath := os.Getenv("TB_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	envOnlyRaw := os.Getenv("TB_ENV_ONLY")
	var (
		cfgPath = flag.String("config", defaultPath, "config file")
		envOnly = flag.Bool("env-only", strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1", "env vars only")
	)
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{ConfigPath: *cfgPath, EnvOnly: *envOnly}
	if err := dispatch(ctx, opts, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, opts options, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return errors.New("missing command")
	}
	switch args[0] {
	case "seed-demo":
		return seedDemoCmd(ctx, opts, args[1:], out)
	case "report":
		return reportCmd(ctx, opts, args[1:], out)
	case "execute":
		return executeCmd(ctx, opts, args[1:], out)
	case "mock-alerts":
		return mockAlertsCmd(ctx, args[1:], out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// Command expense-report prints a statement with a running balance.
//
//	expense-report -month 2025-06
//	expense-report -from 2025-06-01 -to 2025-06-15
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"expense-tracker/internal/backend"
	"expense-tracker/internal/cli"
	"expense-tracker/internal/core"
	"expense-tracker/internal/log"
	"expense-tracker/internal/report"
)

func main() {
	month := flag.String("month", "", "calendar month to report, YYYY-MM")
	from := flag.String("from", "", "first day to report, YYYY-MM-DD")
	to := flag.String("to", "", "last day to report, YYYY-MM-DD")
	flag.Parse()

	rng, err := parseRange(*month, *from, *to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	boot := cli.SetupLogger(nil, log.ComponentReport)
	cfg := cli.LoadAndValidateConfig(boot, nil)
	// Logs go to stderr so the table can be piped.
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentReport,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// Read-only: no events, no idempotency.
	backendCfg.AMQPURL = ""
	backendCfg.RedisAddr = ""

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}

	st, err := res.Service.Statement(ctx, rng)
	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup error", log.FieldError, cerr)
	}
	if err != nil {
		logger.Error("Failed to build statement", log.FieldError, err)
		os.Exit(1)
	}
	report.WriteStatement(os.Stdout, st)
}

// parseRange mirrors the statement endpoint: month wins, otherwise optional day bounds.
func parseRange(month, from, to string) (core.DateRange, error) {
	if month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid -month %q, expected YYYY-MM", month)
		}
		return core.MonthRange(t.Year(), t.Month()), nil
	}

	var rng core.DateRange
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid -from %q, expected YYYY-MM-DD", from)
		}
		rng.From = &t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid -to %q, expected YYYY-MM-DD", to)
		}
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		rng.To = &end
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return core.DateRange{}, fmt.Errorf("-to must not be before -from")
	}
	return rng, nil
}

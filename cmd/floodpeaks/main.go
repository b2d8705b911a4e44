// Command floodpeaks maintains a durable cache of flood peak events
// extracted from a water-level gauge feed.
//
// Usage:
//
//	floodpeaks update
//	    One incremental pass: fetch from just behind the stored watermark
//	    up to now, extract peaks, merge, persist.
//
//	floodpeaks backfill -year 2023
//	    One pass over an explicit UTC calendar year.
//
//	floodpeaks verify
//	    Check the invariants of the persisted cache without touching the feed.
//
// Configuration comes from FLOODPEAKS_* environment variables and the
// optional YAML file named by FLOODPEAKS_CONFIG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	filesource "github.com/hondrospj/bivalve-flooding-finaltest/internal/adapter/file"
	httpadapter "github.com/hondrospj/bivalve-flooding-finaltest/internal/adapter/http"
	kafkaadapter "github.com/hondrospj/bivalve-flooding-finaltest/internal/adapter/kafka"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/adapter/usgs"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/config"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/domain"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/observability"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/pipeline"
	"github.com/hondrospj/bivalve-flooding-finaltest/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	var runErr error
	switch os.Args[1] {
	case "update":
		runErr = runPass(cfg, logger, func(ctx context.Context, o *pipeline.Orchestrator) (pipeline.Result, error) {
			return o.RunIncremental(ctx)
		})
	case "backfill":
		fs := flag.NewFlagSet("backfill", flag.ExitOnError)
		year := fs.Int("year", 0, "UTC calendar year to backfill")
		fs.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		runErr = runPass(cfg, logger, func(ctx context.Context, o *pipeline.Orchestrator) (pipeline.Result, error) {
			return o.RunBackfill(ctx, *year)
		})
	case "verify":
		runErr = runVerify(cfg, logger)
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: floodpeaks <update | backfill -year YYYY | verify>")
}

// runPass wires the pipeline from config and executes one update pass.
func runPass(cfg *config.Config, logger *slog.Logger, pass func(context.Context, *pipeline.Orchestrator) (pipeline.Result, error)) error {
	metrics := observability.NewMetrics()

	extractor, err := domain.NewExtractor(cfg.Extract.Thresholds, cfg.Extract.MinSeparation, cfg.Extract.Precision)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path, cfg.Extract.Thresholds)
	if err != nil {
		return err
	}

	var source pipeline.SeriesSource
	switch cfg.Source.Kind {
	case "file":
		source = filesource.NewSource(cfg.Source.Path, cfg.Source.Format)
	default:
		source = usgs.NewClient(cfg.Source.BaseURL, cfg.Source.Site, cfg.Source.Parameter,
			cfg.Source.Format, cfg.Source.Timeout, logger)
	}

	// Notification sink is feature-flagged; the cache never depends on it.
	var sink pipeline.EventSink
	if cfg.Kafka.Enabled {
		writer := kafkaadapter.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Source.Site, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("kafka notification sink enabled", "topic", cfg.Kafka.Topic)
	}

	orch, err := pipeline.New(source, extractor, st, sink, logger, metrics,
		cfg.Update.OverlapBuffer, cfg.Update.BootstrapWindow)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTP.Enabled {
		srv := httpadapter.NewServer(cfg.HTTP.Addr, orch, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	res, err := pass(ctx, orch)
	if err != nil {
		return err
	}
	if res.NoOp {
		logger.Info("nothing to do", "mode", res.Mode)
	}
	return nil
}

// runVerify checks the persisted cache against its invariants: events sorted
// and unique, tiers consistent with the recorded thresholds, watermark not
// behind the newest event.
func runVerify(cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(cfg.Store.Path, cfg.Extract.Thresholds)
	if err != nil {
		return err
	}

	var problems []string
	badf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	thresholds := st.Thresholds()
	if err := thresholds.Validate(); err != nil {
		badf("thresholds: %v", err)
	}

	events := st.Events()
	seen := make(map[string]struct{}, len(events))
	for i, e := range events {
		if i > 0 && e.Time.Before(events[i-1].Time) {
			badf("event %d at %s is out of order", i, e.Time)
		}
		key := fmt.Sprintf("%d|%g", e.Time.UnixNano(), e.Value)
		if _, dup := seen[key]; dup {
			badf("duplicate event at %s value %g", e.Time, e.Value)
		}
		seen[key] = struct{}{}
		if want := thresholds.Classify(e.Value); e.Tier != want {
			badf("event at %s: tier %q but value %g classifies as %q", e.Time, e.Tier, e.Value, want)
		}
	}
	if n := len(events); n > 0 && st.Watermark().Before(events[n-1].Time) {
		badf("watermark %s is behind newest event %s", st.Watermark(), events[n-1].Time)
	}

	if len(problems) > 0 {
		for _, p := range problems {
			logger.Error("invariant violated", "problem", p)
		}
		return fmt.Errorf("store %s failed verification with %d problem(s)", cfg.Store.Path, len(problems))
	}
	logger.Info("store verified", "path", cfg.Store.Path, "events", len(events), "watermark", st.Watermark())
	return nil
}

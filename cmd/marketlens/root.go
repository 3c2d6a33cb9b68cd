package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"MarketLens/internal/candle"
	"MarketLens/internal/chart"
	"MarketLens/internal/collector"
	"MarketLens/internal/config"
	"MarketLens/internal/dashboard"
	"MarketLens/internal/events"
	"MarketLens/internal/market"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
	"MarketLens/internal/report"
	"MarketLens/internal/router"
	"MarketLens/internal/scheduler"
	"MarketLens/internal/stream"
	"MarketLens/internal/subscription"
	"MarketLens/internal/valuation"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "marketlens",
		Short:         "Live market charts and portfolio valuation fed by the dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "path to the YAML config file")
	cmd.AddCommand(newMarketsCmd(&cfgPath), newPortfolioCmd(&cfgPath))
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return cfg, nil
}

func newFetcher(cfg *config.Config) *collector.BackendFetcher {
	return collector.NewBackendFetcher(cfg.Backend.BaseURL, cfg.Backend.Proxy, cfg.Backend.RequestTimeout, cfg.Backend.RateLimit)
}

func run(ctx context.Context, cfg *config.Config) error {
	log.Info("marketlens starting")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	fetcher := newFetcher(cfg)
	log.Infof("data source: %s %s", fetcher.Name(), cfg.Backend.BaseURL)

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warnf("init sqlite recorder failed, using noop: %v", err)
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	seriesHub := events.NewHub[events.SeriesChanged]("series")
	valuationHub := events.NewHub[events.ValuationChanged]("valuation")

	agg := candle.NewAggregator(candle.Options{
		Location:        loc,
		OpenNewBuckets:  cfg.Aggregator.OpenNewBuckets,
		RejectLateTicks: cfg.Aggregator.RejectLateTicks,
	}, seriesHub)
	eng := valuation.NewEngine(cfg.QuoteCurrency, valuationHub)

	charts, err := chart.NewStore(
		model.SeriesKey{Symbol: cfg.Charts.DefaultSymbol, Interval: cfg.Charts.DefaultInterval},
		model.SeriesKey{Symbol: cfg.Charts.NewSymbol, Interval: cfg.Charts.NewInterval},
	)
	if err != nil {
		return fmt.Errorf("init charts: %w", err)
	}

	client := stream.NewClient(cfg.Backend.WSURL, 256)
	sched := scheduler.NewScheduler(ctx, scheduler.Options{
		BarSpec:      cfg.Schedule.BarRefresh,
		HoldingsSpec: cfg.Schedule.HoldingsRefresh,
		BarCount:     cfg.Charts.BarCount,
		Timeout:      cfg.Backend.RequestTimeout,
	}, fetcher, fetcher, agg, nil, rec)

	core := dashboard.New(ctx, dashboard.Deps{
		Charts:        charts,
		Series:        agg,
		Valuation:     eng,
		Subscriptions: subscription.NewManager(cfg.QuoteCurrency, client),
		Scheduler:     sched,
		Account:       fetcher,
		Markets:       market.NewCatalog(fetcher, cfg.QuoteCurrency, market.DefaultTTL),
		Recorder:      rec,
		Timeout:       cfg.Backend.RequestTimeout,
	})

	rt := router.New(agg, eng, router.LogrusSink{})
	reporter := report.NewReporter(cfg.QuoteCurrency, valuationHub, seriesHub, agg, cfg.Report.Interval)

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("stream stopped: %v", err)
		}
	}()
	go func() {
		if err := rt.Run(ctx, client.Messages()); err != nil && ctx.Err() == nil {
			log.Errorf("router stopped: %v", err)
		}
	}()
	go reporter.Run(ctx)

	core.Bootstrap()
	if cfg.HasAccount() {
		if err := core.ConfigureAccount(ctx, dashboard.KeySetup{
			MockTrade: cfg.Account.MockTrade,
			AccessKey: cfg.Account.AccessKey,
			SecretKey: cfg.Account.SecretKey,
		}); err != nil {
			log.Warnf("account setup failed, holdings refresh stays off: %v", err)
		}
	} else {
		log.Info("no account configured, holdings refresh stays off")
	}

	if err := sched.RegisterAll(); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()

	log.Info("marketlens is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Info("shutdown signal received, stopping...")
	sched.Stop()
	core.Wait()
	<-streamDone
	stats := rt.Stats()
	log.Infof("marketlens stopped: %d ticks routed, %d dropped", stats.Routed, stats.Dropped)
	return nil
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polysync/config"
	"github.com/alejandrodnm/polysync/internal/adapters/copyfeed"
	"github.com/alejandrodnm/polysync/internal/adapters/polymarket"
	"github.com/alejandrodnm/polysync/internal/adapters/state"
	"github.com/alejandrodnm/polysync/internal/adapters/storage"
	"github.com/alejandrodnm/polysync/internal/engine"
	"github.com/alejandrodnm/polysync/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one reconciliation cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print persisted state + recent cycles and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *report {
		runReport(cfg)
		return
	}

	if err := cfg.ValidateSecrets(); err != nil {
		slog.Error("missing credentials", "err", err)
		os.Exit(1)
	}

	slog.Info("polysync starting",
		"config", *configPath,
		"interval", cfg.Interval(),
		"once", *once,
		"traders", len(cfg.Feed.Traders),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	authClient, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.DataBase, cfg.PrivateKey, cfg.Funder)
	if err != nil {
		slog.Error("failed to create auth client", "err", err)
		os.Exit(1)
	}
	if err := authClient.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials — check POLY_PRIVATE_KEY", "err", err)
		os.Exit(1)
	}
	slog.Info("authenticated with Polymarket CLOB",
		"signer", authClient.Address(),
		"funder", authClient.Funder(),
	)

	executor := polymarket.NewTradingClient(authClient)

	feed := copyfeed.NewClient(cfg.Feed.URL, cfg.FeedAPIKey, buildFeedRequest(cfg))

	stateStore, err := state.NewFileStore(cfg.Storage.StatePath)
	if err != nil {
		slog.Error("failed to open state store", "err", err, "path", cfg.Storage.StatePath)
		os.Exit(1)
	}

	audit, err := storage.NewSQLiteStorage(cfg.Storage.AuditDSN)
	if err != nil {
		slog.Error("failed to open audit storage", "err", err, "dsn", cfg.Storage.AuditDSN)
		os.Exit(1)
	}
	defer audit.Close()

	if cfg.Metrics.Enabled {
		srvCfg := metrics.DefaultServerConfig()
		srvCfg.Port = cfg.Metrics.Port
		srv := metrics.NewServer(srvCfg)
		srv.Start()
		defer srv.Shutdown(context.Background())
	}

	eng := engine.New(engine.Config{
		Owner:          cfg.Funder,
		Interval:       cfg.Interval(),
		MarketExpiry:   cfg.MarketExpiry(),
		BatchSize:      cfg.Engine.BatchSize,
		StaleWarnAfter: cfg.StaleWarn(),
	}, authClient, feed, executor, stateStore, audit)

	if err := eng.RestoreState(); err != nil {
		slog.Error("failed to restore state", "err", err)
		os.Exit(1)
	}

	if *once {
		if _, err := eng.RunOnce(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polysync stopped cleanly")
}

// buildFeedRequest maps the YAML feed section into the provider's payload.
func buildFeedRequest(cfg *config.Config) copyfeed.Request {
	traders := make([]copyfeed.Trader, 0, len(cfg.Feed.Traders))
	for _, t := range cfg.Feed.Traders {
		traders = append(traders, copyfeed.Trader{
			Address:      t.Address,
			Factor:       t.Factor,
			ExcludedTags: t.ExcludedTags,
			MinShare:     t.MinShare,
			MaxShare:     t.MaxShare,
		})
	}

	return copyfeed.Request{
		Owner: copyfeed.Owner{
			Address:             cfg.Funder,
			IsAutoredeemEnabled: cfg.Feed.IsAutoredeemEnabled,
		},
		PriceConfig: copyfeed.PriceConfig{
			Spread: cfg.Feed.PriceSpread,
			Buffer: cfg.Feed.PriceBuffer,
			Limits: copyfeed.PriceLimits{
				Buy:  copyfeed.PriceRange{Min: cfg.Feed.BuyMin, Max: cfg.Feed.BuyMax},
				Sell: copyfeed.PriceRange{Min: cfg.Feed.SellMin, Max: cfg.Feed.SellMax},
			},
		},
		Traders:         traders,
		ExcludedMarkets: cfg.Feed.ExcludedMarkets,
		IsAggregated:    cfg.Feed.IsAggregated,
		DeferExecution: copyfeed.DeferConfig{
			Enabled:          cfg.Feed.DeferEnabled,
			HoursBeforeStart: cfg.Feed.DeferHoursBefore,
		},
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ldmdldm/pylot-project/internal/analytics"
	"github.com/ldmdldm/pylot-project/internal/app"
	"github.com/ldmdldm/pylot-project/internal/config"
	"github.com/ldmdldm/pylot-project/internal/gasfeed"
	"github.com/ldmdldm/pylot-project/internal/metrics"
	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"github.com/ldmdldm/pylot-project/internal/oracle"
	"github.com/ldmdldm/pylot-project/internal/reliability"
	"github.com/ldmdldm/pylot-project/internal/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(env string) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if env == "dev" {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg := zap.Config{
		Level:    level,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := newLogger(os.Getenv("PYLOT_ENV"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	applyEnvOverrides(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("signal received; shutting down")
		cancel()
	}()

	metrics.Serve(ctx, cfg.Metrics.Addr, nil, logger)

	core, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("wiring", zap.Error(err))
	}

	ws := server.NewBroadcaster(logger)
	sinks := []analytics.Sink{ws}
	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, analytics.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info("kafka sink enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	if cfg.ClickHouse.Addr != "" {
		wh, err := analytics.NewWarehouse(analytics.WarehouseConfig{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
			Table:    cfg.ClickHouse.Table,
		})
		if err != nil {
			logger.Fatal("clickhouse", zap.Error(err))
		}
		sinks = append(sinks, wh)
		logger.Info("clickhouse sink enabled", zap.String("addr", cfg.ClickHouse.Addr))
	}
	dispatcher := analytics.NewDispatcher(sinks, 1024, logger)
	go dispatcher.Run(ctx)
	defer dispatcher.Close()

	opt := optimizer.New(core.Sources, core.Tokens, core.Oracle, core.Scorer, dispatcher, optimizer.Config{
		MaxHops:         cfg.Routing.MaxHops,
		QuoteTimeout:    cfg.QuoteTimeout(),
		QuoteTTL:        cfg.QuoteTTL(),
		MaxLiquidityBps: cfg.Routing.MaxLiquidityBps,
	}, logger)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		feed := oracle.NewFeed(rdb, core.Oracle, cfg.Redis.PricePrefix, cfg.Redis.GasPrefix, cfg.RedisPoll(), logger)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("price feed stopped", zap.Error(err))
			}
		}()
		feedback := reliability.NewFeedback(rdb, core.Stats, cfg.Redis.OutcomeStream, cfg.Redis.Group, cfg.Redis.Consumer, logger)
		go func() {
			if err := feedback.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("outcome feed stopped", zap.Error(err))
			}
		}()
		logger.Info("redis feeds enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.GasFeed.Enabled && len(core.Clients) > 0 {
		poller := gasfeed.New(core.Oracle, cfg.GasPoll(), logger)
		for chain, ec := range core.Clients {
			poller.Watch(chain, ec)
		}
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("gas feed stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("router starting",
		zap.String("service", cfg.Service.Name),
		zap.Int("chains", len(core.Tokens.Chains())),
		zap.Int("tokens", len(core.Tokens.Tokens())),
		zap.Int("sources", len(core.Sources.All())))

	srv := server.New(opt, core.Oracle, core.Tokens, core.Stats, ws, logger)
	if err := srv.Start(ctx, cfg.HTTP.Addr); err != nil {
		logger.Fatal("api server", zap.Error(err))
	}
}

// applyEnvOverrides keeps secrets out of the yaml file.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("PYLOT_ONEINCH_API_KEY"); v != "" {
		cfg.Aggregator.APIKey = v
	}
	if v := os.Getenv("PYLOT_CLICKHOUSE_PASSWORD"); v != "" {
		cfg.ClickHouse.Password = v
	}
	if v := os.Getenv("PYLOT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// pylot-analytics drains route decisions from Kafka into ClickHouse. It is
// the durable half of the analytics pipeline: the router publishes fire-and-
// forget, this consumer owns retries and offset commits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ldmdldm/pylot-project/internal/analytics"
	"github.com/ldmdldm/pylot-project/internal/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const insertTimeout = 10 * time.Second

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
	if v := os.Getenv("PYLOT_CLICKHOUSE_PASSWORD"); v != "" {
		cfg.ClickHouse.Password = v
	}
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Fatal("kafka.brokers is empty; nothing to consume")
	}
	if cfg.ClickHouse.Addr == "" {
		logger.Fatal("clickhouse.addr is empty; nowhere to store decisions")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("signal received; shutting down")
		cancel()
	}()

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
	defer wh.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	defer reader.Close()

	logger.Info("consumer starting",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID))

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("consumer stopped")
				return
			}
			logger.Error("fetch message", zap.Error(err))
			return
		}

		var rec analytics.Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			// Commit malformed messages so the group does not get stuck.
			logger.Warn("bad record skipped", zap.Int64("offset", msg.Offset), zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		insertCtx, insertCancel := context.WithTimeout(ctx, insertTimeout)
		err = wh.Publish(insertCtx, rec)
		insertCancel()
		if err != nil {
			// Leave the offset unacked; the message is redelivered.
			logger.Error("clickhouse insert", zap.String("request_id", rec.RequestID), zap.Error(err))
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("commit offset", zap.Error(err))
		}
	}
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/smsleopard-sequencer/internal/config"
	"github.com/unclebandit/smsleopard-sequencer/internal/lock"
	"github.com/unclebandit/smsleopard-sequencer/internal/logger"
	"github.com/unclebandit/smsleopard-sequencer/internal/sender"
)

// prefetch bounds unacked deliveries held by one worker.
const prefetch = 10

// mockFailureRate gives the mock transport a 90% success rate.
const mockFailureRate = 0.1

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zl.Sync()

	var once lock.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := lock.OpenRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			zl.Fatal("redis init failed", zap.Error(err))
		}
		defer rdb.Close()
		once = lock.NewRedisLocker(rdb)
	} else {
		zl.Warn("REDIS_ADDR not set, duplicate deliveries are only caught within this process")
		once = lock.NewMemoryLocker()
	}

	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		zl.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zl.Fatal("failed to open a channel", zap.Error(err))
	}
	defer ch.Close()

	q, err := sender.DeclareQueue(ch, cfg.AMQP.Queue)
	if err != nil {
		zl.Fatal("failed to declare queue", zap.Error(err))
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		zl.Fatal("failed to set prefetch", zap.Error(err))
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		zl.Fatal("failed to register consumer", zap.Error(err))
	}

	worker := newConsumer(sender.NewMockSender(mockFailureRate), once, zl)
	zl.Info("worker running, waiting for messages", zap.String("queue", q.Name))
	if err := worker.Run(ctx, msgs); err != nil && ctx.Err() == nil {
		zl.Error("worker stopped", zap.Error(err))
	}
}

func newConsumer(transport sender.Sender, once lock.Locker, zl *zap.Logger) *sender.Consumer {
	return &sender.Consumer{Transport: transport, Once: once, Log: zl}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	auditconsumer "roombooking/internal/audit/consumer"
	"roombooking/internal/audit/repository"
	"roombooking/pkg/config"
	"roombooking/pkg/kafka"
	kafka_config "roombooking/pkg/kafka/config"
	kafka_middleware "roombooking/pkg/kafka/middleware"
)

const ServiceName = "booking-audit"

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.UsesMongo() {
		cfg.Log.Fatal("The audit trail requires the mongo storage backend")
	}
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	repo := repository.NewMongoEventRepository(cfg)
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventsTopic,
		kafkaCfg.AuditGroupID,
		kafkaCfg.DLQTopic,
		auditconsumer.NewEventHandler(repo, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming booking events",
		"topic", cfg.BookingEventsTopic,
		"group_id", kafkaCfg.AuditGroupID,
		"dlq_topic", kafkaCfg.DLQTopic,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Audit consumer stopped")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/dlq"
	"github.com/safar/marketplace-orders/internal/messaging/kafka"
	"github.com/safar/marketplace-orders/internal/metrics"
	"github.com/safar/marketplace-orders/internal/payment"
	"github.com/safar/marketplace-orders/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	telemetry.InitLogger(cfg.Log, "payment-service")
	if os.Getenv("KAFKA_CLIENT_ID") == "" {
		cfg.Kafka.ClientID = "payment-service"
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, "payment-service")
	if err != nil {
		log.Fatal().Err(err).Msg("init tracer")
	}
	defer shutdownTracer(context.Background())

	pool, err := pgxpool.New(ctx, cfg.Payment.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("create inbox pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping inbox database")
	}

	var deadLetters payment.DeadLetterQueue
	if cfg.Payment.FailurePolicy == config.FailurePolicyDeadLetter {
		queue := dlq.New(cfg.Redis)
		defer queue.Close()
		if err := queue.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("ping dead letter queue")
		}
		deadLetters = queue
	}

	processor, err := payment.NewProcessor(payment.NewPostgresInbox(pool), payment.UnimplementedInitiator{}, deadLetters, cfg.Payment.FailurePolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("init processor")
	}

	metrics.Serve(ctx, cfg.Payment.MetricsAddr, pool.Ping)

	group, err := kafka.NewConsumerGroup(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("create consumer group")
	}
	defer group.Close()

	log.Info().
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Str("policy", cfg.Payment.FailurePolicy).
		Msg("payment consumer starting")

	if err := kafka.Consume(ctx, group, []string{cfg.Kafka.Topic}, &kafka.ConsumerHandler{Handle: processor.Handle}); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
	}
	log.Info().Msg("payment consumer stopped")
}

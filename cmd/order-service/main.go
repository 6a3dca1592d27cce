package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/safar/marketplace-orders/internal/api"
	"github.com/safar/marketplace-orders/internal/auth"
	"github.com/safar/marketplace-orders/internal/catalog"
	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/messaging/kafka"
	"github.com/safar/marketplace-orders/internal/service"
	"github.com/safar/marketplace-orders/internal/store"
	"github.com/safar/marketplace-orders/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := telemetry.InitLogger(cfg.Log, "order-service")

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, "order-service")
	if err != nil {
		log.Fatal().Err(err).Msg("init tracer")
	}
	defer shutdownTracer(context.Background())

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	if cfg.Kafka.CreateTopic {
		if err := kafka.ProvisionTopic(cfg.Kafka); err != nil {
			log.Fatal().Err(err).Str("topic", cfg.Kafka.Topic).Msg("provision topic")
		}
	}

	producer, err := kafka.NewAsyncProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("create producer")
	}
	publisher := kafka.NewPublisher(producer, cfg.Kafka.Topic)
	defer publisher.Close()

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("init token verifier")
	}

	orders := store.NewOrderRepository(db)
	svc := service.NewOrderService(catalog.NewClient(cfg.Catalog), orders, publisher)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(logger, api.NewHandler(verifier, svc, orders.Ping)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// The deferred publisher and database closes must not run under live handlers.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Str("topic", cfg.Kafka.Topic).Msg("server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		stop()
	}
	<-drained
	log.Info().Msg("server stopped, flushing producer")
}

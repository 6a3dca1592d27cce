package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders persisted",
	})
	OrderCreationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_creation_failures_total",
		Help: "Order creation attempts that failed, by reason",
	}, []string{"reason"})
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_published_total",
		Help: "Order created events by broker outcome",
	}, []string{"result"})
	ProductLookupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "product_lookup_duration_seconds",
		Help:    "Latency of product service lookups",
		Buckets: prometheus.DefBuckets,
	})
	PaymentMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_messages_total",
		Help: "Consumed order events by final state",
	}, []string{"state"})
	DLQCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dlq_messages_total",
		Help: "Total number of messages sent to DLQ",
	})
)

func init() {
	prometheus.MustRegister(
		OrdersCreated,
		OrderCreationFailures,
		EventsPublished,
		ProductLookupDuration,
		PaymentMessages,
		DLQCount,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics and /healthz on addr until ctx is done.
func Serve(ctx context.Context, addr string, healthy func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil {
			if err := healthy(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

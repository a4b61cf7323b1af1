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
	ItemsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_items_processed_total",
			Help: "Items extracted and enriched",
		},
	)
	ItemsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_items_failed_total",
			Help: "Item pages that could not be extracted",
		},
	)
	ImagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_images_total",
			Help: "Images handled by OCR, by outcome",
		},
		[]string{"outcome"},
	)
	PriceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_price_lookups_total",
			Help: "Market prices resolved, by source",
		},
		[]string{"source"},
	)
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_llm_requests_total",
			Help: "Search query generation requests, by outcome",
		},
		[]string{"outcome"},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(ItemsProcessed, ItemsFailed, ImagesProcessed, PriceLookups, LLMRequests)
}

// Handler serves the collected metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on port until ctx is cancelled.
func Serve(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", port).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

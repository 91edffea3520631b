package metrics

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/link"
)

var (
	LinkState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rfid_link_state",
			Help: "Current state of a node link: 0 disconnected, 1 connecting, 2 connected",
		},
		[]string{"link"},
	)

	LinkTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfid_link_transitions_total",
			Help: "Total number of link state changes by link and new state",
		},
		[]string{"link", "state"},
	)

	ScansPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rfid_scans_published_total",
			Help: "Total number of card uids published on RFID_SCAN",
		},
	)

	SignalsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfid_signals_applied_total",
			Help: "Total number of authorization signals applied to the relay",
		},
		[]string{"signal"},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfid_decisions_total",
			Help: "Total number of scans decided by the authorizer by outcome",
		},
		[]string{"outcome"},
	)

	ClientsUnhealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rfid_clients_unhealthy",
			Help: "Number of nodes whose check-ins stopped",
		},
	)
)

// ObserveLink is a link state callback feeding LinkState and LinkTransitions.
func ObserveLink(name string, state link.State) {
	LinkState.WithLabelValues(name).Set(float64(state))
	LinkTransitions.WithLabelValues(name, state.String()).Inc()
}

type ServerOpts struct {
	Addr              string
	Path              string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

func defaultServerOptions() ServerOpts {
	return ServerOpts{
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Serve exposes the default registry on opts.Addr until ctx is cancelled. An
// empty address disables the server.
func Serve(ctx context.Context, wg *sync.WaitGroup, opts ServerOpts, log zerolog.Logger) {
	if opts.Addr == "" {
		return
	}

	effectiveOpts := defaultServerOptions()
	effectiveOpts.Addr = opts.Addr
	effectiveOpts.Path = cmp.Or(opts.Path, effectiveOpts.Path)
	effectiveOpts.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, effectiveOpts.ShutdownTimeout)
	effectiveOpts.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, effectiveOpts.ReadHeaderTimeout)

	mux := http.NewServeMux()
	mux.Handle(effectiveOpts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effectiveOpts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effectiveOpts.ReadHeaderTimeout,
	}

	wg.Add(2)

	go func() {
		defer wg.Done()
		log.Info().
			Str("event", "MetricsServer").
			Str("addr", effectiveOpts.Addr).
			Str("path", effectiveOpts.Path).
			Msg("Starting metrics server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().
				Str("event", "MetricsServer").
				Err(err).
				Msg("Metrics server error")
		}
	}()

	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), effectiveOpts.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().
				Str("event", "MetricsServer").
				Err(err).
				Msg("Error shutting down metrics server")
		}
	}()
}

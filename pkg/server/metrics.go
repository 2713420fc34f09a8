package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"miniblob/pkg/helper/errors"
	"miniblob/pkg/helper/log"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniblob_requests_total",
		Help: "Wire protocol requests handled, by request type and outcome.",
	}, []string{"type", "success"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "miniblob_request_duration_seconds",
		Help: "Latency of handled requests by request type.",
	}, []string{"type"})

	deltaRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "miniblob_delta_compression_ratio",
		Help:    "Ratio of encoded delta size to reconstructed content size for SAVE_FILE commits.",
		Buckets: prometheus.DefBuckets,
	})

	objectStoreBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniblob_object_store_bytes",
		Help: "Total size in bytes of objects persisted in the content store.",
	})
)

// MetricsServer exposes the process's Prometheus metrics on a port
// separate from the TCP wire protocol listener, per SPEC_FULL.md §3's
// ambient metrics endpoint.
type MetricsServer struct {
	httpServer *http.Server
	logger     log.Logger
}

// NewMetricsServer builds a metrics server bound to port. It does not
// start listening until Start is called.
func NewMetricsServer(port int, logger log.Logger) *MetricsServer {
	if logger == nil {
		logger = log.NewLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		logger: logger,
	}
}

// Start begins serving /metrics in the background.
func (m *MetricsServer) Start() {
	go func() {
		if err := m.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.WithError(err).Warn("metrics server stopped unexpectedly")
		}
	}()
}

// Stop gracefully shuts down the metrics HTTP server.
func (m *MetricsServer) Stop(ctx context.Context) error {
	if err := m.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down metrics server")
	}
	return nil
}

// Package observability provides Prometheus metrics and the metrics server.
package observability

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//nolint:gochecknoglobals // Singleton pattern for the metrics server
var startMetricsOnce sync.Once

// StartMetricsServer exposes /metrics on the given address. Subsequent
// calls are no-ops so every service entry point can call it safely.
func StartMetricsServer(log logrus.FieldLogger, addr string) {
	startMetricsOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 15 * time.Second,
			Handler:           mux,
		}

		go func() {
			log.WithField("addr", addr).Info("Starting metrics server")

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	})
}

package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsPath is the scrape path served by MetricsServer.
const MetricsPath = "/metrics"

const readHeaderTimeout = 5 * time.Second

// NewPrometheusReader creates an OTel metric reader backed by its own
// Prometheus registry, and the handler that serves that registry.
func NewPrometheusReader() (sdkmetric.Reader, http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// MetricsServer serves a Prometheus handler while a scan runs.
type MetricsServer struct {
	srv *http.Server
	ln  net.Listener
}

// ServeMetrics starts serving handler at addr under MetricsPath. Listen errors
// are returned immediately; serve errors are logged.
func ServeMetrics(addr string, handler http.Handler, logger *slog.Logger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, handler)

	ms := &MetricsServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		ln:  ln,
	}

	go func() {
		serveErr := ms.srv.Serve(ln)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", serveErr)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String(), "path", MetricsPath)

	return ms, nil
}

// Addr returns the bound listen address.
func (ms *MetricsServer) Addr() string {
	return ms.ln.Addr().String()
}

// Shutdown stops the server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	err := ms.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}

package secrets

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/systmms/dsconf/internal/logging"
)

// MetricsServerConfig configures the lookup metrics endpoint.
type MetricsServerConfig struct {
	// Addr is the listen address, for example ":9090" or "127.0.0.1:0".
	Addr string

	// Path serves the Prometheus exposition.
	Path string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultMetricsServerConfig returns the configuration used by
// 'dsconf spawn --metrics-addr'.
func DefaultMetricsServerConfig(addr string) MetricsServerConfig {
	return MetricsServerConfig{
		Addr:         addr,
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// MetricsServer exposes the lookup counters over HTTP.
type MetricsServer struct {
	config   MetricsServerConfig
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer creates a stopped server.
func NewMetricsServer(config MetricsServerConfig, logger *logging.Logger) *MetricsServer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &MetricsServer{config: config, logger: logger}
}

// Start binds the listener and serves in the background.
func (s *MetricsServer) Start() error {
	InitMetrics()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server error: %v", err)
		}
	}()

	s.logger.Debug("Serving metrics on %s%s", ln.Addr(), s.config.Path)
	return nil
}

// Stop shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or "" before Start.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

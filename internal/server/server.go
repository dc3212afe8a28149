// Package server wires the tracker together: store, services, hub,
// exports, geocoding, telemetry, and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/justinlawrence/disc-golf-tracker/internal/app/scorecard"
	"github.com/justinlawrence/disc-golf-tracker/internal/config"
	"github.com/justinlawrence/disc-golf-tracker/internal/exports"
	"github.com/justinlawrence/disc-golf-tracker/internal/geocode"
	"github.com/justinlawrence/disc-golf-tracker/internal/httpapi"
	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/merge"
	"github.com/justinlawrence/disc-golf-tracker/internal/metrics"
	"github.com/justinlawrence/disc-golf-tracker/internal/relay"
	"github.com/justinlawrence/disc-golf-tracker/internal/store"
)

var metricsSetup = metrics.Setup

// Server owns the process lifecycle.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder

	store    store.Store
	svc      *scorecard.Service
	engine   *merge.Engine
	hub      *relay.Hub
	exporter *exports.Writer
	pruner   *exports.Pruner

	httpServer    httpServer
	metricsServer httpServer
	metricsStop   func(context.Context) error
}

// New constructs a fully wired Server.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	recorder, metricsSrv, metricsStop := buildMetrics(cfg, logger)

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	svc := scorecard.New(st, logger, recorder)
	engine := merge.New(st, logger, recorder)
	hub := relay.NewHub(logger, recorder)
	exporter := exports.NewWriter(cfg.Exports.Dir, cfg.Exports.RetentionDays, logger)

	pruner, err := exports.NewPruner(exporter, cfg.Exports.PruneCron, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	if cfg.Geocode.Enabled {
		client := geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.Timeout, logger)
		resolver := geocode.NewResolver(st, client, logger)
		engine.OnCourseCreated(resolver.CourseCreated)
	}

	handler := httpapi.NewHandler(svc, engine, hub, exporter, logger)
	wrapped := httpapi.LoggingMiddleware(logger, recorder, handler)
	httpSrv := netHTTPServer{srv: &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      wrapped,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}}

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		store:         st,
		svc:           svc,
		engine:        engine,
		hub:           hub,
		exporter:      exporter,
		pruner:        pruner,
		httpServer:    httpSrv,
		metricsServer: metricsSrv,
		metricsStop:   metricsStop,
	}, nil
}

// Run starts everything and waits for context cancellation to shut down
// gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.pruner.Start()
	s.startServer(stop)

	<-ctx.Done()
	logging.Info(s.logger, "shutdown signal received")
	s.gracefulShutdown()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}

func (s *Server) startServer(stop context.CancelFunc) {
	launchServer("http", s.httpServer, s.logger, func(error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.pruner.Stop()

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics shutdown failed", "error", err)
		}
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics server shutdown failed", "error", err)
		}
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error(s.logger, "graceful shutdown failed", err)
	}
	if err := s.store.Close(); err != nil {
		logging.Warn(s.logger, "store close failed", "error", err)
	}
	logging.Info(s.logger, "shutdown complete")
}

// openStore picks the persistence backend: bbolt on disk by default, or an
// in-memory store when the path is ":memory:" or empty.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.StorePath == "" || cfg.StorePath == ":memory:" {
		return store.NewMemoryStore(), nil
	}
	if dir := filepath.Dir(cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}
	return store.NewBoltStore(cfg.StorePath)
}

func buildMetrics(cfg config.Config, logger *slog.Logger) (*metrics.Recorder, httpServer, func(context.Context) error) {
	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		logging.Warn(logger, "metrics setup failed, continuing without telemetry", "error", err)
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{
			srv: &http.Server{
				Addr:    ":" + recCfg.Port,
				Handler: handler,
			},
		}
	}
	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		logging.Info(logger, "starting "+name+" server", "addr", srv.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn(logger, name+" server failed", "error", err)
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Package app wires the engine: stores, pool manager, escalation monitor,
// broadcast gateway, metrics sinks, the HTTP API and the MQTT bridge.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apileaderboard "github.com/sasyevadam01/sl-enterprise-sub002/api/leaderboard"
	apirequests "github.com/sasyevadam01/sl-enterprise-sub002/api/requests"
	"github.com/sasyevadam01/sl-enterprise-sub002/config"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/broadcast"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/escalation"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/ledger"
	coremetrics "github.com/sasyevadam01/sl-enterprise-sub002/core/metrics"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/monitoring"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/pool"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
	infraledger "github.com/sasyevadam01/sl-enterprise-sub002/infra/ledger"
	"github.com/sasyevadam01/sl-enterprise-sub002/infra/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/infra/metrics"
	infraMonitoring "github.com/sasyevadam01/sl-enterprise-sub002/infra/monitoring"
	"github.com/sasyevadam01/sl-enterprise-sub002/infra/mqtt"
	infrastore "github.com/sasyevadam01/sl-enterprise-sub002/infra/store"
)

// Service owns the engine components and their lifecycles.
type Service struct {
	Manager *pool.Manager
	Monitor *escalation.Monitor
	Gateway *broadcast.Gateway

	cfg         *config.Config
	log         logger.Logger
	bridge      *mqtt.Bridge
	pub         mqtt.Publisher
	ledgerStore ledger.Store

	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := infraMonitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry monitor: %w", err)
	}
	monitoring.Init(monitor)

	svc := &Service{cfg: cfg, log: logg}

	var reqStore request.Store
	var ledgerStore ledger.Store
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := infrastore.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("request store: %w", err)
		}
		svc.closers = append(svc.closers, s.Close)
		l, err := infraledger.NewSQLiteStore(cfg.Store.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("ledger store: %w", err)
		}
		svc.closers = append(svc.closers, l.Close)
		reqStore, ledgerStore = s, l
	default:
		reqStore = request.NewMemoryStore()
		ledgerStore = ledger.NewMemoryStore()
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	gateway := broadcast.New(logger.New("gateway"))
	svc.Gateway = gateway

	manager, err := pool.NewManager(reqStore, ledgerStore, gateway, sink, logger.New("pool"), cfg.Points)
	if err != nil {
		return nil, fmt.Errorf("pool manager: %w", err)
	}
	svc.Manager = manager

	escMonitor, err := escalation.NewMonitor(reqStore, gateway, sink, logger.New("escalation"), cfg.Escalation)
	if err != nil {
		return nil, fmt.Errorf("escalation monitor: %w", err)
	}
	svc.Monitor = escMonitor

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.pub = client
		bridge, err := mqtt.NewBridge(gateway, client, cfg.MQTT.TopicPrefix, logger.New("mqtt-bridge"))
		if err != nil {
			return nil, fmt.Errorf("mqtt bridge: %w", err)
		}
		svc.bridge = bridge
	}

	svc.ledgerStore = ledgerStore
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Monitor.Run(ctx)
	if s.bridge != nil {
		go s.bridge.Run(ctx)
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	requestsHandler := apirequests.NewHandler(s.Manager, s.cfg.API.Token)
	mux.Handle("/api/requests", requestsHandler)
	mux.Handle("/api/requests/", requestsHandler)
	mux.Handle("/api/leaderboard", apileaderboard.NewHandler(s.ledgerStore, s.cfg.API.Token))
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
	}()
	s.log.Infof("dispatch engine listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Gateway.Close()
	if s.pub != nil {
		s.pub.Close()
	}
	monitoring.Flush(2 * time.Second)
	var firstErr error
	for _, close := range s.closers {
		if err := close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

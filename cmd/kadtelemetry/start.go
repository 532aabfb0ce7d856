package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thomasdelaet/kad-telemetry/config"
	"github.com/thomasdelaet/kad-telemetry/logging"
	"github.com/thomasdelaet/kad-telemetry/metric"
	"github.com/thomasdelaet/kad-telemetry/metrics"
	"github.com/thomasdelaet/kad-telemetry/telemetry"
	"github.com/thomasdelaet/kad-telemetry/tracing"
	"github.com/thomasdelaet/kad-telemetry/transport"
	"github.com/thomasdelaet/kad-telemetry/transport/websocket"
	"github.com/thomasdelaet/kad-telemetry/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node",
	Long: `Start a telemetry-enabled transport with the specified configuration.

Configured peers are pinged every ping_interval; the resulting latency
and availability samples are persisted to the telemetry filename.
The node runs until interrupted (Ctrl+C) or receives a termination signal.

Example:
  kadtelemetry start --config config.toml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, closeLog, err := createLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("Starting kadtelemetry node",
		"node_id", cfg.Node.ID,
		"transport", cfg.Transport.Kind,
		"version", Version,
	)

	tracer, shutdownTracing, err := tracing.Setup(cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("Error shutting down tracing", logging.Error(err))
		}
	}()

	var sink metrics.Metrics = metrics.NewNopMetrics()
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		sink = prom
		srv := serveMetrics(cfg.Metrics.ListenAddr, prom.HTTPHandler(), logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	telemetryCfg, err := telemetry.ConfigFromFile(cfg.Telemetry, metric.WithLogger(logger.WithComponent("metric")))
	if err != nil {
		return fmt.Errorf("resolving telemetry config: %w", err)
	}

	contact, err := types.NewContact(parsePeerID(cfg.Node.ID), cfg.Node.ListenAddr)
	if err != nil {
		return fmt.Errorf("parsing node address: %w", err)
	}

	decorator := telemetry.Decorate(baseConstructor(cfg.Transport.Kind),
		telemetry.WithLogger(logger),
		telemetry.WithMetrics(sink),
		telemetry.WithTracer(tracer),
	)

	t, err := decorator.New(contact, telemetry.Options{
		Transport: transport.Options{
			RequestTimeout: cfg.Transport.RequestTimeout.Duration(),
			Logger:         logger.WithComponent("transport"),
		},
		Telemetry: telemetryCfg,
	})
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	defer func() {
		if err := t.Release(); err != nil {
			logger.Error("Error releasing transport", logging.Error(err))
		}
	}()

	if err := t.Open(); err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}

	if t.Handle().IsBroken() {
		logger.Warn("Telemetry persistence unavailable, samples will be dropped",
			logging.Locator(t.Handle().Locator()),
			logging.Error(t.Handle().Err()),
		)
	}

	logger.Info("Node started successfully",
		"contact", t.Contact().String(),
		"hooks", t.HookCount(),
	)

	peers, err := parsePeers(cfg.Transport.Peers)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if interval := cfg.Transport.PingInterval.Duration(); interval > 0 && len(peers) > 0 {
		go pingLoop(ctx, t, peers, interval, logger)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}
	cancel()

	stats := t.Handle().Stats()
	logger.Info("Node stopped gracefully",
		"recorded", stats.Recorded,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
	)
	return nil
}

// baseConstructor returns the constructor for the configured transport kind.
func baseConstructor(kind string) transport.Constructor {
	if kind == config.TransportMemory {
		return transport.NewHub().Constructor()
	}
	return websocket.Constructor(websocket.DefaultConfig())
}

// parsePeers converts "<id>@<multiaddr>" entries into contacts.
func parsePeers(entries []string) ([]types.Contact, error) {
	peers := make([]types.Contact, 0, len(entries))
	for _, entry := range entries {
		id, addr, err := config.SplitPeer(entry)
		if err != nil {
			return nil, err
		}
		c, err := types.NewContact(parsePeerID(id), addr)
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", entry, err)
		}
		peers = append(peers, c)
	}
	return peers, nil
}

// pingLoop pings every peer once per interval until ctx is done.
func pingLoop(ctx context.Context, t transport.Transport, peers []types.Contact, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, p := range peers {
			msg := transport.NewPing()
			if err := t.Send(ctx, p, msg); err != nil {
				logger.Debug("ping failed",
					logging.ContactID(p.Key()),
					logging.MessageID(msg.ID),
					logging.Error(err),
				)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// serveMetrics exposes handler on addr in the background.
func serveMetrics(addr string, handler http.Handler, logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logging.Address(addr), logging.Error(err))
		}
	}()
	logger.Info("Serving metrics", logging.Address(addr))
	return srv
}

// createLogger creates a logger based on configuration. The returned
// function closes the log file, if any.
func createLogger(cfg config.LoggingConfig) (*logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.Level)

	// Determine output
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = os.Stdout
	case "stderr", "":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}

	// Create logger based on format
	switch strings.ToLower(cfg.Format) {
	case "json":
		return logging.NewJSONLogger(w, level), closeFn, nil
	default:
		return logging.NewTextLogger(w, level), closeFn, nil
	}
}

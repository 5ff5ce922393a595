// Package daemon wires the rtvolumed CLI: a cobra root command and its
// serve subcommand, binding pflag-defined flags to volumemanager and
// httpapi construction.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/styrainc/rtvolume/internal/httpapi"
	"github.com/styrainc/rtvolume/internal/metrics"
	"github.com/styrainc/rtvolume/internal/rtlog"
	"github.com/styrainc/rtvolume/internal/volumemanager"
)

// Command builds the rtvolumed root command.
func Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "rtvolumed",
		Short: "Serves the per-volume realtime collaborative filesystem API.",
	}
	root.AddCommand(serveCommand())
	return root
}

func serveCommand() *cobra.Command {
	var (
		addr            string
		dataDir         string
		sessionCapacity int
		logLevel        string
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the volume server until signaled.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(context.Background(), serveConfig{
				addr:            addr,
				dataDir:         dataDir,
				sessionCapacity: sessionCapacity,
				logLevel:        logLevel,
				metricsAddr:     metricsAddr,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8080", "bind address for the volume HTTP API")
	flags.StringVar(&dataDir, "data-dir", "./data", "directory holding per-volume durable stores")
	flags.IntVar(&sessionCapacity, "session-capacity", 0, "text sessions retained per volume (0 = default)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&metricsAddr, "metrics-addr", ":9090", "bind address for the /metrics endpoint")

	return cmd
}

const shutdownTimeout = 10 * time.Second

type serveConfig struct {
	addr            string
	dataDir         string
	sessionCapacity int
	logLevel        string
	metricsAddr     string
}

func runServe(ctx context.Context, cfg serveConfig) error {
	log := rtlog.New(cfg.logLevel, os.Stderr)

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return fmt.Errorf("rtvolumed: create data dir: %w", err)
	}

	m := metrics.New()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	mgr := volumemanager.New(volumemanager.Config{
		DataDir:         cfg.dataDir,
		Metrics:         m,
		Logger:          log,
		SessionCapacity: cfg.sessionCapacity,
	})
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing volume stores")
		}
	}()

	server := httpapi.New(mgr, log)

	apiServer := &http.Server{Addr: cfg.addr, Handler: server}
	metricsServer := &http.Server{Addr: cfg.metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}

	errs := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.addr).Msg("volume API listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("rtvolumed: api server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.metricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("rtvolumed: metrics server: %w", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutting down")
	case err := <-errs:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	return nil
}

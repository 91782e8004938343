// Command rwbench measures rwlock throughput under reader/writer contention.
//
//	rwbench --readers 16 --writers 2 --duration 5s --timeout 1ms
//	rwbench --config bench.yaml --metrics-addr :9090
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llxisdsh/rwlock"
	"github.com/llxisdsh/rwlock/internal/bench"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
		debug       bool
		flagCfg     = bench.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:          "rwbench",
		Short:        "Measure rwlock throughput under reader/writer contention",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := bench.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = bench.LoadConfig(configPath); err != nil {
					return err
				}
			}
			overrideChanged(cmd, &cfg, flagCfg)

			logger, err := newLogger(debug)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []rwlock.Option{rwlock.WithName("rwbench"), rwlock.WithLogger(logger)}
			if metricsAddr != "" {
				shutdown := serveMetrics(metricsAddr, logger)
				defer shutdown()
				opts = append(opts, rwlock.WithMetrics())
			}

			res, err := bench.Run(ctx, cfg, logger, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reads           %d\n", res.Reads)
			fmt.Fprintf(out, "writes          %d\n", res.Writes)
			fmt.Fprintf(out, "read_timeouts   %d\n", res.ReadTimeouts)
			fmt.Fprintf(out, "write_timeouts  %d\n", res.WriteTimeouts)
			fmt.Fprintf(out, "elapsed         %s\n", res.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "ops/sec         %.0f\n", res.OpsPerSecond())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML file with benchmark settings; flags override it")
	f.IntVar(&flagCfg.Readers, "readers", flagCfg.Readers, "number of reader goroutines")
	f.IntVar(&flagCfg.Writers, "writers", flagCfg.Writers, "number of writer goroutines")
	f.DurationVar(&flagCfg.Duration, "duration", flagCfg.Duration, "how long to run")
	f.DurationVar(&flagCfg.Timeout, "timeout", flagCfg.Timeout, "acquisition timeout, <= 0 never waits")
	f.DurationVar(&flagCfg.Hold, "hold", flagCfg.Hold, "time spent inside each critical section")
	f.StringVar(&flagCfg.Payload, "payload", flagCfg.Payload, "shared payload; its length is the buffer size")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.BoolVar(&debug, "debug", false, "development logging at debug level")

	return cmd
}

// overrideChanged copies the flags given on the command line into cfg.
func overrideChanged(cmd *cobra.Command, cfg *bench.Config, flagCfg bench.Config) {
	changed := cmd.Flags().Changed
	if changed("readers") {
		cfg.Readers = flagCfg.Readers
	}
	if changed("writers") {
		cfg.Writers = flagCfg.Writers
	}
	if changed("duration") {
		cfg.Duration = flagCfg.Duration
	}
	if changed("timeout") {
		cfg.Timeout = flagCfg.Timeout
	}
	if changed("hold") {
		cfg.Hold = flagCfg.Hold
	}
	if changed("payload") {
		cfg.Payload = flagCfg.Payload
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(addr string, logger *zap.Logger) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}

package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/dayplan/internal/instrumentation"
	"github.com/teemow/dayplan/internal/logging"
	"github.com/teemow/dayplan/internal/refresh"
	"github.com/teemow/dayplan/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr            string
		metricsAddr     string
		refreshInterval time.Duration
		disableRefresh  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server together with the background token
refresher and, when instrumentation is enabled, a Prometheus metrics
endpoint on a separate port.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(cmd)

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			instrProvider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := instrProvider.Shutdown(shutdownCtx); err != nil {
					logger.Error("instrumentation shutdown failed", logging.Err(err))
				}
			}()

			application, err := newApp(cmd, instrProvider.Metrics(), logger)
			if err != nil {
				return err
			}
			defer application.Close()

			var metricsServer *server.MetricsServer
			if instrProvider.Enabled() {
				metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
					Addr:                    metricsAddr,
					InstrumentationProvider: instrProvider,
				})
				if err != nil {
					return err
				}
				go func() {
					if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server failed", logging.Err(err))
					}
				}()
			}

			if !disableRefresh {
				scheduler := refresh.NewScheduler(application.store.Accounts,
					application.metrics, logger)
				scheduler.SetInterval(refreshInterval)
				for _, refresher := range application.refreshers {
					scheduler.Register(refresher)
				}
				go scheduler.Run(ctx)
			}

			apiServer := server.New(server.Config{
				Addr:         addr,
				Store:        application.store,
				Orchestrator: application.orchestrator,
				Aggregator:   application.aggregator,
				AIManager:    application.aiManager,
				Metrics:      application.metrics,
				Logger:       logger,
			})

			errCh := make(chan error, 1)
			go func() {
				if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				server.DefaultShutdownTimeout)
			defer cancel()

			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("api server shutdown failed", logging.Err(err))
			}
			if metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("metrics server shutdown failed", logging.Err(err))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr,
		"Address for the HTTP API server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr,
		"Address for the Prometheus metrics server")
	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", refresh.DefaultInterval,
		"Interval between background token refresh cycles")
	cmd.Flags().BoolVar(&disableRefresh, "disable-refresh", false,
		"Disable the background token refresher")

	return cmd
}

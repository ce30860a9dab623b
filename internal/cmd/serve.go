package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/3leaps/jobqueue/internal/config"
	"github.com/3leaps/jobqueue/internal/observability"
	"github.com/3leaps/jobqueue/internal/server"
	"github.com/3leaps/jobqueue/internal/server/handlers"
	"github.com/3leaps/jobqueue/pkg/clockid"
	"github.com/3leaps/jobqueue/pkg/jobmanager"
	"github.com/3leaps/jobqueue/pkg/jobstore"
)

var (
	serveHost      string
	servePort      int
	serveStorePath string
	serveStoreURL  string
	serveLogLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job queue HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides JOBQUEUE_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides JOBQUEUE_PORT)")
	serveCmd.Flags().StringVar(&serveStorePath, "store-path", "", "local SQLite file path (overrides JOBQUEUE_STORE_PATH)")
	serveCmd.Flags().StringVar(&serveStoreURL, "store-url", "", "remote libsql URL (overrides JOBQUEUE_STORE_URL)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// storeHealthChecker adapts jobstore.Store to handlers.Checker.
type storeHealthChecker struct {
	store jobstore.Store
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func flagOverrides() map[string]any {
	serverOverrides := map[string]any{}
	if serveHost != "" {
		serverOverrides["host"] = serveHost
	}
	if servePort != 0 {
		serverOverrides["port"] = servePort
	}

	storeOverrides := map[string]any{}
	if serveStorePath != "" {
		storeOverrides["path"] = serveStorePath
	}
	if serveStoreURL != "" {
		storeOverrides["url"] = serveStoreURL
	}

	loggingOverrides := map[string]any{}
	if serveLogLevel != "" {
		loggingOverrides["level"] = serveLogLevel
	}

	overrides := map[string]any{}
	if len(serverOverrides) > 0 {
		overrides["server"] = serverOverrides
	}
	if len(storeOverrides) > 0 {
		overrides["store"] = storeOverrides
	}
	if len(loggingOverrides) > 0 {
		overrides["logging"] = loggingOverrides
	}
	return overrides
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, flagOverrides())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	observability.Init(observability.LogConfig{Level: cfg.Logging.Level})
	logger := observability.ServerLogger

	store, err := jobstore.Open(ctx, jobstore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	mgr := jobmanager.New(store, clockid.New())

	if cfg.Health.Enabled {
		handlers.InitHealthManager(versionInfo.Version)
		handlers.GetHealthManager().RegisterChecker("store", storeHealthChecker{store: store})
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, mgr)

	httpServer := &http.Server{
		Addr:         srv.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Sugar().Infow("starting server", "addr", httpServer.Addr)

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-stop:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/imisu/internal/config"
	"github.com/hamed0406/imisu/internal/httpapi"
	"github.com/hamed0406/imisu/internal/logging"
	"github.com/hamed0406/imisu/internal/metrics"
	"github.com/hamed0406/imisu/internal/monitor"
	"github.com/hamed0406/imisu/internal/repo/memory"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the health routes (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	abs, _ := filepath.Abs(configPath)
	logger.Info("config_loaded",
		zap.String("path", abs),
		zap.Int("services", len(cfg.Services)),
	)
	if cfg.ExposeFullAPI {
		logger.Warn("full_api_exposed", zap.String("detail", "everyone can see the internal targets you have configured"))
	}

	opts := httpapi.Options{
		ExposeFullAPI:     cfg.ExposeFullAPI,
		AllowedOrigins:    cfg.AllowedOrigins,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}
	var obs monitor.Observer
	if cfg.ExposeMetrics {
		rec := metrics.NewRecorder()
		obs, opts.Metrics = rec, rec.Handler()
	}

	ev := newEvaluator(cfg, logger, obs)
	api := httpapi.NewServer(logger, memory.New(cfg.Services), ev, monitor.NewAggregator(ev, cfg.CheckConcurrency), opts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("api_shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"telecom-inbound/internal/config"
	"telecom-inbound/pkg/logger"
)

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and internal API server with the TTL sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Root context that cancels on shutdown
			rootCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}

			a, err := buildApp(rootCtx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sweeper := cron.New()
			if _, err := sweeper.AddFunc(cfg.Routing.SweepSchedule, func() {
				sweep(rootCtx, a, log)
			}); err != nil {
				return err
			}
			sweeper.Start()

			r := gin.New()
			r.Use(gin.Recovery())
			r.Use(logger.Middleware(log))
			registerRoutes(r, a)

			srv := &http.Server{
				Addr:              cfg.HTTPAddr(),
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "sweep", cfg.Routing.SweepSchedule)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", "err", err)
					stop()
				}
			}()

			<-rootCtx.Done()
			log.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown failed", "err", err)
			}
			// Wait for a running sweep to finish.
			select {
			case <-sweeper.Stop().Done():
			case <-shutdownCtx.Done():
			}
			return logger.ShutdownFlush(shutdownCtx, 2*time.Second)
		},
	}
}

func sweep(ctx context.Context, a *app, log *slog.Logger) {
	n, err := a.machine.Sweep(ctx)
	if err != nil {
		log.Error("state sweep failed", "err", err)
		return
	}
	if n > 0 {
		log.Info("expired conversation states deactivated", "count", n)
	}
}

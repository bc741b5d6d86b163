package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "mealcal/internal/log"
	"mealcal/internal/refresh"
	"mealcal/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled cache refresh",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			a.cfg.Listen = listen
		}
		noRefresh, _ := cmd.Flags().GetBool("no-refresh")
		return serve(a, !noRefresh)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().Bool("no-refresh", false, "do not run the cron refresh job")
}

func serve(a *app, withRefresh bool) error {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *refresh.Scheduler
	if withRefresh {
		var err error
		sched, err = refresh.New(a.service, refresh.Options{
			Schedule:    a.cfg.RefreshCron,
			Zone:        a.service.ResolveZone(""),
			HorizonDays: a.cfg.HorizonDays,
		})
		if err != nil {
			return err
		}
		sched.Start()
		// Warm the cache right away instead of waiting for the first tick.
		go sched.RunOnce(ctx)
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           web.NewServer(a.cfg, a.service, a.registry).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case serveErr = <-errCh:
		appLog.Error("HTTP server failed", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	appLog.Info("mealcal exiting", "pid", os.Getpid())
	return serveErr
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/skyhub/flightboard/internal/cache"
	"github.com/skyhub/flightboard/internal/config"
	"github.com/skyhub/flightboard/internal/httpapi"
	"github.com/skyhub/flightboard/internal/httpclient"
	"github.com/skyhub/flightboard/internal/ratelimit"
	"github.com/skyhub/flightboard/internal/schedule"
	"github.com/skyhub/flightboard/internal/tracker"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flightboard HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (overrides config)")

	return cmd
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outbound := httpclient.New()
	store := cache.New(cfg.CacheMaxEntries)
	upstreamLimiter := ratelimit.NewUpstreamLimiter(ratelimit.ScheduleMinInterval)
	clientLimiter := ratelimit.NewClientLimiter(ratelimit.ClientRequestLimit, ratelimit.ClientRequestWindow)

	scheduleClient := schedule.NewClient(outbound, cfg.ScheduleBaseURL, upstreamLimiter, logger)
	trackerClient := tracker.NewClient(outbound, cfg.TrackerBaseURL, logger)

	api := httpapi.New(cfg, logger, store, clientLimiter, scheduleClient, trackerClient)

	// Housekeeping: drop client-limiter buckets whose window has fully
	// elapsed, so one-shot visitors don't accumulate for the process
	// lifetime.
	janitor := cron.New()
	if _, err := janitor.AddFunc("@every 5m", func() {
		if removed := clientLimiter.PruneIdle(); removed > 0 {
			logger.Debugf("pruned %d idle client limiter buckets", removed)
		}
	}); err != nil {
		return fmt.Errorf("scheduling limiter janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // aggregations can take many paced pages
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("flightboard listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

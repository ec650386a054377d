package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/menmos/rangeserve"
	"github.com/menmos/rangeserve/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file (default: user config directory)")
	profileName := flag.String("profile", config.DefaultProfileName, "configuration profile to run")
	flag.Parse()

	profile, err := config.LoadProfile(*configPath, *profileName)
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}

	logger, err := rangeserve.NewLogger(profile.LogLevel, profile.LogFormat)
	if err != nil {
		log.Fatalf("Error configuring logging: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *profile, logger); err != nil {
		logger.Fatalf("Server stopped: %s", err)
	}
}

func run(ctx context.Context, profile config.Profile, logger *log.Logger) error {
	if err := os.MkdirAll(profile.Root, 0o755); err != nil {
		return errors.Wrap(err, "failed to create storage root")
	}

	httpServer := &http.Server{
		Addr:              profile.Listen,
		Handler:           rangeserve.NewServerFromProfile(profile, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithFields(log.Fields{"listen": profile.Listen, "root": profile.Root}).Info("serving videos")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listener failed")
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

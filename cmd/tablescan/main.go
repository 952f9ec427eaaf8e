package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tablescan/tablescan/internal/cli/tablescan"
	"github.com/tablescan/tablescan/internal/config"
	"github.com/tablescan/tablescan/internal/observability"
	"github.com/tablescan/tablescan/internal/storage"
	s3store "github.com/tablescan/tablescan/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tablescan")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var archive storage.Archive
	if cfg.Archive.Enabled {
		bucket, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		archive = bucket
	}

	code := tablescan.Run(ctx, os.Args[1:], tablescan.Options{
		Config:  cfg,
		Logger:  logger,
		Archive: archive,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	stop()
	os.Exit(code)
}

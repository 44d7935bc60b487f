package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"igloader/internal/downloader"
	"igloader/pkg/api"
	"igloader/pkg/auth"
	"igloader/pkg/config"
	"igloader/pkg/instagram"
	"igloader/pkg/loader"
	"igloader/pkg/logger"
	"igloader/pkg/metrics"
	"igloader/pkg/ratelimit"
	"igloader/pkg/retry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download API server",
	Long: `Run the HTTP server. Posts are written below the base download
directory (default /app/downloads, overridden by DOWNLOAD_DIR).

Session cookies are taken from the configuration when set, otherwise
from the stored account named by --account, otherwise from the most
recently stored account. Without any, Instagram is queried anonymously.`,
	Example: `  igloader serve
  igloader serve --addr 127.0.0.1:8000 --download-dir ./downloads
  DOWNLOAD_DIR=/data igloader serve --account myaccount`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default 0.0.0.0:8000)")
	serveCmd.Flags().String("download-dir", "", "base directory for downloads")
	serveCmd.Flags().String("account", "", "stored account to use for Instagram requests")
	serveCmd.Flags().Int("concurrent", 0, "concurrent media downloads per post")
	serveCmd.Flags().Int("rate-limit", 0, "Instagram requests per minute")
	serveCmd.Flags().Bool("metrics", true, "expose /metrics")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, flagMap(cmd, "addr", "download-dir", "account", "concurrent", "rate-limit", "metrics"))
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	creds, err := auth.NewDefaultManager()
	if err != nil {
		log.WithError(err).Warn("Credential stores unavailable, using configured cookies only")
	}

	server, err := buildServer(cfg, creds, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx)
}

// buildServer wires the Instagram client, loader and API server from cfg
func buildServer(cfg *config.Config, creds *auth.Manager, log logger.Logger) (*api.Server, error) {
	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)

	client := instagram.NewClientWithOptions(instagram.Options{
		Timeout:   cfg.Download.RequestTimeout,
		UserAgent: cfg.Instagram.UserAgent,
		AppID:     cfg.Instagram.AppID,
		Retry:     retry.FromConfig(cfg.Retry, log),
		Limiter:   limiter,
	}, log)

	session, err := auth.ResolveSession(cfg.Instagram, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Instagram session: %w", err)
	}
	if session != nil {
		client.SetSession(session.SessionID, session.CSRFToken)
		if session.UserAgent != "" {
			client.SetHeader("User-Agent", session.UserAgent)
		}
	}
	if client.Authenticated() && session != nil {
		log.WithFields(map[string]interface{}{
			"source":   session.Source,
			"base_url": client.BaseURL(),
		}).Info("Using Instagram session")
	} else {
		log.WithField("base_url", client.BaseURL()).Warn("No Instagram session configured, requests are anonymous")
	}

	videos := downloader.NewGotFetcher(client.Headers(), cfg.Download.VideoChunks)
	mediaLimiter := client.Limiter()
	if cfg.RateLimit.MediaBurst > 0 {
		mediaLimiter = ratelimit.NewTokenBucket(cfg.RateLimit.MediaBurst, time.Minute)
	}

	retriever := loader.New(client, videos, mediaLimiter, loader.Options{
		FileNamePattern: cfg.Output.FileNamePattern,
		SaveMetadata:    cfg.Output.SaveMetadata,
		SaveCaption:     cfg.Output.SaveCaption,
		SkipVideos:      cfg.Download.SkipVideos,
		Concurrency:     cfg.Download.ConcurrentDownloads,
	}, log)

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.Server.MetricsEnabled {
		rec = metrics.NewProm("igloader")
	}

	return api.NewServer(cfg, retriever, log, rec), nil
}

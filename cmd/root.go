package cmd

import (
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"album-scanner/config"
	"album-scanner/crawler"
	"album-scanner/discovery"
	"album-scanner/logging"
)

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "album-scanner",
		Short: "Discover the images shown on a web page",
		Long: `Album scanner finds every image on a page, including CSS background
images, pairs each one with the link around or inside it, and reports
them as they are discovered.

Pages can be scanned once from the command line or kept under watch by
the HTTP service, which accepts the album control messages and streams
new images to its clients.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd(version))
	cmd.AddCommand(newScanCmd())

	return cmd
}

func newLogger(cfg *config.Settings, w io.Writer) *logrus.Logger {
	return logging.NewLoggerTo(w, logging.LogLevel(cfg.Log.Level))
}

func newFetcher(cfg *config.Settings, logger logrus.FieldLogger) crawler.Fetcher {
	return crawler.NewFetcher(cfg.Colly.Enabled,
		crawler.HTTPConfig{
			UserAgent:           cfg.Crawler.UserAgent,
			Timeout:             cfg.Crawler.Timeout,
			MaxIdleConns:        cfg.Crawler.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Crawler.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.Crawler.IdleConnTimeout,
			TLSHandshakeTimeout: cfg.Crawler.TLSHandshakeTimeout,
		},
		crawler.CollyConfig{
			UserAgent:   cfg.Colly.UserAgent,
			Delay:       cfg.Colly.Delay,
			RandomDelay: cfg.Colly.RandomDelay,
			Parallelism: cfg.Colly.Parallelism,
			DomainGlob:  cfg.Colly.DomainGlob,
			Timeout:     cfg.Colly.Timeout,
			DebugMode:   cfg.Colly.DebugMode,
			Logger:      logger,
		},
	)
}

func scanOptions(cfg *config.Settings) discovery.Options {
	mode := discovery.ModePolling
	if cfg.Scanner.Mode == string(discovery.ModeMutation) {
		mode = discovery.ModeMutation
	}
	return discovery.Options{
		Mode:             mode,
		Interval:         cfg.Scanner.Interval,
		FallbackInterval: cfg.Scanner.FallbackInterval,
	}
}

func elapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}

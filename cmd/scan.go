package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"album-scanner/config"
	"album-scanner/crawler"
	"album-scanner/discovery"
	"album-scanner/export"
	"album-scanner/extract"
	"album-scanner/messaging"
	"album-scanner/settings"
)

const formatJSON = "json"

type scanOpts struct {
	url              string
	format           string
	watch            time.Duration
	remote           string
	tabID            string
	stream           bool
	defaultSelection bool
	mode             string
}

type scanResult struct {
	URL         string                  `json:"url"`
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Count       int                     `json:"count"`
	Images      []discovery.ImageRecord `json:"images"`
}

func newScanCmd() *cobra.Command {
	var opts scanOpts

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a page for images",
		Long: `Fetch a page and print every image found on it.

With --watch the page is re-fetched on the scan interval until the
duration elapses, so images added later are picked up too. --stream
prints each image as a JSON line the moment it is found and --remote
forwards them to a running album service.`,
		Example: `  album-scanner scan https://example.com/album
  album-scanner scan https://example.com/album --format gallery > album.html
  album-scanner scan https://example.com/album --watch 1m --stream`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.url = args[0]
			cfg := config.Load()
			if opts.remote == "" {
				opts.remote = cfg.Messaging.RemoteURL
			}
			if opts.mode != "" {
				cfg.Scanner.Mode = opts.mode
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runScan(cmd.Context(), cfg, opts, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatJSON, "output format: json, list, html, mosaic, gallery or markdown")
	cmd.Flags().DurationVarP(&opts.watch, "watch", "w", 0, "keep scanning for this long")
	cmd.Flags().StringVar(&opts.remote, "remote", "", "album service base URL to forward images to (overrides MESSAGING_URL)")
	cmd.Flags().StringVar(&opts.tabID, "tab", "", "tab ID reported to the remote service")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "print each image as a JSON line when found")
	cmd.Flags().BoolVar(&opts.defaultSelection, "default-selection", false, "drop known tracking and icon images from the output")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "scan trigger mode: polling or mutation (overrides SCAN_MODE)")

	return cmd
}

func runScan(ctx context.Context, cfg *config.Settings, opts scanOpts, out io.Writer, logger *logrus.Logger) error {
	if opts.format != formatJSON && !export.Known(opts.format) {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.tabID == "" {
		opts.tabID = uuid.NewString()
	}

	fetcher := newFetcher(cfg, logger)
	messenger := scanMessenger(cfg, opts, out)
	log := logger.WithFields(logrus.Fields{"url": opts.url, "tab_id": opts.tabID})

	var (
		source discovery.Source
		res    = scanResult{URL: opts.url}
	)
	if opts.watch > 0 {
		source = crawler.NewFetchSource(opts.url, fetcher)
	} else {
		doc, err := fetcher.FetchDocument(ctx, opts.url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", opts.url, err)
		}
		res.Title = extract.Title(doc)
		res.Description = extract.Description(doc)
		source = crawler.SnapshotOf(opts.url, doc)
	}

	engine := discovery.NewEngine(ctx, opts.tabID, source, messenger, scanOptions(cfg), log)
	defer engine.Close()

	if opts.watch > 0 {
		log.WithField("duration", opts.watch.String()).Info("Watching page")
		engine.Start()
		select {
		case <-time.After(opts.watch):
		case <-ctx.Done():
		}
		engine.Stop()
	} else {
		engine.ScanOnce(ctx)
	}

	res.Images = engine.Records()
	res.Count = len(res.Images)
	log.WithField("count", res.Count).Info("Scan finished")

	if opts.stream {
		return nil
	}
	return writeScan(out, cfg, opts, res, log)
}

// scanMessenger picks where discovered images are reported while the
// scan runs. Without --stream or --remote they are only collected.
func scanMessenger(cfg *config.Settings, opts scanOpts, out io.Writer) discovery.Messenger {
	switch {
	case opts.remote != "":
		endpoint := strings.TrimRight(opts.remote, "/") + "/api/message"
		return messaging.NewHTTPMessenger(endpoint, opts.tabID, cfg.Messaging.Timeout)
	case opts.stream:
		return messaging.NewWriterMessenger(out)
	}
	return discovery.MessengerFunc(func(context.Context, discovery.Message) error { return nil })
}

func writeScan(out io.Writer, cfg *config.Settings, opts scanOpts, res scanResult, log logrus.FieldLogger) error {
	if opts.defaultSelection {
		res.Images = export.DefaultSelection(res.Images)
		res.Count = len(res.Images)
	}

	if opts.format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	prefs, err := settings.NewStore(cfg.Export.SettingsPath).Load()
	if err != nil {
		log.WithError(err).Warn("Using default export settings")
	}
	rendered, err := export.Render(opts.format, res.Images, prefs)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

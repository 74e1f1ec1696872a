package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/async"
	"github.com/dmaltsev/media-courier/internal/acquire"
	"github.com/dmaltsev/media-courier/internal/archive"
	"github.com/dmaltsev/media-courier/internal/bot"
	"github.com/dmaltsev/media-courier/internal/cache"
	"github.com/dmaltsev/media-courier/internal/correlate"
	"github.com/dmaltsev/media-courier/internal/feed"
	"github.com/dmaltsev/media-courier/internal/listing"
	"github.com/dmaltsev/media-courier/internal/transport"
	"github.com/dmaltsev/media-courier/internal/webdoc"
	"github.com/dmaltsev/media-courier/provider/raw"
	"github.com/dmaltsev/media-courier/provider/youtube"
	"github.com/dmaltsev/media-courier/provider/ytdlp"
)

func main() {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = media_courier.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "media-courier",
		Usage: "correlate media listings across sites, download and deliver matches",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "correlate the listing and print matches",
				ArgsUsage: "[base] [pages]",
				Action: func(c *cli.Context) error {
					return runBotCommand(ctx, "/list", c.Args().Slice())
				},
			},
			{
				Name:      "resolve",
				Usage:     "extract title and asset link from a detail page",
				ArgsUsage: "link",
				Action: func(c *cli.Context) error {
					return runBotCommand(ctx, "/resolve", c.Args().Slice())
				},
			},
			{
				Name:      "acquire",
				Usage:     "download an asset and deliver it",
				ArgsUsage: "link [title]",
				Action: func(c *cli.Context) error {
					return runAcquire(ctx, c.Args().Slice())
				},
			},
			{
				Name:      "publish",
				Usage:     "correlate the listing and publish an HTML page",
				ArgsUsage: "[base] [pages]",
				Action: func(c *cli.Context) error {
					return runBotCommand(ctx, "/publish", c.Args().Slice())
				},
			},
			{
				Name:      "feed",
				Usage:     "correlate the listing and write an RSS feed",
				ArgsUsage: "[base] [pages]",
				Action: func(c *cli.Context) error {
					return runBotCommand(ctx, "/feed", c.Args().Slice())
				},
			},
			{
				Name:  "history",
				Usage: "show recently archived matches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "show at most `N` records",
					},
				},
				Action: func(c *cli.Context) error {
					return runHistory(c.Int("limit"))
				},
			},
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		if err = <-result; err != nil {
			logger.Fatal(err.Error())
		}
	}
}

// courier bundles everything one command invocation needs.
type courier struct {
	config   media_courier.Config
	router   *bot.Router
	pipeline *acquire.Pipeline
	archive  *archive.Store
	cache    *cache.Cache
}

func newCourier() (*courier, error) {
	config, err := media_courier.LoadConfig()
	if err != nil {
		return nil, err
	}

	co := &courier{config: config}

	pageCache := webdoc.Cache(webdoc.NilCache{})
	if config.CachePath != "" {
		co.cache, err = cache.Open(config.CachePath, config.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("opening content cache: %w", err)
		}
		pageCache = co.cache
	}
	fetcher := webdoc.NewService(webdoc.Config{
		Cache:   pageCache,
		Timeout: config.FetchTimeout,
	})

	orchestrator := correlate.NewOrchestrator(
		listing.NewFetcher(fetcher),
		correlate.NewResolver(fetcher, correlate.ResolverConfig{
			SearchBaseURL:  config.SearchBaseURL,
			DetailBaseURL:  config.DetailBaseURL,
			MediaCDNPrefix: config.MediaCDNPrefix,
		}),
		correlate.NewValidator(fetcher),
		correlate.OrchestratorConfig{
			MaxInFlight:  config.MaxInFlight,
			ListingLimit: config.ListingLimit,
		},
	)

	registry := media_courier.NewProviderRegistry(
		youtube.New().WithPriority(-100),
		raw.NewConfig().Provider().WithPriority(-1),
		ytdlp.Config{
			Binary:             config.YTDLPPath,
			ExternalDownloader: config.ExternalDownloader,
			Protocols:          ytdlp.NewConfig().Protocols,
		}.Provider(),
	)

	console := transport.NewConsole(os.Stdout)
	co.pipeline = acquire.NewPipeline(
		acquire.Config{
			WorkRoot:    config.WorkRoot,
			TitleMaxLen: config.TitleMaxLen,
			ToolTimeout: config.ToolTimeout,
		},
		registry,
		console,
		acquire.FFmpegThumbnailer{Binary: config.FFmpegPath, Offset: config.ThumbnailOffset},
	)

	services := bot.Services{
		Correlator: orchestrator,
		Inspector:  correlate.NewValidator(fetcher),
		Acquirer:   co.pipeline,
		Publisher:  feed.NewFilePublisher(config.PublishDir),
	}
	if config.ArchivePath != "" {
		co.archive, err = archive.Open(config.ArchivePath, zap.L())
		if err != nil {
			co.close()
			return nil, fmt.Errorf("opening archive: %w", err)
		}
		services.Archive = co.archive
	}

	co.router = bot.NewRouter(console, services, bot.Config{
		DefaultBaseURL: config.ListingBaseURL,
		DefaultPages:   config.DefaultPages,
		FeedPath:       config.FeedPath,
		Channel:        feed.DefaultChannelConfig(),
	})
	return co, nil
}

func (co *courier) close() {
	if co.pipeline != nil {
		co.pipeline.Close()
	}
	if co.archive != nil {
		_ = co.archive.Close()
	}
	if co.cache != nil {
		_ = co.cache.Close()
	}
}

// runBotCommand routes a CLI invocation through the same command surface the chat bot uses,
// with the console as the status channel.
func runBotCommand(ctx context.Context, command string, args []string) error {
	co, err := newCourier()
	if err != nil {
		return err
	}
	defer co.close()

	line := command
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	co.router.Handle(ctx, "console", line)
	return nil
}

func runAcquire(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: acquire link [title]")
	}
	link := args[0]
	title := link
	if len(args) >= 2 {
		title = strings.Join(args[1:], " ")
	}

	co, err := newCourier()
	if err != nil {
		return err
	}
	defer co.close()

	logger := zap.S()
	bar := progressbar.DefaultBytes(1, "downloading")
	events := co.pipeline.Events()
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		for event := range events.Receive() {
			switch e := event.(type) {
			case acquire.JobProgress:
				if e.Expected > 0 && bar.GetMax() != e.Expected {
					bar.ChangeMax(e.Expected)
				}
				_ = bar.Set(e.Downloaded)
			case acquire.JobUpdated:
				changes, err := diff.Diff(e.OldState, e.Job())
				if err != nil {
					logger.Errorf("failed to diff old and new job state: %v", err)
					continue
				}
				for _, change := range changes {
					logger.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
				}
			}
		}
	}()

	state, err := co.pipeline.Run(ctx, "console", link, title)
	events.Close()
	<-watcherDone
	if err != nil {
		return fmt.Errorf("acquisition failed: %w", err)
	}
	logger.Infof("Delivered %s (status %s)", title, state.Status)
	return nil
}

func runHistory(limit int) error {
	config, err := media_courier.LoadConfig()
	if err != nil {
		return err
	}
	if config.ArchivePath == "" {
		return fmt.Errorf("no archive configured, set COURIER_ARCHIVE_PATH")
	}
	store, err := archive.Open(config.ArchivePath, zap.L())
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("archive is empty")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %-12s  %s\n  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Key, r.Title, r.CanonicalLink)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/async"
	"github.com/fetchtube/fetchtube/engine"
	"github.com/fetchtube/fetchtube/internal/fetch"
	"github.com/fetchtube/fetchtube/internal/progress"
	_ "github.com/fetchtube/fetchtube/providers"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "fetch-video",
		Usage: "download a single video without the bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: ".",
				Usage: "save downloaded video under `DIR`",
			},
			&cli.StringFlag{
				Name:  "tier",
				Value: string(fetchtube.TierVideoHigh),
				Usage: "quality `TIER`: video_high, video_medium, or audio",
			},
		},
		Action: func(c *cli.Context) error {
			tier, err := fetchtube.ParseTier(c.String("tier"))
			if err != nil {
				return err
			}
			for _, source := range c.Args().Slice() {
				if err := download(ctx, source, c.String("target"), tier); err != nil {
					return err
				}
			}
			return nil
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
		err = <-result
		if err != nil && err != context.Canceled {
			logger.Fatal(err.Error())
		}
	}
}

func download(ctx context.Context, source string, target string, tier fetchtube.Tier) error {
	logger := zap.S()
	logger.Infof("Downloading from %s into %s", source, target)

	match, err := fetchtube.DefaultProviderRegistry.Match(source)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	logger.Info("Fetching metadata...")
	info, err := match.Source.Recon(ctx)
	if err != nil {
		return fmt.Errorf("metadata fetch failed: %w", err)
	}
	logger.Infof("Found: %s [%s]", info.Title, info.ID)

	if err := engine.Install(ctx); err != nil {
		return err
	}

	// No delivery gate here: local saves have no transport ceiling.
	orch := fetch.NewOrchestrator(engine.NewYTDLP(), fetchtube.DefaultPolicy(), target, 1<<62)

	bar := progressbar.DefaultBytes(1, "downloading")
	res, err := orch.Download(ctx, fetch.Request{
		ID:     info.ID,
		ChatID: int64(os.Getpid()),
		URL:    match.Source.URL(),
		Tier:   tier,
		OnProgress: func(u progress.Update) {
			if u.TotalBytes > 0 && bar.GetMax64() != u.TotalBytes {
				bar.ChangeMax64(u.TotalBytes)
			}
			_ = bar.Set64(u.DownloadedBytes)
		},
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	logger.Infof("Download complete: %s", res.Path)

	return nil
}

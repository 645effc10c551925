package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/async"
	"github.com/fetchtube/fetchtube/database"
	"github.com/fetchtube/fetchtube/engine"
	"github.com/fetchtube/fetchtube/internal/bot"
	"github.com/fetchtube/fetchtube/internal/fetch"
	"github.com/fetchtube/fetchtube/internal/session"
	_ "github.com/fetchtube/fetchtube/providers"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "fetchtube",
		Usage: "Telegram bot that downloads videos from supported platforms",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "Telegram bot API `TOKEN`",
				EnvVars:  []string{"BOT_TOKEN"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "store session and history databases in `DIR`",
			},
			&cli.StringFlag{
				Name:  "temp-dir",
				Value: os.TempDir(),
				Usage: "base `DIR` for per-chat download directories",
			},
			&cli.Int64Flag{
				Name:  "size-limit",
				Value: fetch.DefaultSizeLimit >> 20,
				Usage: "refuse to send files larger than `MIB` mebibytes",
			},
			&cli.DurationFlag{
				Name:  "session-ttl",
				Value: session.DefaultTTL,
				Usage: "how long a stored link stays valid",
			},
			&cli.Float64Flag{
				Name:  "progress-step",
				Value: 10,
				Usage: "minimum percentage-point advance between progress edits",
			},
		},
		Action: func(c *cli.Context) error {
			return run(ctx, logger, c)
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

func run(ctx context.Context, logger *zap.Logger, c *cli.Context) error {
	dataDir := c.String("data-dir")
	if dataDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("cannot determine data dir: %w", err)
		}
		dataDir = filepath.Join(configDir, "fetchtube")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	sessions, err := session.Open(filepath.Join(dataDir, "sessions.db"), c.Duration("session-ttl"))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	history, err := database.New(filepath.Join(dataDir, "history.db"), logger)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer history.Close()
	if err := history.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}

	if err := engine.Install(ctx); err != nil {
		return err
	}

	orch := fetch.NewOrchestrator(
		engine.NewYTDLP(),
		fetchtube.DefaultPolicy(),
		c.String("temp-dir"),
		c.Int64("size-limit")<<20,
	)

	b, err := bot.New(bot.Config{
		Token:        c.String("token"),
		ProgressStep: c.Float64("progress-step"),
	}, sessions, history, orch)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	go sessions.SweepEvery(10*time.Minute, ctx.Done())

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

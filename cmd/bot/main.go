package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/gateway"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/scheduler"
	"github.com/robalyx/starboard/internal/setup"
	"github.com/robalyx/starboard/internal/setup/telemetry"
	"github.com/robalyx/starboard/pkg/utils"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	defaultSweepSchedule  = "@every 5m"
	defaultExpirySchedule = "@every 10m"
	shutdownTimeout       = 30 * time.Second
)

var ErrMissingToken = errors.New("no Discord token configured")

func main() {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Run the starboard Discord bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Usage: "Directory of the bot log sessions",
				Value: BotLogDir,
			},
			&cli.StringFlag{
				Name:  "expiry-schedule",
				Usage: "Cron spec of the premium expiry job",
				Value: defaultExpirySchedule,
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, c.String("log-dir"))
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Cleanup(cleanupCtx)
	}()

	token := app.Config.Bot.Discord.Token
	if token == "" {
		return ErrMissingToken
	}

	downloader := gateway.NewDownloader(utils.GetDownloadRetryOptions(), app.Logger)
	bot, err := gateway.New(
		token,
		app.Engine,
		setup.DispatcherConfig(&app.Config.Bot.Dispatch),
		downloader,
		app.Metrics,
		app.Logger,
	)
	if err != nil {
		return err
	}

	sweepSchedule := app.Config.Bot.SweepSchedule
	if sweepSchedule == "" {
		sweepSchedule = defaultSweepSchedule
	}

	jobs := scheduler.New(app.Logger)
	if err := jobs.Add("cooldown-sweep", sweepSchedule,
		scheduler.SweepJob(app.Engine.Governor(), app.Logger)); err != nil {
		return err
	}
	if err := jobs.Add("premium-expiry", c.String("expiry-schedule"),
		scheduler.ExpiryJob(app.DB.Model().Premium(), app.Premium, clockwork.NewRealClock(), app.Logger)); err != nil {
		return err
	}

	// Tier changes made by the db tool or other shards
	go func() {
		if err := app.Premium.Subscribe(ctx, app.Engine.OnTierChange); err != nil {
			app.Logger.Error("Premium subscription stopped", zap.Error(err))
		}
	}()

	// Target edits and deletions made by the db tool or other shards
	go func() {
		err := app.Notifier.Subscribe(ctx, func(change redis.ConfigChange) {
			app.Engine.OnConfigChange(change.GuildID, change.TargetID, change.Deleted)
		})
		if err != nil {
			app.Logger.Error("Config change subscription stopped", zap.Error(err))
		}
	}()

	if err := bot.Open(ctx); err != nil {
		return err
	}
	jobs.Start()

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")
	<-ctx.Done()

	jobs.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	bot.Close(closeCtx)

	return nil
}

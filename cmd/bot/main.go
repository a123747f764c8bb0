package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/bot"
	"github.com/skysanctuary/warden/internal/giveaway"
	"github.com/skysanctuary/warden/internal/progression"
	"github.com/skysanctuary/warden/internal/roster"
	"github.com/skysanctuary/warden/internal/setup"
	"github.com/skysanctuary/warden/internal/ticket"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	app := &cli.Command{
		Name:  "warden",
		Usage: "Guild community bot",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the bot and the daily roster sync",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runBot(ctx)
				},
			},
			{
				Name:  "sync-once",
				Usage: "Run a single roster sync pass and exit",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return syncOnce(ctx)
				},
			},
		},
		DefaultCommand: "run",
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// services bundles the wired domain layer.
type services struct {
	app       *setup.App
	bot       *bot.Bot
	rosterJob *roster.Job
}

// buildServices wires the domain services onto the app dependencies and
// creates the Discord client.
func buildServices(ctx context.Context) (*services, error) {
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	resolver, err := progression.NewResolver(progression.DefaultTierTable(), progression.DefaultBonusOverlay())
	if err != nil {
		return nil, err
	}

	adapter := bot.NewGuildAdapter(app.Config.Discord.GuildID, resolver.Baseline(), app.Logger)
	ledger := progression.NewLedger(app.DB.Progress(), &app.Config.Progression, app.Logger)
	syncer := progression.NewSyncer(resolver, adapter, app.Logger)
	tickets := ticket.NewManager(adapter, ledger, app.Logger)
	giveaways := giveaway.NewTracker(app.Logger)
	rosterJob := roster.NewJob(adapter, app.Hypixel, app.Mojang, adapter, ledger, syncer,
		resolver.Baseline(), &app.Config.Roster, &app.Config.Hypixel, app.Logger)

	discordBot, err := bot.New(app.Config, adapter, ledger, resolver, syncer,
		tickets, giveaways, rosterJob, app.Hypixel, app.Mojang, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &services{app: app, bot: discordBot, rosterJob: rosterJob}, nil
}

// runBot starts the gateway connection and the roster sync schedule, then
// waits for an interrupt.
func runBot(ctx context.Context) error {
	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.app.CleanupApp()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := svc.bot.Start(jobCtx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	go svc.rosterJob.Start(jobCtx)

	svc.app.Logger.Info("Bot started, waiting for interrupt signal")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	svc.bot.Close()
	return nil
}

// syncOnce runs one roster reconciliation pass over REST, without opening
// the gateway.
func syncOnce(ctx context.Context) error {
	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.app.CleanupApp()

	report, err := svc.rosterJob.Run(ctx)
	if err != nil {
		return fmt.Errorf("roster sync failed: %w", err)
	}

	svc.app.Logger.Info("Roster sync complete",
		zap.Int("processed", report.Processed),
		zap.Int("demoted", report.Demoted),
		zap.Int("failed", report.Failed),
		zap.Int64("xpAwarded", report.XPAwarded))
	return nil
}

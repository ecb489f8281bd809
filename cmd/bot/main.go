package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"release_notification_bot/internal/app"
	"release_notification_bot/internal/infra/config"
	idb "release_notification_bot/internal/infra/database"
	"release_notification_bot/internal/infra/logger"
	"release_notification_bot/internal/infra/rakuten"
	"release_notification_bot/internal/infra/scheduler"
	"release_notification_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup, so it returns an exit code instead of exiting.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Errorf("FATAL: Could not load application configuration: %v", err)
		return 1
	}
	logger.Init(cfg)
	mainLogger := logger.ForComponent("main")

	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"run_mode":    cfg.RunMode,
		"timezone":    cfg.Location.String(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.Errorf("FATAL: Could not connect to database: %v", err)
		return 1
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.Errorf("FATAL: Could not prepare database schema: %v", err)
		return 1
	}
	entryRepo := idb.NewPostgresEntryRepository(db)
	mainLogger.Info("Database connection established and entry repository initialized.")

	// Catalog lookup
	lookup, err := rakuten.New(rakuten.Config{
		ApplicationID:     cfg.RakutenAppID,
		AffiliateID:       cfg.RakutenAffiliateID,
		RequestsPerSecond: cfg.RakutenRequestsPerSecond,
	})
	if err != nil {
		mainLogger.Errorf("FATAL: Could not create Rakuten client: %v", err)
		return 1
	}

	// Telegram bot; the poller is only started in daemon mode.
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.ForComponent("telebot").WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	})
	if err != nil {
		mainLogger.Errorf("FATAL: Could not create Telegram bot: %v", err)
		return 1
	}
	messenger := telegram.NewTelebotAdapter(bot, telegram.NewRenderer(cfg.AmazonTrackingID))

	// Reconciliation engine
	filter, err := app.NewCandidateFilter(cfg.Rules, cfg.Location)
	if err != nil {
		mainLogger.Errorf("FATAL: Invalid matching rules: %v", err)
		return 1
	}
	reconciliation := app.NewReconciliationServiceImpl(
		entryRepo,
		lookup,
		messenger,
		app.NewNormalizer(cfg.Rules),
		filter,
		app.NewDecider(cfg.ReminderDays),
		cfg.Location,
		logger.Log.WithField("app", "release_notification_bot"),
	)

	if cfg.RunMode == config.RunModeOnce {
		return runOnce(ctx, reconciliation, mainLogger)
	}

	// Daemon mode: scheduled passes plus subscription commands.
	notifScheduler := scheduler.NewReconciliationScheduler(reconciliation, logger.Log.WithField("app", "release_notification_bot"), cfg.Location, cfg.CronSpecReconcile)
	if err := notifScheduler.Start(); err != nil {
		mainLogger.Errorf("FATAL: Could not start scheduler: %v", err)
		return 1
	}

	commands := telegram.NewCommands(app.NewSubscriptionService(entryRepo), logger.ForComponent("telegram"))
	telegram.RegisterBotCommands(ctx, bot, commands)
	mainLogger.Info("Bot command handlers registered.")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and Scheduler are running.")

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	notifScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
	return 0
}

// runOnce runs a single pass and maps its outcome to an exit code.
func runOnce(ctx context.Context, service app.ReconciliationService, log *logrus.Entry) int {
	summary, err := service.RunReconciliationPass(ctx)
	if err != nil {
		log.WithError(err).Error("Reconciliation pass failed")
		return 1
	}
	log.WithFields(logrus.Fields{
		"run_id":            summary.RunID,
		"events_dispatched": summary.EventsDispatched,
	}).Info("Reconciliation pass done")
	return 0
}

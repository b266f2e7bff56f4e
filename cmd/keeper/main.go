package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"susu_keeper/internal/app"
	"susu_keeper/internal/domain/deadline"
	"susu_keeper/internal/domain/duty"
	"susu_keeper/internal/infra/automation"
	"susu_keeper/internal/infra/chain"
	"susu_keeper/internal/infra/config"
	idb "susu_keeper/internal/infra/database"
	"susu_keeper/internal/infra/httpapi"
	"susu_keeper/internal/infra/logger"
	"susu_keeper/internal/infra/scheduler"
	"susu_keeper/internal/infra/telegram"
)

func main() {
	fmt.Println("Susu keeper starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"tier_mode":   cfg.DeadlineTierMode,
		"store":       cfg.DeliveryStore,
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chain connection, read-only for the keeper
	chainClient, err := chain.Dial(ctx, cfg.RPCURL, "", cfg.ChainID, logger.Component("chain"))
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to chain RPC")
	}
	defer chainClient.Close()

	groupList, err := config.LoadGroups(cfg.GroupsFile)
	if err != nil {
		mainLogger.WithError(err).Warn("No groups loaded, deadline reminders are idle until a groups file is provided")
	}
	groups := config.StaticGroupSource(groupList)
	mainLogger.WithField("groups", len(groupList)).Info("Groups loaded")

	checker := app.NewPayoutChecker(chainClient, cfg.ChainReadTimeout, logger.Component("payout_checker"))

	// Initialize Database Connection
	var pg *sql.DB
	if cfg.DatabaseURL != "" {
		pg, err = idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer pg.Close()
		if err := idb.EnsurePostgresSchema(ctx, pg); err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare database schema")
		}
		mainLogger.Info("Database connection established successfully.")
	}

	records, closeRecords, err := openDeliveryStore(ctx, cfg, pg)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not open delivery record store")
	}
	defer closeRecords()

	// Task registry is optional for the keeper: without the automation API only reminders and the resolver run
	var registry *app.TaskRegistry
	if cfg.AutomationAPIURL != "" {
		network, err := automation.NewClient(cfg.AutomationAPIURL, cfg.AutomationAPIKey, cfg.AutomationTimeout)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create automation client")
		}
		var mirror duty.Repository = idb.NewMemoryDutyRepository()
		if pg != nil {
			mirror = idb.NewPostgresDutyRepository(pg)
		}
		registry = app.NewTaskRegistry(network, mirror, cfg.ProductName, cfg.AutomationTimeout, logger.Component("task_registry"))
	}

	policy, err := deadline.NewPolicy(cfg.DeadlineTierMode, cfg.DeadlineTierWindow)
	if err != nil {
		mainLogger.WithError(err).Fatal("Invalid deadline tier mode")
	}

	// Initialize Telegram Bot
	var (
		bot       *telebot.Bot
		presenter deadline.Presenter = telegram.NewDisabledPresenter(logger.Component("notifications"))
	)
	if cfg.TelegramToken != "" {
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := logger.Component("telebot").WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Telegram handler error")
			},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}

		adminService := app.NewAdminService(registry, cfg.AdminTelegramID)
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, telegram.NewMemberHandlers(ctx, checker, groups, adminService, cfg.MemberTelegramID, botLogger))
		if registry != nil {
			telegram.RegisterAdminHandlers(bot, telegram.NewAdminHandlers(ctx, adminService, botLogger))
		}
		if cfg.TelegramEnabled() {
			memberPresenter := telegram.NewPresenter(telegram.NewTelebotAdapter(bot), cfg.MemberTelegramID, 0, botLogger)
			telegram.RegisterMemberResponseHandlers(bot, memberPresenter, cfg.MemberTelegramID, botLogger)
			presenter = memberPresenter
		}
		mainLogger.Info("Telegram handlers registered.")
	}

	notifier := app.NewDeadlineNotifier(groups, chainClient, records, presenter, policy, cfg.ChainReadTimeout, logger.Component("deadline_notifier"))

	var refresher scheduler.DutyRefresher
	if registry != nil {
		refresher = registry
	}
	keeperScheduler := scheduler.NewKeeperScheduler(notifier, refresher, logger.Component("scheduler"), cfg.CronSpecDeadlineCheck, cfg.CronSpecDutyRefresh)
	if err := keeperScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	server := httpapi.NewServer(checker, groups, cfg.HTTPAddr, logger.Component("httpapi"))
	go func() {
		if err := server.Start(); err != nil {
			mainLogger.WithError(err).Fatal("Resolver HTTP server failed")
		}
	}()

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	if bot != nil {
		go bot.Start()
	}
	mainLogger.Info("Application setup complete. Scheduler, resolver and bot are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	cancel()
	keeperScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("Resolver HTTP server did not shut down cleanly")
	}
	mainLogger.Info("Application shut down gracefully.")
}

// openDeliveryStore picks the delivery record backend. The returned func releases it.
func openDeliveryStore(ctx context.Context, cfg *config.AppConfig, pg *sql.DB) (deadline.Repository, func(), error) {
	switch cfg.DeliveryStore {
	case config.DeliveryStorePostgres:
		return idb.NewPostgresDeliveryRepository(pg), func() {}, nil
	case config.DeliveryStoreMemory:
		return idb.NewMemoryDeliveryRepository(cfg.DeliveryNamespace), func() {}, nil
	default:
		db, err := idb.NewSQLiteConnection(cfg.DeliveryDBPath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := idb.NewSQLiteDeliveryRepository(ctx, db, cfg.DeliveryNamespace)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	}
}

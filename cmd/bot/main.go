package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leave-bot/internal/config"
	"leave-bot/internal/database"
	"leave-bot/internal/handler"
	"leave-bot/internal/metrics"
	"leave-bot/internal/repository"
	"leave-bot/internal/service"
	"leave-bot/pkg/telegram"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Info("Initializing config...")
	cfg := config.GetBotConfig()
	logrus.Info("Config initialized...")

	log := logrus.StandardLogger()
	log.SetLevel(cfg.LogLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	store, err := repository.NewStore(db)
	if err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	client, err := telegram.NewClient(cfg.TelegramToken, cfg.BotDebug)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Telegram client")
	}
	log.Infof("Authorized on account %s", client.Bot.Self.UserName)

	audit := service.NewAuditService(store, log)
	notifications := service.NewNotificationService(store, client, log)
	settings := service.NewSettingsService(store, audit, log, cfg.DefaultSettings())
	services := handler.Services{
		Users:         service.NewUserService(store, audit, log),
		Teams:         service.NewTeamService(store, audit, log),
		Holidays:      service.NewHolidayService(store, audit, log),
		Balances:      service.NewBalanceService(store, audit, log),
		Settings:      settings,
		Audit:         audit,
		Notifications: notifications,
		Leaves: service.NewLeaveService(store, audit, notifications, log, service.LeaveConfig{
			AllowManagerBackdate: cfg.AllowManagerBackdate,
		}),
	}

	if _, err := settings.Init(ctx); err != nil {
		log.WithError(err).Fatal("Failed to initialize settings")
	}

	if err := services.Users.InitializeAdmin(ctx, cfg.BaseAdminChatID); err != nil {
		log.WithError(err).Warn("Failed to initialize admin")
	} else if cfg.BaseAdminChatID != 0 {
		log.Infof("Admin initialized with chat ID: %d", cfg.BaseAdminChatID)
	}

	if cfg.HolidaysFile != "" {
		if _, err := services.Holidays.ImportFile(ctx, 0, cfg.HolidaysFile); err != nil {
			log.WithError(err).WithField("file", cfg.HolidaysFile).Warn("Failed to import holidays")
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	botHandler := handler.NewHandler(client, services, cfg, log)

	updates := client.Bot.GetUpdatesChan(client.UpdateConfig)

	done := make(chan struct{})
	go func() {
		defer close(done)
		botHandler.HandleUpdates(ctx, updates)
	}()

	log.Info("Bot started. Press Ctrl+C to stop.")
	<-ctx.Done()

	client.Bot.StopReceivingUpdates()
	<-done

	if err := database.Close(db); err != nil {
		log.WithError(err).Warn("Error closing database")
	}

	log.Info("Bot stopped gracefully")
}

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/targetspro/adwatch/internal/alert"
	"github.com/targetspro/adwatch/internal/api"
	"github.com/targetspro/adwatch/internal/auth"
	"github.com/targetspro/adwatch/internal/config"
	"github.com/targetspro/adwatch/internal/database"
	"github.com/targetspro/adwatch/internal/models"
	"github.com/targetspro/adwatch/internal/notify"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Logger = logger

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("auth.jwt_secret is required")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	senders := map[models.ChannelType]notify.Sender{
		models.ChannelEmail:    notify.NewEmailSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.From, cfg.Email.Password),
		models.ChannelTelegram: notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.APIBase),
		models.ChannelWhatsApp: notify.NewWhatsAppSender(db, cfg.WhatsApp.APIBase, cfg.WhatsApp.PhoneID, cfg.WhatsApp.AccessToken, cfg.WhatsApp.TemplateName),
		models.ChannelWebhook:  notify.NewWebhookSender(),
	}
	dispatcher := notify.NewDispatcher(db, senders, cfg.Org.Timezone, cfg.Org.DashboardURL, logger)

	queue := notify.NewQueue(dispatcher, cfg.Dispatch.QueueSize, cfg.Dispatch.Workers, logger)
	queue.Start()
	defer queue.Stop()

	evaluator := alert.NewEvaluator(db, logger)
	manager := alert.NewManager(db, evaluator, queue, logger)

	timeouts := map[models.Severity]time.Duration{
		models.SeverityInfo:     time.Duration(cfg.Escalation.InfoMinutes) * time.Minute,
		models.SeverityWarning:  time.Duration(cfg.Escalation.WarningMinutes) * time.Minute,
		models.SeverityCritical: time.Duration(cfg.Escalation.CriticalMinutes) * time.Minute,
	}
	escalator := alert.NewEscalator(db, dispatcher, cfg.EscalationInterval(), timeouts, logger)
	escalator.Start()
	defer escalator.Stop()

	authn := auth.New(db, cfg.Auth.JWTSecret)
	server := api.NewServer(db, authn, manager, dispatcher, escalator, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("shutting down")
		escalator.Stop()
		queue.Stop()
		os.Exit(0)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("starting server")
	if err := server.Start(cfg.Server.Port); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

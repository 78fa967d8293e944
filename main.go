package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/lease-to-own/internal/admin"
	"github.com/raine/lease-to-own/internal/alerts"
	"github.com/raine/lease-to-own/internal/claims"
	"github.com/raine/lease-to-own/internal/config"
	"github.com/raine/lease-to-own/internal/enrich"
	"github.com/raine/lease-to-own/internal/llm"
	"github.com/raine/lease-to-own/internal/server"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/raine/lease-to-own/internal/trigger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	logFileName = "lease-to-own.log"

	// dispatchDrainTimeout bounds how long in-flight enrichment runs may take
	// to finish after a shutdown signal.
	dispatchDrainTimeout = 2 * time.Minute
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()
	cfg := config.Load()
	zerolog.SetGlobalLevel(cfg.LogLevel)

	closeLog := setupLogging()
	defer closeLog()

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Fatal().Msgf("missing required config: %s", strings.Join(missing, ", "))
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
		closeLog()
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

// setupLogging configures the global logger and returns a function that
// closes the log file, if any.
func setupLogging() func() {
	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return func() {}
	}

	// Local development: log to both stderr and file
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		log.Warn().Err(err).Msg("failed to open log file, logging to stderr only")
		return func() {}
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", logFileName).Msg("logging to file")

	return func() { logFile.Close() }
}

func run(cfg config.Config) error {
	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	encryptionKey, err := storage.DeriveKey(cfg.ContactKey)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	provider, err := llm.New(ctx, llm.Config{
		Name:            cfg.AIProvider,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ai provider: %w", err)
	}
	log.Info().Str("provider", cfg.AIProvider).Msg("ai provider initialized")

	// Repeat runs for the same photos reuse the vision replies
	provider = llm.NewCachedProvider(provider, store)

	channels, err := alertChannels(cfg)
	if err != nil {
		return err
	}
	alertService := alerts.NewService(store, channels)

	orchestrator := enrich.NewOrchestrator(store, store, provider,
		enrich.NewImageFetcher(cfg.ImageFetchTimeout),
		enrich.Options{MaxImages: cfg.MaxVisionImages},
	)

	router := trigger.NewRouter()
	router.Handle("listings/{id}", "listingAlerts", alerts.NewListingAlerts(alertService))
	router.Handle("listings/{id}", "enrichListing", orchestrator)
	router.Handle("users/{id}", "syncRoleClaims", claims.NewSync(store))

	// Runs are not cancelled by shutdown; Shutdown below waits for them
	dispatcher := trigger.NewDispatcher(context.WithoutCancel(ctx), router)
	store.OnChange(func(c storage.Change) {
		dispatcher.Publish(trigger.FromChange(c))
	})

	srv := server.New(server.Deps{
		Users:     store,
		Listings:  store,
		Moderator: admin.NewService(store, alertService),
		Alerts:    alertService,
		Publish:   dispatcher.Publish,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx, cfg.ListenAddr)
	})

	if cfg.AMQPURL != "" {
		source, err := trigger.NewAMQPSource(trigger.AMQPConfig{
			URL:   cfg.AMQPURL,
			Queue: cfg.AMQPQueue,
		}, dispatcher.Publish)
		if err != nil {
			return fmt.Errorf("failed to configure amqp source: %w", err)
		}
		g.Go(func() error {
			return source.Run(gctx)
		})
	}

	runErr := g.Wait()

	log.Info().Msg("waiting for in-flight events to finish")
	drainCtx, drainCancel := context.WithTimeout(context.Background(), dispatchDrainTimeout)
	defer drainCancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		log.Warn().Err(err).Msg("gave up waiting for in-flight events")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// alertChannels builds the notification channels that have credentials.
func alertChannels(cfg config.Config) (alerts.Channels, error) {
	var channels alerts.Channels

	if cfg.EmailEnabled() {
		channels.Email = alerts.NewSendGridEmailer(cfg.SendGridAPIKey, cfg.EmailFrom, "")
		log.Info().Msg("email alerts enabled")
	}
	if cfg.SMSEnabled() {
		channels.SMS = alerts.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, "")
		log.Info().Msg("sms alerts enabled")
	}
	if cfg.BotToken != "" {
		tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return channels, fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		tg.Debug = false
		log.Info().Str("username", tg.Self.UserName).Msg("telegram alerts enabled")
		channels.Telegram = alerts.NewTelegramNotifier(tg)
	}

	return channels, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"maurine-bot/internal/bot"
	"maurine-bot/internal/chat"
	"maurine-bot/internal/config"
	"maurine-bot/internal/httpapi"
	"maurine-bot/internal/logging"
	"maurine-bot/internal/observability"
	"maurine-bot/internal/reply"
	"maurine-bot/internal/session"
	"maurine-bot/internal/store"
	"maurine-bot/internal/whatsapp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", true)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	logger.Info().Str("bot", cfg.Persona.BotName).Msg("starting")

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.MetricsNamespace, registry)

	repo, err := store.Open(runCtx, store.Options{
		Driver:        cfg.StoreDriver,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		DatabaseURL:   cfg.DatabaseURL,
		Expiry:        store.Expiry{User: cfg.UserTTL, Conversation: cfg.ConversationTTL},
	}, logger.With().Str("component", "store").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer repo.Close()

	if sweepable, ok := repo.(store.Sweepable); ok {
		sweeper := store.NewSweeper(sweepable, cfg.SweepInterval, logger)
		if err := sweeper.Start(runCtx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start sweeper")
		}
		defer sweeper.Stop()
	}

	model, err := newTextModel(runCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create text model")
	}

	generator := reply.NewGenerator(model, cfg.Persona,
		reply.WithOwner(whatsapp.UserID(cfg.Persona.OwnerPhone)),
		reply.WithLogger(logger.With().Str("component", "reply").Logger()),
		reply.WithMetrics(metrics),
	)
	assembler := chat.NewAssembler(repo, generator,
		chat.WithLogger(logger.With().Str("component", "chat").Logger()),
	)
	handler, err := bot.NewHandler(assembler,
		bot.WithLogger(logger.With().Str("component", "bot").Logger()),
		bot.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create message handler")
	}

	sess := session.New()
	client, err := whatsapp.New(runCtx, whatsapp.Options{
		SessionDB: cfg.SessionDB,
		QueueSize: cfg.QueueSize,
		QROutput:  os.Stdout,
	}, handler, sess, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create WhatsApp client")
	}
	if err := client.Start(runCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to WhatsApp")
	}
	defer client.Stop()

	api := httpapi.New(sess, registry, logger.With().Str("component", "http").Logger())
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}
	runCancel()

	logger.Info().Msg("shutdown complete")
}

func newTextModel(ctx context.Context, cfg config.Config) (reply.TextModel, error) {
	switch cfg.Generator {
	case config.GeneratorOllama:
		return reply.NewOllamaModel(cfg.OllamaURL, cfg.OllamaModel), nil
	default:
		return reply.NewGeminiModel(ctx, cfg.APIKey, cfg.GeminiModel)
	}
}

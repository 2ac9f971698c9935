package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"

	"studyhall/chat-api/internal/config"
	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/domain/tokenusage"
	"studyhall/chat-api/internal/infrastructure/auth"
	"studyhall/chat-api/internal/infrastructure/completion"
	"studyhall/chat-api/internal/infrastructure/crontab"
	"studyhall/chat-api/internal/infrastructure/database"
	"studyhall/chat-api/internal/infrastructure/database/repository/conversationrepo"
	"studyhall/chat-api/internal/infrastructure/database/repository/messagerepo"
	"studyhall/chat-api/internal/infrastructure/database/repository/tokenusagerepo"
	"studyhall/chat-api/internal/infrastructure/logger"
	"studyhall/chat-api/internal/infrastructure/observability"
	"studyhall/chat-api/internal/infrastructure/realtime"
	"studyhall/chat-api/internal/interfaces/httpserver"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/chathandler"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/conversationhandler"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/eventshandler"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/historyhandler"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/previewhandler"
	"studyhall/chat-api/internal/interfaces/httpserver/handlers/usagehandler"
	chatroute "studyhall/chat-api/internal/interfaces/httpserver/routes/v1"
	chatv1 "studyhall/chat-api/internal/interfaces/httpserver/routes/v1/chat"
	conversationv1 "studyhall/chat-api/internal/interfaces/httpserver/routes/v1/conversation"
	eventsv1 "studyhall/chat-api/internal/interfaces/httpserver/routes/v1/events"
	historyv1 "studyhall/chat-api/internal/interfaces/httpserver/routes/v1/history"
	usagev1 "studyhall/chat-api/internal/interfaces/httpserver/routes/v1/usage"
	"studyhall/chat-api/internal/sync/chatsession"
	"studyhall/chat-api/internal/sync/history"
	"studyhall/chat-api/internal/sync/querycache"
)

const tokenClockSkew = 30 * time.Second

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	validator, err := auth.NewTokenValidator(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, cfg.RefreshJWKSInterval, tokenClockSkew, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize token validator")
	}

	// Persistence and domain services
	conversationRepo := conversationrepo.NewRepository(db)
	messageRepo := messagerepo.NewRepository(db)
	usageRepo := tokenusagerepo.NewRepository(db)

	conversationService := conversation.NewService(conversationRepo, messageRepo)
	usageService := tokenusage.NewService(usageRepo)

	// Sync core
	cache := querycache.New(cfg.CacheTTL)
	historyService := history.NewService(cache, conversationService)

	completionClient := completion.NewClient(resty.New(), "chat-completions", cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionTimeout)
	sessions := chatsession.NewManager(conversationService, usageService, completionClient, cache, cfg.PromptProfiles, cfg.CompletionModel)

	// Realtime change feed
	hub := realtime.NewHub(cfg.RealtimeThrottle, cfg.RealtimeBufferSize, log)
	hub.Start(ctx)
	defer hub.Stop()

	listener := realtime.NewListener(cfg.DatabaseURL, hub, log)
	if err := listener.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start realtime listener")
	}
	defer listener.Stop()

	// HTTP surface
	conversationHandler := conversationhandler.NewConversationHandler(conversationService, historyService, sessions)
	previewHandler := previewhandler.NewPreviewHandler(conversationService, cfg)
	chatHandler := chathandler.NewChatHandler(sessions)
	historyHandler := historyhandler.NewHistoryHandler(historyService)
	usageHandler := usagehandler.NewUsageHandler(usageService)
	eventsHandler := eventshandler.NewEventsHandler(hub)

	v1Route := chatroute.NewV1Route(
		conversationv1.NewConversationRoute(conversationHandler, previewHandler),
		chatv1.NewChatRoute(chatHandler),
		historyv1.NewHistoryRoute(historyHandler),
		usagev1.NewUsageRoute(usageHandler),
		eventsv1.NewEventsRoute(eventsHandler),
	)

	server := httpserver.NewHTTPServer(v1Route, validator, log, cfg)
	cron := crontab.NewCrontab(cache, sessions)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Run(groupCtx)
	})
	group.Go(func() error {
		return cron.Run(groupCtx)
	})
	group.Go(func() error {
		return runMetricsServer(groupCtx, cfg.MetricsPort)
	})

	if err := group.Wait(); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func runMetricsServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

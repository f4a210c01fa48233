package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telavista/visit-server-go/internal/config"
	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/handler"
	"github.com/telavista/visit-server-go/internal/jobs"
	"github.com/telavista/visit-server-go/internal/middleware"
	"github.com/telavista/visit-server-go/internal/redis"
	"github.com/telavista/visit-server-go/internal/repository"
	"github.com/telavista/visit-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	providerRepo := repository.NewProviderRepository(db.DB)
	encounterRepo := repository.NewEncounterRepository(db.DB)
	inviteRepo := repository.NewInviteRepository(db.DB)
	handoffRepo := repository.NewHandoffRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	participantRepo := repository.NewParticipantRepository(db.DB)
	permRepo := repository.NewPermissionRepository(db.DB)
	roomRepo := repository.NewRoomRepository(db.DB)
	journalRepo := repository.NewJournalRepository(db.DB)

	inviteService := service.NewInviteService(
		db, encounterRepo, roomRepo, permRepo, inviteRepo, journalRepo, cfg.BaseURL,
	)
	redeemService := service.NewRedeemService(
		db, inviteRepo, encounterRepo, roomRepo, sessionRepo, participantRepo, journalRepo, cfg.RRTTTL(),
	)
	handoffService := service.NewHandoffService(
		db, encounterRepo, handoffRepo, sessionRepo, journalRepo, cfg.BaseURL, cfg.HOTTTL(), cfg.RRTTTL(),
	)
	refreshService := service.NewRefreshService(
		db, sessionRepo, roomRepo, journalRepo, cfg.RRTTTL(),
	)
	presenceService := service.NewPresenceService(
		db, encounterRepo, participantRepo, permRepo, journalRepo,
	)
	lifecycleService := service.NewLifecycleService(
		db, encounterRepo, participantRepo, permRepo, sessionRepo, roomRepo, journalRepo,
		cfg.StaleWindow(), cfg.ScheduledGrace(),
	)

	authMiddleware := middleware.NewAuthMiddleware(providerRepo)
	checkinLimiter := middleware.NewCheckinRateLimiter(redisClient.Client, cfg.CheckinRateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	checkinHandler := handler.NewCheckinHandler(
		inviteService, redeemService, handoffService, refreshService, presenceService,
	)
	encounterHandler := handler.NewEncounterHandler(
		inviteService, handoffService, lifecycleService, journalRepo,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/checkin", func(r chi.Router) {
		r.Use(checkinLimiter.Handler)
		r.Mount("/", checkinHandler.Routes())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", encounterHandler.Routes())
	})

	reconciler := jobs.NewReconciler(lifecycleService, handoffRepo, cfg.ReconcileInterval())
	reconciler.Start()
	defer reconciler.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Douglasgls/zona-verde-app/internal/capture"
	"github.com/Douglasgls/zona-verde-app/internal/config"
	"github.com/Douglasgls/zona-verde-app/internal/db"
	"github.com/Douglasgls/zona-verde-app/internal/fetch"
	httpapi "github.com/Douglasgls/zona-verde-app/internal/http"
	"github.com/Douglasgls/zona-verde-app/internal/ledger"
	"github.com/Douglasgls/zona-verde-app/internal/repository"
	"github.com/Douglasgls/zona-verde-app/internal/service"
	"github.com/Douglasgls/zona-verde-app/internal/stream"
	"github.com/Douglasgls/zona-verde-app/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	gdb, err := db.Open(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to open local state store")
	}

	stateRepo := repository.NewStateRepository(gdb)

	store := telemetry.NewStore(stateRepo, logger)
	if err := store.Restore(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to restore telemetry snapshot")
	}

	alerts := ledger.New(stateRepo, logger)
	if err := alerts.Load(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to load alert acknowledgments")
	}

	backend := capture.NewBackend(cfg.Capture.BaseURL, cfg.Capture.Timeout)
	workflow := capture.NewWorkflow(backend, cfg.Capture.Timeout, cfg.Capture.RefreshCooldown, logger)

	fetcher := fetch.NewFetcher(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	console := service.NewConsoleService(fetcher, store, alerts, workflow, logger)

	streamCtx, stopStream := context.WithCancel(context.Background())
	feed := stream.NewClient(cfg.Stream.URL, store, workflow, cfg.Stream.ReconnectDelay, logger)
	go feed.Run(streamCtx)

	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpapi.RequestLogger(logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := httpapi.NewHandler(console, cfg, logger)
	handler.Register(engine, httpapi.AuthMiddleware(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("console service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	stopStream()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}

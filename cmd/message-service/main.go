package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tenantry/message-service/internal/config"
	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
	"github.com/tenantry/message-service/internal/service"
	"github.com/tenantry/message-service/internal/storage"
	"github.com/tenantry/message-service/internal/subscription"
	"github.com/tenantry/message-service/internal/transport/rest"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.Module("main")

	db, err := initDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	blobStore, err := storage.NewDiskStore(cfg.MediaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	repos := repository.New(db)
	bus := domain.NewEventBus()

	conversationSvc := service.NewConversationService(repos, bus)
	messageSvc := service.NewMessageService(repos, bus)
	typingSvc := service.NewTypingService(repos, bus, cfg.TypingTTL)
	attachmentSvc := service.NewAttachmentService(repos, blobStore)
	dispatcher := service.NewDispatcher(repos, service.NewLogNotifier(), time.Second)

	hub := subscription.NewHub(repos, typingSvc, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go dispatcher.Run(ctx)

	server := rest.NewServer(
		rest.ServerConfig{
			Address:   cfg.HTTPAddress,
			MediaPath: cfg.MediaPath,
		},
		conversationSvc,
		messageSvc,
		typingSvc,
		attachmentSvc,
		hub,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	log.Info().
		Str("database", cfg.DatabasePath).
		Str("address", cfg.HTTPAddress).
		Msg("message service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server stop error")
	}

	// Flush whatever notifications are still pending before exit.
	dispatcher.Drain(shutdownCtx)

	log.Info().Msg("shutdown complete")
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

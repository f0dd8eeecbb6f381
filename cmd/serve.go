package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"field-ticket-service/internal/analytics"
	"field-ticket-service/internal/auth"
	"field-ticket-service/internal/config"
	"field-ticket-service/internal/db"
	"field-ticket-service/internal/events"
	httphandler "field-ticket-service/internal/http"
	"field-ticket-service/internal/http/middleware"
	"field-ticket-service/internal/repository"
	"field-ticket-service/internal/service"
	"field-ticket-service/internal/storage"
	"field-ticket-service/internal/upload"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	files, err := storage.NewLocalStore(cfg.Storage.Root, cfg.Storage.URLPrefix)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("close event publisher")
		}
	}()

	cache, closeCache := newAnalyticsCache(ctx, cfg, log)
	defer closeCache()

	stores := service.Stores{
		Tickets:     repository.NewTicketRepository(database),
		Users:       repository.NewUserRepository(database),
		Assignments: repository.NewAssignmentRepository(database),
		Activities:  repository.NewActivityRepository(database),
		Attachments: repository.NewAttachmentRepository(database),
		Visits:      repository.NewVisitScheduleRepository(database),
		History:     repository.NewStatusHistoryRepository(database),
		Parts:       repository.NewPartRepository(database),
		Tx:          repository.NewTransactor(database),
		Files:       files,
		Events:      publisher,
	}

	processor := upload.NewProcessor(
		upload.Policy{MaxBytes: cfg.Upload.MaxBytes, MaxPixels: cfg.Upload.MaxPixels, Quality: cfg.Upload.JPEGQuality},
		upload.TempStager{Dir: filepath.Join(os.TempDir(), "field-ticket-previews")},
	)

	tickets := service.NewTicketService(stores, log)
	assignments := service.NewAssignmentService(stores, tickets, log)
	reports := analytics.NewService(repository.NewAnalyticsRepository(database), cache, 2*cfg.Analytics.RefreshInterval, log)
	refresher := analytics.NewRefresher(reports, cfg.Analytics.RefreshInterval, log)

	handler := httphandler.NewHandler(httphandler.Services{
		Tickets:     tickets,
		Assignments: assignments,
		Timeline:    service.NewTimelineService(stores, processor, log),
		Parts:       service.NewPartService(stores),
		Bulk:        service.NewBulkService(tickets, assignments),
		Users:       service.NewUserService(stores.Users, auth.NewIssuer(cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)),
		Analytics:   reports,
		Refresher:   refresher,
	}, log)
	router := httphandler.NewRouter(handler, middleware.Auth(auth.NewParser(cfg.Auth.AccessSecret)), httphandler.RouterOptions{
		Env:            cfg.Environment,
		Log:            log,
		StorageRoot:    files.Root(),
		StoragePrefix:  files.URLPrefix(),
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})

	refresher.Start(ctx)
	defer refresher.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Environment).Msg("starting ticket service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newAnalyticsCache prefers redis when configured and reachable.
func newAnalyticsCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (analytics.Cache, func()) {
	if cfg.Redis.Addr == "" {
		return analytics.NewMemoryCache(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-memory analytics cache")
		_ = client.Close()
		return analytics.NewMemoryCache(), func() {}
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("analytics cache on redis")
	return analytics.NewRedisCache(client), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}
}

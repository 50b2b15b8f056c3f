package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nexacrm/api/internal/app"
	"nexacrm/api/internal/blob"
	"nexacrm/api/internal/config"
	"nexacrm/api/internal/email"
	"nexacrm/api/internal/enrich"
	"nexacrm/api/internal/export"
	"nexacrm/api/internal/logging"
	"nexacrm/api/internal/search"
	"nexacrm/api/internal/session"
	"nexacrm/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "nexacrm-api")
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	dataStore := store.NewPostgresStore(db)

	deps := app.Dependencies{Logger: logger}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		logger.Info().Msg("using redis for revocations and login throttling")
	} else {
		logger.Info().Msg("using in-process login throttling; revocations stored in postgres")
	}

	var index search.LeadIndex
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		index = meiliClient
	}
	deps.Search = search.NewService(index, logger)

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage unavailable")
		}
		deps.Blobs = minioStore
	} else {
		diskStore, err := blob.NewDiskStore(cfg.UploadsDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("uploads dir unavailable")
		}
		deps.Blobs = diskStore
	}

	mock := enrich.NewMockProspector()
	deps.Prospector = mock
	if strings.TrimSpace(cfg.FirecrawlAPIKey) != "" {
		firecrawl := enrich.NewFirecrawl(cfg.FirecrawlAPIKey)
		deps.Provider = firecrawl
		deps.Prospector = enrich.NewSearchProspector(firecrawl, mock, logger)
	}
	if strings.TrimSpace(cfg.GoogleMapsAPIKey) != "" {
		deps.Places = enrich.NewPlaces(cfg.GoogleMapsAPIKey)
	}

	deps.Exporter = export.NewService(dataStore, export.ChromeRenderer{Timeout: 45 * time.Second})

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		deps.Mailer = mailer
	}

	service := app.New(cfg, dataStore, deps)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("NexaCRM API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

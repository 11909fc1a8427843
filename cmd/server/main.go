package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/andyleap/donna/internal/account"
	"github.com/andyleap/donna/internal/api"
	"github.com/andyleap/donna/internal/bot"
	"github.com/andyleap/donna/internal/calendar"
	"github.com/andyleap/donna/internal/conversation"
	"github.com/andyleap/donna/internal/credential"
	"github.com/andyleap/donna/internal/generation"
	"github.com/andyleap/donna/internal/oauth"
	"github.com/andyleap/donna/internal/storage"
	"github.com/andyleap/donna/internal/telegram"
	"github.com/andyleap/donna/internal/ui"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loc, err := cfg.location()
	if err != nil {
		return err
	}

	userStorage, closeStorage, err := openUserStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	// Authorization flows never leave this process.
	flowStorage := storage.NewMemoryStorage(time.Minute)
	defer flowStorage.Close()

	profile := conversation.DefaultProfile()
	if cfg.Assistant.ProfilePath != "" {
		profile, err = conversation.LoadProfile(cfg.Assistant.ProfilePath)
		if err != nil {
			return err
		}
	}
	if cfg.Assistant.Model != "" {
		profile.Model = cfg.Assistant.Model
	}
	if cfg.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; assistant replies will fail")
	}

	// Setup services
	accounts := account.NewService(userStorage)
	handshake := oauth.NewManager(flowStorage, accounts,
		oauth.FileConfig(cfg.Google.CredentialsFile, oauth.CalendarReadonlyScope),
		oauth.Options{
			PublicURL:       cfg.PublicURL,
			FlowLifetime:    cfg.Google.FlowLifetime,
			ExchangeTimeout: cfg.ExternalTimeout,
		})
	refresher := credential.NewRefresher(nil, cfg.ExternalTimeout)
	calendarService := calendar.NewService(accounts, refresher, &calendar.GoogleLister{Location: loc}, cfg.ExternalTimeout, loc)
	generator := generation.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, nil)
	conversations := conversation.NewManager(accounts, generator, calendarService, profile, cfg.ExternalTimeout)
	commands := bot.NewCommands(accounts, handshake, calendarService, conversations)

	pages, err := ui.NewPages()
	if err != nil {
		return err
	}

	// Setup routes
	mux := http.NewServeMux()
	api.Routes(mux, api.NewServer(accounts, calendarService, conversations), api.NewOAuthHandlers(handshake, pages))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("HTTP server starting", "port", cfg.Port, "callback_url", handshake.CallbackURL())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Telegram.Token, "", nil, commands)
		if err != nil {
			server.Close()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tg.Run(ctx); err != nil {
				errs <- fmt.Errorf("telegram: %w", err)
			}
		}()
	} else {
		slog.Warn("TELEGRAM_TOKEN is not set; only the HTTP API is available")
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case runErr = <-errs:
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	wg.Wait()
	return runErr
}

func openUserStorage(ctx context.Context, cfg *Config) (storage.UserStorage, func(), error) {
	noop := func() {}

	switch cfg.StorageMode {
	case "sqlite":
		sqliteStorage, err := storage.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		slog.Info("Using SQLite storage", "path", cfg.DatabasePath)
		return sqliteStorage, func() { sqliteStorage.Close() }, nil
	case "filesystem":
		fsStorage, err := storage.NewFilesystemStorage(cfg.DataPath)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create filesystem storage: %w", err)
		}
		slog.Info("Using filesystem storage", "path", cfg.DataPath)
		return fsStorage, noop, nil
	case "s3":
		s3Storage, err := storage.NewS3Storage(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			return nil, noop, err
		}
		slog.Info("Using S3 storage", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
		return s3Storage, noop, nil
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, noop, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		slog.Info("Using Redis storage", "addr", cfg.Redis.Addr)
		return storage.NewRedisStorage(redisClient), func() { redisClient.Close() }, nil
	case "memory":
		memStorage := storage.NewMemoryStorage(0)
		slog.Warn("Using in-memory user storage (not persistent)")
		return memStorage, func() { memStorage.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("invalid storage mode %q", cfg.StorageMode)
	}
}

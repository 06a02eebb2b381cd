package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contactly/contactly/internal/api"
	"github.com/contactly/contactly/internal/app"
	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/avatar"
	"github.com/contactly/contactly/internal/database"
	"github.com/contactly/contactly/internal/ratelimit"
	"github.com/contactly/contactly/internal/services"
	"github.com/contactly/contactly/pkg/logger"
	"github.com/contactly/contactly/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "contactly: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("contactly", flag.ContinueOnError)
	configFile := flags.String("config", "", "path to a YAML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := app.Load(*configFile)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.WithModule("server")

	db, err := database.Open(cfg.Database.DatabaseConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.MustMigrate(db); err != nil {
		return err
	}

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenConfig())
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}

	limiter, closeLimiter, err := buildLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	uploader, err := avatar.NewCloudinaryUploader(cfg.Avatar.UploaderConfig())
	if err != nil {
		if !errors.Is(err, avatar.ErrDisabled) {
			return fmt.Errorf("init avatar uploader: %w", err)
		}
		uploader = nil
		log.Info("avatar uploads disabled")
	}

	users := services.NewUserService(db, tokens, mailer, cfg.Server.BaseURL)
	contacts := services.NewContactService(db)

	maintenance := app.NewMaintenance(limiter)
	maintenance.Start()
	defer maintenance.Stop()

	router := api.NewRouter(api.Dependencies{
		DB:          db,
		Tokens:      tokens,
		Users:       users,
		Contacts:    contacts,
		Limiter:     limiter,
		Uploader:    uploader,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// buildLimiter chooses the limiter backend. With Redis enabled every process
// shares one view of each user's window; otherwise the limiter is process
// local.
func buildLimiter(ctx context.Context, cfg *app.Config) (ratelimit.Limiter, func(), error) {
	limitCfg := cfg.RateLimit.LimiterConfig()

	if !cfg.Redis.Enabled {
		return ratelimit.NewMemoryLimiter(limitCfg), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	limiter, err := ratelimit.NewRedisLimiter(client, limitCfg)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return limiter, func() { _ = client.Close() }, nil
}

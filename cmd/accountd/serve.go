// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/postgres"
	"github.com/accountd/accountd/internal/avatar"
	"github.com/accountd/accountd/internal/logging"
	"github.com/accountd/accountd/internal/mail"
	"github.com/accountd/accountd/internal/nickname"
	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
	"github.com/accountd/accountd/internal/web"
)

// serveConfig holds configuration for the serve command. Secrets come
// from the environment, not flags, so they stay out of process listings.
type serveConfig struct {
	httpAddr          string
	metricsAddr       string
	tokenTTL          time.Duration
	lockThreshold     int
	passwordMinLength int
	logFormat         string

	s3Endpoint string
	s3Region   string
	s3Bucket   string
	s3BaseURL  string

	smtpHost string
	smtpPort int
	smtpFrom string
}

// Validate checks that the configuration is valid.
func (cfg *serveConfig) Validate() error {
	if cfg.httpAddr == "" {
		return fmt.Errorf("http-addr is required")
	}
	if cfg.tokenTTL <= 0 {
		return fmt.Errorf("token-ttl must be positive")
	}
	if cfg.lockThreshold <= 0 {
		return fmt.Errorf("lock-threshold must be positive")
	}
	if cfg.logFormat != "json" && cfg.logFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", cfg.logFormat)
	}
	return nil
}

// Default values for serve command flags.
const (
	defaultHTTPAddr    = "127.0.0.1:8080"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API server, serving registration, login,
account management, and avatar upload endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	cmd.Flags().StringVar(&cfg.httpAddr, "http-addr", defaultHTTPAddr, "API HTTP listen address")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().DurationVar(&cfg.tokenTTL, "token-ttl", auth.DefaultTokenTTL, "bearer token lifetime")
	cmd.Flags().IntVar(&cfg.lockThreshold, "lock-threshold", auth.DefaultLockThreshold, "failed logins before the account locks")
	cmd.Flags().IntVar(&cfg.passwordMinLength, "password-min-length", auth.DefaultPasswordPolicy().MinLength, "minimum password length")
	cmd.Flags().StringVar(&cfg.logFormat, "log-format", defaultLogFormat, "log format (json or text)")

	cmd.Flags().StringVar(&cfg.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint for avatar storage (empty = avatars disabled)")
	cmd.Flags().StringVar(&cfg.s3Region, "s3-region", "us-east-1", "S3 region")
	cmd.Flags().StringVar(&cfg.s3Bucket, "s3-bucket", "avatars", "S3 bucket for avatars")
	cmd.Flags().StringVar(&cfg.s3BaseURL, "s3-base-url", "", "public base URL for stored avatars (default: endpoint/bucket)")

	cmd.Flags().StringVar(&cfg.smtpHost, "smtp-host", "", "SMTP relay host (empty = verification mail logged instead of sent)")
	cmd.Flags().IntVar(&cfg.smtpPort, "smtp-port", 587, "SMTP relay port")
	cmd.Flags().StringVar(&cfg.smtpFrom, "smtp-from", "no-reply@localhost", "From address for verification mail")

	return cmd
}

func runServe(ctx context.Context, cfg *serveConfig, cmd *cobra.Command) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault("accountd", version, cfg.logFormat)
	logger := slog.Default()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	jwtSecret := os.Getenv("ACCOUNTD_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("ACCOUNTD_JWT_SECRET environment variable is required")
	}

	pool, err := store.NewPool(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(jwtSecret),
		TTL:    cfg.tokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	accountRepo := postgres.NewAccountRepository(pool)
	verificationRepo := postgres.NewVerificationRepository(pool)

	var mailer auth.Mailer
	if cfg.smtpHost != "" {
		mailer, err = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.smtpHost,
			Port:     cfg.smtpPort,
			Username: os.Getenv("ACCOUNTD_SMTP_USERNAME"),
			Password: os.Getenv("ACCOUNTD_SMTP_PASSWORD"),
			From:     cfg.smtpFrom,
		})
		if err != nil {
			return fmt.Errorf("failed to create mail sender: %w", err)
		}
	} else {
		mailer = mail.NewLogSender(logger)
	}

	passwords := auth.DefaultPasswordPolicy()
	if cfg.passwordMinLength > 0 {
		passwords.MinLength = cfg.passwordMinLength
	}

	service, err := auth.NewService(auth.ServiceConfig{
		Accounts:      accountRepo,
		Verifications: verificationRepo,
		Hasher:        auth.NewArgon2idHasher(),
		Tokens:        tokens,
		Mailer:        mailer,
		Lock:          auth.LockPolicy{Threshold: cfg.lockThreshold},
		Passwords:     passwords,
		Nickname:      nickname.Generate,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	var avatars *avatar.Service
	if cfg.s3Endpoint != "" {
		baseURL := cfg.s3BaseURL
		if baseURL == "" {
			baseURL = cfg.s3Endpoint + "/" + cfg.s3Bucket
		}
		avatarStore, s3Err := avatar.NewS3Store(ctx, avatar.S3Config{
			Endpoint:  cfg.s3Endpoint,
			Region:    cfg.s3Region,
			AccessKey: os.Getenv("ACCOUNTD_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("ACCOUNTD_S3_SECRET_KEY"),
			Bucket:    cfg.s3Bucket,
			BaseURL:   baseURL,
		})
		if s3Err != nil {
			return fmt.Errorf("failed to create avatar store: %w", s3Err)
		}
		avatars, err = avatar.NewService(avatarStore, accountRepo)
		if err != nil {
			return fmt.Errorf("failed to create avatar service: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.metricsAddr != "" {
		obsServer = observability.NewServer(cfg.metricsAddr, func() bool {
			return pool.Ping(ctx) == nil
		})
		metrics = obsServer.Metrics()
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return fmt.Errorf("failed to start observability server: %w", obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	apiServer, err := web.NewServer(web.Config{
		Addr:    cfg.httpAddr,
		Service: service,
		Avatars: avatars,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("accountd started")
	slog.Info("accountd ready",
		"http_addr", apiServer.Addr(),
		"token_ttl", cfg.tokenTTL.String(),
		"lock_threshold", cfg.lockThreshold,
	)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so a failed listener takes the whole process down
// gracefully. It exits when an error arrives, the channel closes, or the
// context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

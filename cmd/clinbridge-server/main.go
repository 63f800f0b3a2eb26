package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinbridge/clinbridge/internal/config"
	"github.com/clinbridge/clinbridge/internal/ingest"
	"github.com/clinbridge/clinbridge/internal/platform/auth"
	"github.com/clinbridge/clinbridge/internal/platform/middleware"
	"github.com/clinbridge/clinbridge/internal/platform/notify"
	"github.com/clinbridge/clinbridge/internal/platform/reasoning"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinbridge-server",
		Short: "Clinical message normalization gateway",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ingestion gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware on the ingest group; health stays public.
	authed := e.Group("")
	public := e.Group("")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	authed.Use(middleware.RateLimit(rateLimitCfg))

	switch mode := cfg.ResolvedAuthMode(); mode {
	case "none":
		logger.Warn().Msg("authentication disabled (ENV=development); do not run this configuration in production")
	case "apikey":
		authed.Use(auth.APIKeyMiddleware(auth.APIKeyConfig{
			Key:     cfg.IngestAPIKey,
			Skipper: auth.AuthSkipper,
		}))
	case "jwt":
		authed.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.JWTSigningKey),
			JWKSURL:    cfg.AuthJWKSURL,
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			Skipper:    auth.AuthSkipper,
		}))
	default:
		logger.Fatal().Str("mode", mode).Msg("unknown auth mode")
	}

	// Reasoning collaborator: OpenAI-backed when a key is configured,
	// deterministic rules otherwise.
	var engine reasoning.Engine = reasoning.NewRuleEngine()
	if cfg.OpenAIAPIKey != "" {
		engine = reasoning.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		logger.Info().Str("model", cfg.OpenAIModel).Msg("reasoning engine: openai")
	} else {
		logger.Info().Msg("reasoning engine: rules")
	}

	// Notification delivery
	var sender notify.Sender = notify.NopSender{}
	if cfg.NotifyWebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret)
		logger.Info().Str("url", cfg.NotifyWebhookURL).Msg("notification webhook configured")
	}

	svc := ingest.NewService(engine, sender, logger)
	ingest.NewHandler(svc).RegisterRoutes(authed, public)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

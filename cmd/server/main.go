package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/api"
	"github.com/sin-text/backend/internal/app"
	"github.com/sin-text/backend/internal/config"
	"github.com/sin-text/backend/internal/docx"
	"github.com/sin-text/backend/internal/observability"
	"github.com/sin-text/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// .env in the working directory wins over the one next to the binary
	for _, p := range []string{".env", filepath.Join(exeDir, ".env")} {
		if err := config.LoadDotEnv(p); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}

	// Load XML configuration
	configPath := filepath.Join(exeDir, "SinText.config")
	if p := os.Getenv("SINTEXT_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Advanced.LogLevel,
		Format:      cfg.Advanced.LogFormat,
		ServiceName: "sintext",
	})

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("failed to create directories")
	}
	if cfg.Inference.APIKey == "" {
		log.Warn().Msg("OPENROUTER_API_KEY is not set; inference requests will be rejected")
	}

	components, err := app.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background retention sweeper
	go components.RunSweeper(ctx)

	e := newServer(cfg, components, log)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newServer(cfg *config.AppConfig, components *app.Components, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(log, cfg.Advanced.LogLevel == "debug")

	// Configure middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			return !cfg.Advanced.EnableRequestLogging || c.Request().URL.Path == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Str("uri", c.Request().RequestURI).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return api.IsStreamingPath(c.Request().URL.Path)
		},
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware; event streams and downloads are written unbuffered
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return api.IsStreamingPath(c.Request().URL.Path) ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	origins := cfg.AllowedOrigins()
	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Uploads:     components.Uploads,
		Artifacts:   components.Artifacts,
		Processor:   components.Runner,
		ContentType: docx.MIMEType,
		AllowOrigin: func(origin string) bool {
			return slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
		Version:      Version,
		PipelineMode: cfg.Pipeline.Mode,
		Logger:       log,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	// Register frontend: a configured directory, else the embedded build
	if cfg.Server.FrontendDir != "" || web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e, cfg.Server.FrontendDir); err != nil {
			log.Warn().Err(err).Msg("failed to register static routes")
		}
	}

	return e
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Sin-Text Tender Summarizer                      ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", cfg.Pipeline.Mode)
	fmt.Printf("║  Model:      %-45s║\n", cfg.Inference.Model)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Output:    %-46s║\n", cfg.Storage.ArtifactsDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"

	"market-gateway/client"
	"market-gateway/config"
	"market-gateway/domain"
	"market-gateway/handler"
	gwmiddleware "market-gateway/middleware"
	"market-gateway/resilience"
	"market-gateway/utils/logger"
	"market-gateway/utils/otel"
)

func main() {
	// Handle healthcheck subcommand (for Docker healthcheck in distroless image)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize OpenTelemetry
	otelCfg := otel.ConfigFromEnv()
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		fmt.Printf("Failed to initialize OpenTelemetry: %v\n", err)
		otelCfg.Enabled = false
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			fmt.Printf("Failed to shutdown OpenTelemetry: %v\n", err)
		}
	}()

	// Initialize structured logger with OTel support
	logger.Init(otelCfg.Enabled)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "configuration loaded",
		"backend_url", cfg.BackendURL,
		"frontend_url", cfg.FrontendURL,
		"port", cfg.Port,
		"environment", cfg.Environment)

	rules := domain.DefaultRules()
	secure := cfg.SecureCookies()

	// Initialize dependencies
	refreshClient := client.NewRefreshClient(cfg.BackendURL, cfg.RefreshTimeout)

	backendClient := client.NewBackendClient(client.BackendClientConfig{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.RequestTimeout,
		Retries:   cfg.FetchRetries,
		CacheSize: cfg.PublicCacheSize,
		CacheTTL:  cfg.PublicCacheTTL,
		Breaker: resilience.Config{
			FailureThreshold: cfg.BreakerThreshold,
			SuccessThreshold: 2,
			Cooldown:         cfg.BreakerCooldown,
		},
		Rules: rules,
	}, refreshClient)
	slog.InfoContext(ctx, "backend client initialized",
		"base_url", cfg.BackendURL,
		"retries", cfg.FetchRetries,
		"cache_ttl", cfg.PublicCacheTTL)

	routeGuard := gwmiddleware.NewRouteGuard(rules, refreshClient, secure)

	// Initialize handlers
	proxyHandler := handler.NewProxyHandler(backendClient, secure)
	sessionHandler := handler.NewSessionHandler(secure)
	logoutHandler := handler.NewLogoutHandler(rules, secure)
	healthHandler := handler.NewHealthHandler()
	pageProxy, err := handler.NewPageProxyHandler(cfg.FrontendURL)
	if err != nil {
		slog.ErrorContext(ctx, "invalid FRONTEND_URL", "error", err)
		os.Exit(1)
	}

	// Setup Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add OpenTelemetry tracing middleware
	if otelCfg.Enabled {
		e.Use(otelecho.Middleware(otelCfg.ServiceName))
	}

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if v.Error == nil {
				slog.InfoContext(ctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				slog.ErrorContext(ctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Use(gwmiddleware.SecurityHeaders())

	rateLimiter := gwmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	e.Use(rateLimiter.Middleware())

	e.Use(routeGuard.Middleware())

	// Register routes
	e.GET("/health", healthHandler.Handle)
	e.GET("/gateway/session/:role", sessionHandler.Handle)
	e.POST("/gateway/logout/:role", logoutHandler.Handle)
	e.Any("/api/public/*", proxyHandler.HandlePublic)
	e.Any("/api/:role/*", proxyHandler.HandleAuthenticated)

	// Everything else is a page navigation for the frontend
	e.Any("/*", pageProxy.Handle)

	// Start server
	address := fmt.Sprintf(":%s", cfg.Port)

	go func() {
		slog.InfoContext(ctx, "starting market-gateway server", "address", address)
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.InfoContext(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "server exited properly")
}

// runHealthcheck performs a health check against the local server
func runHealthcheck() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8890"
	}

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}

	return nil
}

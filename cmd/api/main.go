package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shrimpsizemoose/trekker/logger"

	"medreserve/internal/booking"
	"medreserve/internal/config"
	"medreserve/internal/drive"
	"medreserve/internal/handler"
	"medreserve/internal/httpmiddleware"
	"medreserve/internal/script"
	"medreserve/internal/session"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Error.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	if cfg.ScriptURL == "" {
		logger.Error.Fatal("SCRIPT_URL is required: the Apps Script endpoint is the system of record")
	}

	scriptClient := script.New(cfg.ScriptURL, cfg.ScriptTimeout)

	// Drive uploader (nil when not configured; photo submissions then fail
	// with a clear error instead of a broken link).
	var uploader booking.Uploader
	if cfg.GoogleClientEmail != "" && cfg.GooglePrivateKey != "" {
		driveClient, err := drive.New(cfg.GoogleClientEmail, cfg.GooglePrivateKey, cfg.GoogleDriveFolder, cfg.DriveTimeout)
		if err != nil {
			logger.Error.Fatalf("drive client init failed: %v", err)
		}
		uploader = driveUploader{client: driveClient}
		logger.Info.Printf("Drive uploads configured for %s", cfg.GoogleClientEmail)
	} else {
		logger.Info.Println("Drive uploads not configured (GOOGLE_CLIENT_EMAIL / GOOGLE_PRIVATE_KEY not set)")
	}

	svc := booking.NewService(scriptClient, uploader)

	fetcher := booking.NewFetcher(scriptClient)
	fetcher.MaxRetries = cfg.FetchMaxRetries
	fetcher.BaseDelay = cfg.FetchBaseDelay
	fetcher.Timeout = cfg.FetchTimeout

	prefs := session.NewStore(cfg.SessionBackend, cfg.RedisAddr)

	h := handler.New(scriptClient, svc, fetcher, prefs)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Request IDs for correlating proxy log lines with script calls
	r.Use(httpmiddleware.RequestID())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		sessionHealthy := prefs.Healthy(c.Request.Context())
		status := http.StatusOK
		if !sessionHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "session": sessionHealthy})
	})

	r.GET("/api/proxy", h.ProxyGet)
	r.POST("/api/proxy", h.ProxyPost)
	// Preflight is normally answered by corsMiddleware before routing; the
	// explicit route keeps the surface visible in the route table.
	r.OPTIONS("/api/proxy", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/login", h.Login)
	r.GET("/api/bookings", h.Bookings)
	r.GET("/api/dashboard", h.Dashboard)
	r.GET("/api/preferences/:clientID", h.GetPreferences)
	r.PUT("/api/preferences/:clientID", h.PutPreferences)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // fetch retries can take a while
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("Server forced shutdown: %v", err)
	}

	logger.Info.Println("Server exited")
	return nil
}

// driveUploader adapts the Drive client to the submission pipeline, which
// only needs the shareable link.
type driveUploader struct {
	client *drive.Client
}

func (u driveUploader) UploadImage(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	res, err := u.client.UploadImage(ctx, data, filename, contentType)
	if err != nil {
		return "", err
	}
	return res.Link, nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

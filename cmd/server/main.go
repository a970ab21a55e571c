package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/smartrail/booking-checkout/internal/config"
	"github.com/smartrail/booking-checkout/internal/database"
	"github.com/smartrail/booking-checkout/internal/handlers"
	"github.com/smartrail/booking-checkout/internal/middleware"
	"github.com/smartrail/booking-checkout/internal/services"
	"github.com/smartrail/booking-checkout/pkg/jwt"
	"github.com/smartrail/booking-checkout/pkg/railapi"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SmartRail Booking Checkout Service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Redis is optional; without it templates are fetched on every
	// carriage activation.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		logger.Info("Redis connection established, template cache enabled")
		defer rdb.Close()
	} else {
		logger.Warn("Redis unavailable, template cache disabled")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	bookingAPI := railapi.New(railapi.Config{
		BaseURL: cfg.Booking.BaseURL,
		Timeout: cfg.Booking.Timeout,
	}, logger)

	templateCache := services.NewTemplateCache(rdb, cfg.Redis.TemplateTTL, logger)
	sessionService := services.NewSessionService(bookingAPI, templateCache, logger)
	previewService := services.NewPreviewService(bookingAPI, logger)
	gatewayService := services.NewPaymentGatewayService(&cfg.Payment, logger)
	auditRepository := database.NewCheckoutAuditRepository(db, logger)
	checkoutService := services.NewCheckoutService(bookingAPI, gatewayService, auditRepository, services.CheckoutSettings{
		ReturnURLPattern: cfg.Payment.ReturnURL,
		CancelURLPattern: cfg.Payment.CancelURL,
		StepTimeout:      cfg.Checkout.StepTimeout,
	}, logger)

	logger.Info("Services initialized")

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionService, previewService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, sessionService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtService))
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.POST("/:sessionId/carriages/:carriageId/activate", sessionHandler.ActivateCarriage)
			sessions.POST("/:sessionId/seats/toggle", sessionHandler.ToggleSeat)
			sessions.POST("/:sessionId/seats/reset", sessionHandler.ResetSelection)
			sessions.POST("/:sessionId/assignments", sessionHandler.AssignPassenger)
			sessions.GET("/:sessionId/preview", sessionHandler.Preview)
			sessions.POST("/:sessionId/checkout", checkoutHandler.StartCheckout)
			sessions.DELETE("/:sessionId", sessionHandler.DropSession)
		}

		checkout := v1.Group("/checkout")
		{
			checkout.POST("/:attemptId/navigation", checkoutHandler.NavigationEvent)
			checkout.GET("/:attemptId", checkoutHandler.AttemptStatus)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		entry := logger.WithFields(fields)

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

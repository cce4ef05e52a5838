package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"

	"vendora/internal/caching"
	"vendora/internal/handlers"
	"vendora/internal/jobs/background"
	"vendora/internal/middleware"
	"vendora/internal/repositories"
	"vendora/internal/services"
	"vendora/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret: %s", jwtSecret)
	}

	// Payment provider configuration
	providerAPIKey := os.Getenv("PROVIDER_API_KEY")
	if providerAPIKey == "" {
		log.Fatal("PROVIDER_API_KEY environment variable is required")
	}
	providerAPISecret := os.Getenv("PROVIDER_API_SECRET")
	providerWebhookSecret := os.Getenv("PROVIDER_WEBHOOK_SECRET")
	if providerWebhookSecret == "" {
		log.Fatal("PROVIDER_WEBHOOK_SECRET environment variable is required")
	}
	providerBaseURL := os.Getenv("PROVIDER_BASE_URL")
	if providerBaseURL == "" {
		providerBaseURL = "https://api.payments.example.com"
	}
	providerTimeout := 10 * time.Second
	if timeoutStr := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); timeoutStr != "" {
		if seconds, err := strconv.Atoi(timeoutStr); err == nil && seconds > 0 {
			providerTimeout = time.Duration(seconds) * time.Second
		}
	}

	// Checkout grace window, pending rows older than this get expired
	graceWindow := 24 * time.Hour
	if hoursStr := os.Getenv("CHECKOUT_GRACE_WINDOW_HOURS"); hoursStr != "" {
		if hours, err := strconv.Atoi(hoursStr); err == nil && hours > 0 {
			graceWindow = time.Duration(hours) * time.Hour
		}
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379" // Default Redis address
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDBStr := os.Getenv("REDIS_DB")
	redisDB := 0 // Default DB
	if redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000" // Default MinIO endpoint
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin" // Default for development
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin" // Default for development
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	receiptBucket := os.Getenv("RECEIPT_BUCKET")
	if receiptBucket == "" {
		receiptBucket = "receipts"
	}

	// Initialize object storage
	storageSvc, err := services.NewMinioStorage(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	if err := storageSvc.EnsureBucketExists(context.Background(), receiptBucket); err != nil {
		log.Printf("WARN: failed to ensure receipt bucket exists: %v", err)
	}

	// Create repositories
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)
	webhookEventRepo := repositories.NewWebhookEventRepo(pool)
	transactionRepo := repositories.NewTransactionRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Create services
	providerSvc := services.NewPaymentProviderService(providerAPIKey, providerAPISecret, providerWebhookSecret, providerBaseURL, providerTimeout)
	checkoutSvc := services.NewCheckoutService(subscriptionRepo, providerSvc, graceWindow)
	reconcilerSvc := services.NewWebhookReconciler(subscriptionRepo, webhookEventRepo, transactionRepo, cacheSvc)
	lifecycleSvc := services.NewLifecycleService(subscriptionRepo, cacheSvc, nil, graceWindow)
	billingHistorySvc := services.NewBillingHistoryService(subscriptionRepo, transactionRepo, cacheSvc, storageSvc, receiptBucket)

	// Start background sweeps
	scheduler := background.NewJobScheduler(lifecycleSvc)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("WARN: failed to stop job scheduler: %v", err)
		}
	}()

	// Create handlers
	subscriptionHandlers := handlers.NewSubscriptionHandlers(checkoutSvc, lifecycleSvc)
	billingHandlers := handlers.NewBillingHandlers(billingHistorySvc)
	webhookHandlers := handlers.NewWebhookHandlers(providerSvc, reconcilerSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, scheduler)

	// JWT middleware configuration
	jwtConfig := echojwt.Config{
		SigningKey: []byte(jwtSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(middleware.JWTCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(401, "Invalid token")
		},
	}

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)

	// Webhook endpoint, authenticated by HMAC signature instead of JWT
	e.POST("/webhooks/payments", webhookHandlers.PaymentWebhook)

	// API routes
	v1 := e.Group("/v1")

	// Plan catalog is public
	v1.GET("/plans", subscriptionHandlers.ListPlans)

	// Protected routes (require JWT)
	protected := v1.Group("")
	protected.Use(echojwt.WithConfig(jwtConfig))
	protected.Use(middleware.UserContext())

	protected.POST("/checkout", subscriptionHandlers.StartCheckout)
	protected.GET("/subscriptions/current", subscriptionHandlers.GetCurrentSubscription)
	protected.GET("/subscriptions/:id", subscriptionHandlers.GetSubscription)
	protected.POST("/subscriptions/:id/cancel", subscriptionHandlers.CancelSubscription)
	protected.POST("/subscriptions/:id/reactivate", subscriptionHandlers.ReactivateSubscription)

	protected.GET("/billing/history", billingHandlers.GetBillingHistory)
	protected.GET("/billing/transactions/:id/receipt", billingHandlers.GetReceipt)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("Vendora billing server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}

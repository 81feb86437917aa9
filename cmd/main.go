package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-billing-reminder/internal/consumer"
	"github.com/vhvplatform/go-billing-reminder/internal/gateway"
	"github.com/vhvplatform/go-billing-reminder/internal/handler"
	"github.com/vhvplatform/go-billing-reminder/internal/middleware"
	"github.com/vhvplatform/go-billing-reminder/internal/repository"
	"github.com/vhvplatform/go-billing-reminder/internal/scheduler"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/config"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/logger"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/mongodb"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/rabbitmq"
	"github.com/vhvplatform/go-billing-reminder/internal/template"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("BILLING_REMINDER_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting Billing Reminder Service...")

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(&mongodb.Config{
		URI:            cfg.MongoDB.URI,
		Database:       cfg.MongoDB.Database,
		ConnectTimeout: cfg.MongoDB.ConnectTimeout,
		MaxPoolSize:    cfg.MongoDB.MaxPoolSize,
	})
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize RabbitMQ
	rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rabbitMQClient.Close()

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(mongoClient)
	templateRepo := repository.NewTemplateRepository(mongoClient)
	queueRepo := repository.NewQueueRepository(mongoClient)
	deliveryRepo := repository.NewDeliveryRepository(mongoClient)
	tenantRepo := repository.NewTenantRepository(mongoClient)
	settingsRepo := repository.NewSettingsRepository(mongoClient)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelIndexes()
	for name, ensure := range map[string]func(context.Context) error{
		"customers":  customerRepo.EnsureIndexes,
		"templates":  templateRepo.EnsureIndexes,
		"queue":      queueRepo.EnsureIndexes,
		"deliveries": deliveryRepo.EnsureIndexes,
		"tenants":    tenantRepo.EnsureIndexes,
		"settings":   settingsRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Fatal("Failed to create indexes", "collection", name, "error", err)
		}
	}

	// Initialize WhatsApp gateway client and renderer
	whatsappClient := gateway.NewWhatsAppClient(&cfg.Gateway, log)
	renderer := template.NewRenderer(nil)

	// Initialize scheduler
	sched := scheduler.NewScheduler(scheduler.Deps{
		Customers:  customerRepo,
		Tenants:    tenantRepo,
		Templates:  templateRepo,
		Queue:      queueRepo,
		Deliveries: deliveryRepo,
		Settings:   settingsRepo,
		Gateway:    whatsappClient,
		Renderer:   renderer,
	}, &cfg.Scheduler, log)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if err := sched.Start(runCtx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	// Start RabbitMQ consumer
	eventConsumer := consumer.NewEventConsumer(rabbitMQClient, sched, log)
	go eventConsumer.Run(runCtx)

	// Initialize HTTP handlers
	queueHandler := handler.NewQueueHandler(sched, queueRepo, log)
	reminderHandler := handler.NewReminderHandler(sched, tenantRepo, log)
	deliveryHandler := handler.NewDeliveryHandler(deliveryRepo, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewTenantRateLimiter(cfg.Server.RateLimitPerTenant, cfg.Server.RateLimitBurst)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := whatsappClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "gateway unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with rate limiting
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		queue := v1.Group("/queue")
		{
			queue.GET("", queueHandler.ListQueue)
			queue.GET("/:id", queueHandler.GetEntry)
			queue.DELETE("/:id", queueHandler.CancelEntry)
			queue.POST("/:id/send", queueHandler.SendEntry)
			queue.POST("/cancel", queueHandler.CancelCustomer)
			queue.POST("/rebuild", queueHandler.Rebuild)
		}

		reminders := v1.Group("/reminders")
		{
			reminders.POST("/send", reminderHandler.SendNow)
			reminders.POST("/overdue", reminderHandler.ProcessOverdue)
			reminders.POST("/digest", reminderHandler.SendDigest)
		}

		v1.GET("/deliveries", deliveryHandler.ListDeliveries)
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Billing Reminder Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Billing Reminder Service...")
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Billing Reminder Service stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	awspkg "github.com/yashrajoria/shopnow-backend/pkg/aws"
	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/common/logger"
	commonmw "github.com/yashrajoria/shopnow-backend/services/common/middleware"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/config"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/controllers"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/database"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/middleware"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/routes"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

const serviceName = "shop-service"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("development").Fatal("Failed to load config", zap.Error(err))
	}

	// --- AWS (LocalStack-aware) ---
	var awsCfg sdkaws.Config
	awsReady := false
	if cfg.AWSEnabled || cfg.SecretsEnabled {
		if awsCfg, err = awspkg.LoadAWSConfig(ctx); err != nil {
			logger.Initialize(cfg.Env).Fatal("Failed to load AWS config", zap.Error(err))
		}
		awsReady = true
	}

	if cfg.SecretsEnabled {
		if err := cfg.ResolveSecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			logger.Initialize(cfg.Env).Fatal("Failed to resolve secrets", zap.Error(err))
		}
	}

	// --- Logger, teed into CloudWatch Logs when enabled ---
	log := logger.Initialize(cfg.Env)
	var metricsClient *awspkg.MetricsClient
	if cfg.AWSEnabled && awsReady {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName)
		if err != nil {
			log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(err))
		} else if cwLogs.IsEnabled() {
			log = logger.InitializeWithWriter(cfg.Env, cwLogs)
		}
		metricsClient = awspkg.NewMetricsClient(awsCfg)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	// --- Stores ---
	mongoClient, db, err := database.Connect(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Warn("Failed to ensure indexes", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			log.Warn("Redis unavailable, using in-process locks and no product cache", zap.Error(err))
			redisClient = nil
		}
	}

	products := repository.NewProductRepository(db.Collection(database.ProductsCollection))
	carts := repository.NewCartRepository(db.Collection(database.CartsCollection))
	orders := repository.NewOrderRepository(db.Collection(database.OrdersCollection))
	reviews := repository.NewReviewRepository(db.Collection(database.ReviewsCollection))
	users := repository.NewUserRepository(db.Collection(database.UsersCollection))
	events := repository.NewEventRepository(db.Collection(database.ProcessedEventsCollection))

	var tx repository.Transactor = repository.NoopTransactor{}
	if cfg.MongoTransactions {
		tx = repository.NewMongoTransactor(mongoClient)
	}

	// --- Services ---
	var locker services.Locker = services.NewMemoryLocker()
	var cacheClient redis.Cmdable
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient, cfg.CartLockTTL)
		cacheClient = redisClient
	}
	cache := services.NewCacheManager(cacheClient, cfg.ProductCacheTTL, metricsClient)

	var presigner services.ImagePresigner
	if cfg.AWSEnabled && cfg.S3Bucket != "" {
		presigner = awspkg.NewPresigner(awsCfg, cfg.S3Bucket)
	}

	orderPublisher, userPublisher, kafkaPublisher := buildPublishers(cfg, awsCfg, log)

	gateway, err := services.NewStripeGateway(services.StripeGatewayConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})
	if err != nil {
		log.Fatal("Failed to configure Stripe", zap.Error(err))
	}

	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.SMTP.Enabled() {
		mailer = services.NewSMTPMailer(cfg.SMTP)
	}

	hasher := services.NewBcryptHasher(bcrypt.DefaultCost + 2)
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	authService := services.NewAuthService(users, tokens, hasher, mailer, userPublisher, log)
	userService := services.NewUserService(users, hasher, log)
	productService := services.NewProductService(products, reviews, users, cache, presigner, log)
	reviewService := services.NewReviewService(reviews, products, users, tx, cache, log)
	cartService := services.NewCartService(carts, products, locker, log)
	orderService := services.NewOrderService(orders, products, users, log)
	checkoutService := services.NewCheckoutService(services.CheckoutDeps{
		Carts:      carts,
		Products:   products,
		Orders:     orders,
		Events:     events,
		Transactor: tx,
		Locker:     locker,
		Gateway:    gateway,
		Publisher:  orderPublisher,
		Metrics:    metricsClient,
		Logger:     log,
	}, services.CheckoutConfig{
		Currency:       cfg.Currency,
		SuccessURL:     cfg.CheckoutSuccessURL,
		CancelURL:      cfg.CheckoutCancelURL,
		PublicBaseURL:  cfg.PublicBaseURL,
		PendingTimeout: cfg.CheckoutPendingTTL,
	})

	validator := controllers.NewRequestValidator()
	handlers := routes.Handlers{
		Products: controllers.NewProductController(productService, validator),
		Carts:    controllers.NewCartController(cartService, validator),
		Orders:   controllers.NewOrderController(orderService, checkoutService, validator),
		Reviews:  controllers.NewReviewController(reviewService, validator),
		Users:    controllers.NewUserController(authService, userService, validator, cfg.CookieExpiresIn),
		Webhook:  controllers.NewWebhookController(checkoutService),
		Auth:     authService,
	}

	// --- HTTP ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := commonmw.NewPrometheusMetrics(registry, serviceName)

	perHour := cfg.RateLimitPerHour
	if perHour <= 0 {
		perHour = 100
	}
	rateLimiter := commonmw.NewRateLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour, time.Hour)
	defer rateLimiter.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORS(cfg.AllowedOrigins))
	r.Use(prom.Middleware())
	r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName))
	r.Use(apperrors.ErrorMiddleware(cfg.Env))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	routes.Register(r, handlers,
		commonmw.RateLimitWith(rateLimiter),
		middleware.SanitizeBody(),
	)

	r.GET("/health", healthHandler(mongoClient, redisClient))
	r.GET("/metrics", prom.Handler())
	r.NoRoute(apperrors.NoRoute())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Shop Service starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down Shop Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error("Failed to close Kafka writer", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := database.Close(shutdownCtx, mongoClient); err != nil {
		log.Error("Failed to close MongoDB", zap.Error(err))
	}

	log.Info("Shop Service stopped gracefully")
}

// buildPublishers wires SNS topics and the optional Kafka sink. The Kafka publisher is
// returned separately so shutdown can flush it.
func buildPublishers(cfg *config.Config, awsCfg sdkaws.Config, log *zap.Logger) (services.EventPublisher, services.EventPublisher, *services.KafkaEventPublisher) {
	var orderSinks services.MultiPublisher
	var userPublisher services.EventPublisher = services.NoopPublisher{}

	if cfg.AWSEnabled {
		snsClient := awspkg.NewSNSClient(awsCfg)
		if cfg.OrderEventsTopicARN != "" {
			orderSinks = append(orderSinks, services.NewSNSEventPublisher(snsClient, cfg.OrderEventsTopicARN))
		}
		if cfg.UserEventsTopicARN != "" {
			userPublisher = services.NewSNSEventPublisher(snsClient, cfg.UserEventsTopicARN)
		}
	}

	var kafkaPublisher *services.KafkaEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		orderSinks = append(orderSinks, kafkaPublisher)
		log.Info("Kafka order events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
	}

	if len(orderSinks) == 0 {
		return services.NoopPublisher{}, userPublisher, kafkaPublisher
	}
	return orderSinks, userPublisher, kafkaPublisher
}

func healthHandler(mongoClient *mongo.Client, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"mongo": "ok", "redis": "disabled"}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			checks["mongo"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		label := "OK"
		if status != http.StatusOK {
			label = "DEGRADED"
		}
		c.JSON(status, gin.H{"status": label, "checks": checks})
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/internal/router"
	"julianmorley.ca/con-plar/marketplace/pkg/ai"
	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/cart"
	"julianmorley.ca/con-plar/marketplace/pkg/events"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/logger"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
	"julianmorley.ca/con-plar/marketplace/pkg/payments"
	"julianmorley.ca/con-plar/marketplace/pkg/redis"
	"julianmorley.ca/con-plar/marketplace/pkg/settlement"
	"julianmorley.ca/con-plar/marketplace/pkg/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := global.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *global.Config, zlog *zap.Logger) error {
	shutdownTracing, err := tracing.Init("marketplace-api", cfg.JaegerEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, cancel := global.GetDefaultTimer()
	store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, zlog)
	if err != nil {
		cancel()
		return err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		zlog.Warn("index setup incomplete", zap.Error(err))
	}
	cancel()
	defer func() { _ = store.Disconnect(context.Background()) }()

	redisClient := redis.NewClient(cfg.RedisAddress, cfg.RedisPassword)
	defer func() { _ = redisClient.Close() }()
	pingCtx, pingCancel := global.GetDefaultTimer()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		zlog.Warn("redis unreachable, caches will miss until it recovers", zap.Error(err))
	}
	pingCancel()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		kafka := events.NewKafkaPublisher(producer, cfg.KafkaTopic, zlog)
		defer func() { _ = kafka.Close() }()
		publisher = kafka
	}

	pricing := models.Pricing{TaxRate: cfg.TaxRate, PlatformFee: cfg.PlatformFee}
	carts := cart.NewService(store, store, store, redis.NewCartCache(redisClient), pricing, zlog)
	engine := settlement.NewEngine(settlement.Deps{
		Store:     store,
		Buyers:    store,
		Gateway:   payments.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpaySecret, cfg.GatewayTimeout, zlog),
		Signer:    payments.NewSigner(cfg.RazorpaySecret),
		Publisher: publisher,
		Carts:     carts,
		Currency:  cfg.Currency,
		Logger:    zlog,
	})

	handler := router.NewHandler(router.HandlerDeps{
		Store:    store,
		Carts:    carts,
		Engine:   engine,
		Orders:   settlement.NewOrders(store, publisher, zlog),
		Issuer:   auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry),
		Products: redis.NewProductCache(redisClient),
		AI:       ai.NewClient(ai.Config{BaseURL: cfg.AIBaseURL, APIKey: cfg.AIAPIKey, Model: cfg.AIModel}, zlog),
		Currency: cfg.Currency,
		Logger:   zlog,
	})

	engineHTTP := router.InitEngine(cfg, zlog)
	router.InitializeRoutes(engineHTTP, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engineHTTP,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-revenue/internal/auth"
	"ms-revenue/internal/config"
	"ms-revenue/internal/database/migrations"
	"ms-revenue/internal/kafka"
	"ms-revenue/internal/logger"
	"ms-revenue/internal/models"
	"ms-revenue/internal/ratelimit"
	"ms-revenue/internal/referral"
	referral_api "ms-revenue/internal/referral/api"
	referral_db "ms-revenue/internal/referral/db"
	"ms-revenue/internal/revshare"
	revshare_api "ms-revenue/internal/revshare/api"
	revshare_db "ms-revenue/internal/revshare/db"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Revenue Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := migrationRunner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer migrationRunner.Close()

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers)
		log.Info("KAFKA", "Kafka producer initialized successfully")

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		defer kafkaProducer.Close()
	} else {
		log.Warn("KAFKA", "Kafka disabled, events will not be published")
	}

	referralDB := &referral_db.DB{Bun: bunDB}
	codeCache := referral.NewRedisCache(redisClient, cfg.Redis.ValidateTTL)
	registry := referral.NewRegistry(referralDB, codeCache, producerOrNil(kafkaProducer), log)
	qrGen := referral.NewQRGenerator(cfg.Referral.LinkBase)

	shareService := revshare.NewService(
		&revshare_db.DB{Bun: bunDB},
		registry,
		referralDB,
		shareProducerOrNil(kafkaProducer),
		log,
	)

	shareHandler := &revshare_api.Handler{
		Service:       shareService,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        log,
	}
	referralHandler := &referral_api.Handler{
		Registry: registry,
		QR:       qrGen,
	}

	webhookLimiter := ratelimit.NewLimiter(cfg.Webhook.RateLimit, cfg.Webhook.RateWindow)
	defer webhookLimiter.Stop()

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/revenue/share-preview", shareHandler.SharePreview)
	r.Get("/api/referral/validate/{code}", referralHandler.ValidateCode)
	log.Info("ROUTER", "Public routes registered")

	// --- Webhook Route ---
	r.Group(func(r chi.Router) {
		r.Use(webhookLimiter.Middleware)
		r.Post("/api/revenue/webhook/stripe", shareHandler.StripeWebhook)
	})
	log.Info("ROUTER", "Stripe webhook registered at /api/revenue/webhook/stripe")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		r.Use(auth.RequireRole(models.RoleModerator, models.RoleAdmin))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api/revenue", func(r chi.Router) {
			r.Post("/process/{bookingId}", shareHandler.ProcessBooking)
			r.Get("/moderators/{moderatorId}/shares", shareHandler.GetModeratorShares)
			r.Post("/shares/{shareId}/paid", shareHandler.MarkSharePaid)
			r.Get("/hosts/{hostId}/confirmed-count", shareHandler.GetHostConfirmedCount)
			r.Get("/referral-codes/{moderatorId}/confirmed-count", shareHandler.GetReferralConfirmedCount)
		})
		log.Info("ROUTER", "Revenue routes registered under /api/revenue")

		r.Route("/api/referral/moderators/{moderatorId}", func(r chi.Router) {
			r.Post("/code", referralHandler.EnsureCode)
			r.Get("/code/qr", referralHandler.CodeQR)
		})
		log.Info("ROUTER", "Referral routes registered under /api/referral")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Revenue Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Revenue Service shutdown complete")
	}
}

// producerOrNil keeps the typed-nil *kafka.Producer from leaking into the
// registry's interface field when Kafka is disabled.
func producerOrNil(p *kafka.Producer) referral.KafkaPublisher {
	if p == nil {
		return nil
	}
	return p
}

func shareProducerOrNil(p *kafka.Producer) revshare.KafkaPublisher {
	if p == nil {
		return nil
	}
	return p
}

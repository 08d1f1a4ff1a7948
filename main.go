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

	"ms-rental/internal/auth"
	"ms-rental/internal/booking"
	"ms-rental/internal/booking/booking_api"
	bookingdb "ms-rental/internal/booking/db"
	bookingkafka "ms-rental/internal/booking/kafka"
	redislock "ms-rental/internal/booking/redis"
	"ms-rental/internal/catalog"
	"ms-rental/internal/catalog/catalog_api"
	"ms-rental/internal/config"
	"ms-rental/internal/gateway"
	"ms-rental/internal/logger"
	"ms-rental/internal/voucher"
)

func connectPostgres(log *logger.Logger, cfg config.DatabaseConfig) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
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
		log.Fatal("DATABASE", fmt.Sprintf("Could not connect to PostgreSQL: %v", err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "Connected to PostgreSQL")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()

	// --- PostgreSQL ---
	bunDB := connectPostgres(log, cfg.Database)
	defer bunDB.Close()

	// Dev bootstrap; the SQL migrations own the production schema.
	if err := bookingdb.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Booking table migration failed: %v", err))
	}
	if err := catalog.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Vehicle table migration failed: %v", err))
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	log.Info("REDIS", fmt.Sprintf("Connecting to Redis at %s", cfg.Redis.Addr))
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	// --- Kafka ---
	var events booking.EventPublisher
	var kafkaProducer *bookingkafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.BookingCreated,
			cfg.Kafka.Topics.BookingConfirmed,
			cfg.Kafka.Topics.BookingCancelled,
			cfg.Kafka.Topics.PaymentFailed,
		}
		if err := bookingkafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed (continuing): %v", err))
		}
		kafkaProducer = bookingkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer kafkaProducer.Close()
		events = kafkaProducer
		log.Info("KAFKA", fmt.Sprintf("Kafka producer connected to %v", cfg.Kafka.Brokers))
	} else {
		events = bookingkafka.Noop{}
		log.Warn("KAFKA", "Kafka disabled, booking events will not be published")
	}

	// --- Payment gateway ---
	gw, err := gateway.NewRazorpayGateway(cfg.Gateway, log)
	if err != nil {
		log.Fatal("GATEWAY", fmt.Sprintf("Gateway init failed: %v", err))
	}

	// --- Services ---
	log.Info("APP", "Initializing booking service")
	bookingStore := &bookingdb.DB{Bun: bunDB}
	catalogStore := &catalog.DB{Bun: bunDB}
	holdLock := redislock.NewLock(redisClient, cfg.Booking.HoldTTL)
	vouchers := voucher.NewGenerator(cfg.Gateway.KeySecret)

	bookingService := booking.NewBookingService(
		bookingStore, holdLock, catalogStore, gw, events, vouchers,
		cfg.Booking, cfg.Gateway.Currency, log)

	bookingHandler := booking_api.NewHandler(bookingService, log)
	catalogHandler := catalog_api.NewHandler(catalogStore, log)

	// --- Router ---
	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// Public vehicle browsing
	r.Get("/api/vehicles", catalogHandler.ListVehicles)
	r.Get("/api/vehicles/{vehicleId}", catalogHandler.GetVehicle)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			bookingHandler.RegisterRoutes(r)
			r.Post("/vehicles", catalogHandler.CreateVehicle)
		})
		log.Info("ROUTER", "Booking routes registered under /api/bookings")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Rental booking service running on %s", cfg.Server.Port))
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
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Rental booking service shutdown complete")
	}
}

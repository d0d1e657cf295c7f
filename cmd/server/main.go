package main // Entry point package

import (
	"log"  // Logging library
	"time" // Durations for token and hold TTLs

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/lanternhall/dinner-show-booking/internal/booking"
	"github.com/lanternhall/dinner-show-booking/internal/config"
	"github.com/lanternhall/dinner-show-booking/internal/database"
	"github.com/lanternhall/dinner-show-booking/internal/handler"
	"github.com/lanternhall/dinner-show-booking/internal/hold"
	"github.com/lanternhall/dinner-show-booking/internal/payment"
	"github.com/lanternhall/dinner-show-booking/internal/queue"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
	"github.com/lanternhall/dinner-show-booking/internal/router"
	queue_publisher "github.com/lanternhall/dinner-show-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs holds, rate limiting and the response cache. A nil
	// client degrades gracefully: holds fall back to the in-process
	// store and the middleware become pass-throughs.
	rdb := config.NewRedisClient()
	var holdStore hold.Store
	if rdb != nil {
		holdStore = hold.NewRedisStore(rdb)
	} else {
		log.Println("redis unavailable, using in-process hold store")
		holdStore = hold.NewMemoryStore()
	}

	store := repository.NewMySQLBookingStore(db)
	staffRepo := repository.NewStaffRepo(db)
	eventRepo := repository.NewEventRepo(db)

	// Notifications flow through RabbitMQ. The consumer reconnects
	// forever in its own goroutine; publish failures are best-effort
	// and never roll back booking state.
	notifier := queue_publisher.NewPublisher()
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	holds := hold.NewManager(holdStore, store, time.Duration(cfg.HoldTTLMin)*time.Minute)
	validator := booking.NewValidator(store, holds)
	writer := booking.NewWriter(store, validator, notifier)
	recoverer := booking.NewRecoverer(writer, store)
	reconciler := payment.NewReconciler(store, notifier)
	refunds := payment.NewRefundClient(cfg.StripeSecretKey)

	h := router.Handlers{
		Auth:    handler.NewAuthHandler(staffRepo, cfg.JWTSecret, time.Duration(cfg.AccessTTLMin)*time.Minute, cfg.BcryptCost),
		Booking: handler.NewBookingHandler(holds, validator, writer),
		Webhook: handler.NewWebhookHandler(reconciler, cfg.StripeWebhookSecret),
		Admin:   handler.NewAdminHandler(validator, writer, recoverer, store, eventRepo, refunds),
	}

	e := echo.New()
	router.Register(e, h, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

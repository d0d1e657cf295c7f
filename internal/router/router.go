package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/lanternhall/dinner-show-booking/internal/config"
	"github.com/lanternhall/dinner-show-booking/internal/handler"
	"github.com/lanternhall/dinner-show-booking/internal/middleware"
)

// Handlers groups the handler structs the router mounts.  main wires
// them once at startup and hands the bundle here.
type Handlers struct {
	Auth    *handler.AuthHandler
	Booking *handler.BookingHandler
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminHandler
}

// Register mounts every route on the Echo instance.  The public
// surface sits behind the rate limiter and, for reads, the response
// cache; the staff surface sits behind JWT auth and role checks.
// rdb may be nil, which disables rate limiting and caching but
// changes nothing else.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e.GET("/healthz", handler.Health)

	// Public booking flow. Writes are rate limited; the cutoff read
	// is cached because the answer only moves once a day per event.
	v1 := e.Group("/v1")
	v1.POST("/auth/login", h.Auth.Login, rateLimit)
	v1.POST("/events/:id/hold", h.Booking.CreateHold, rateLimit)
	v1.DELETE("/events/:id/hold", h.Booking.ReleaseHold, rateLimit)
	v1.POST("/validate-table", h.Booking.ValidateTable, rateLimit)
	v1.GET("/events/:id/ticket-cutoff", h.Booking.TicketCutoff, cache)
	v1.POST("/checkout", h.Booking.Checkout, rateLimit)

	// Provider webhooks authenticate by signature, not JWT, and must
	// never be rate limited or the provider backs off.
	v1.POST("/webhooks/payment", h.Webhook.HandlePaymentWebhook)

	// Staff backoffice.
	admin := v1.Group("/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole("STAFF", "MANAGER"))
	admin.POST("/bookings", h.Admin.CreateBooking)
	admin.POST("/validate-reassignment", h.Admin.ValidateReassignment)
	admin.POST("/reassign", h.Admin.Reassign)
	admin.POST("/recover-booking", h.Admin.RecoverBooking)
	admin.POST("/refund", h.Admin.Refund)
	admin.POST("/check-in", h.Admin.CheckIn)
	admin.GET("/unmatched-events", h.Admin.ListUnmatched)
	admin.POST("/events", h.Admin.CreateEvent)
	admin.GET("/events", h.Admin.ListEvents)
	admin.POST("/events/:id/close", h.Admin.CloseEvent)
	admin.GET("/tables", h.Admin.ListTables)

	// Account provisioning is manager-only.
	manager := v1.Group("/admin/staff", middleware.JWTAuth(jwtSecret), middleware.RequireRole("MANAGER"))
	manager.POST("", h.Auth.CreateStaff)
}

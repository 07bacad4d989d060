package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/config"
	"github.com/example/medipay/internal/handlers"
	"github.com/example/medipay/internal/middleware"
	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	notify := services.NewNotificationService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	audit := services.NewAuditService(db)
	fraud := services.NewFraudService(db, audit)
	fees := services.NewFeeService(db)
	gateway := services.NewWalletSimulator(nil)
	payments := services.NewPaymentService(db, cfg, audit, fraud, fees, gateway, notify)

	limiter := middleware.NewMemoryRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)

	authHandler := handlers.NewAuthHandler(db, cfg)
	bookingHandler := handlers.NewBookingHandler(db)
	paymentHandler := handlers.NewPaymentHandler(db, payments)
	auditHandler := handlers.NewAuditHandler(audit)
	fraudHandler := handlers.NewFraudHandler(fraud)

	anyRole := middleware.RequireRoles(cfg, audit)
	staffOnly := middleware.RequireRoles(cfg, audit, models.RoleHospitalAdmin, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(cfg, audit, models.RoleAdmin)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Booking and hospital management
	api.Post("/hospitals", staffOnly, bookingHandler.CreateHospital)
	api.Post("/bookings", staffOnly, bookingHandler.CreateBooking)
	api.Get("/bookings/:id", anyRole, bookingHandler.GetBooking)

	// Payment pipeline: role gate, then rate gate, then ceilings.
	api.Post("/payments/bookings/:id",
		anyRole,
		middleware.RateLimit(limiter, audit),
		middleware.PaymentLimits(cfg, db, audit),
		paymentHandler.Process)
	api.Post("/payments/:id/refund", staffOnly, paymentHandler.Refund)
	api.Get("/payments", adminOnly, paymentHandler.List)

	// Audit and fraud administration
	api.Get("/audit/logs", adminOnly, auditHandler.Logs)
	api.Get("/audit/verify/:id", adminOnly, auditHandler.Verify)
	api.Get("/audit/report", adminOnly, auditHandler.Report)
	api.Post("/fraud/analyze", adminOnly, fraudHandler.Analyze)
	api.Get("/fraud/rules", adminOnly, fraudHandler.Rules)
	api.Put("/fraud/rules", adminOnly, fraudHandler.UpdateRules)
}

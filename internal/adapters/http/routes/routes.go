package routes

import (
	"alumni-ledger/internal/adapters/http/handlers"
	"alumni-ledger/internal/adapters/http/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Due       *handlers.DueHandler
	Loan      *handlers.LoanHandler
	Payment   *handlers.PaymentHandler
	Report    *handlers.ReportHandler
	Dashboard *handlers.DashboardHandler

	// Tokens resolves the caller behind an access token on protected groups
	Tokens middleware.Authenticator
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
}

// Setup configures all routes for the application
func Setup(app *fiber.App, h Handlers) {
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.HealthCheck)

	if h.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1", middleware.NoCacheHeaders())
	auth := middleware.AuthMiddleware(h.Tokens)

	setupAuthRoutes(api.Group("/auth"), h.Auth, auth)
	setupMemberRoutes(api.Group("/members", auth), h.User)
	setupDueRoutes(api.Group("/dues", auth), h.Due)
	setupLoanRoutes(api.Group("/loans", auth), h.Loan)
	setupPaymentRoutes(api.Group("/payments", auth), h.Payment)
	setupReportRoutes(api.Group("/reports", auth, middleware.AdminOnly()), h.Report)
	setupDashboardRoutes(api.Group("/dashboard", auth), h.Dashboard)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, auth fiber.Handler) {
	// Public routes
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", auth, handler.Me)
	router.Post("/logout-all", auth, handler.LogoutAll)
}

// setupMemberRoutes configures profile and member administration routes
func setupMemberRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/me", handler.GetProfile)
	router.Put("/me", handler.UpdateProfile)
	router.Put("/me/password", handler.ChangePassword)

	router.Get("/", middleware.AdminOnly(), handler.ListMembers)
	router.Get("/:userId", handler.GetMember)
	router.Get("/:userId/ledger", handler.LedgerHistory)

	router.Patch("/:userId/role", middleware.SuperAdminOnly(), handler.SetRole)
	router.Patch("/:userId/active", middleware.SuperAdminOnly(), handler.SetActive)
}

// setupDueRoutes configures due routes. Only issuing and reviewing require an admin.
func setupDueRoutes(router fiber.Router, handler *handlers.DueHandler) {
	admin := middleware.AdminOnly()

	router.Get("/me", handler.ListMine)
	router.Get("/", admin, handler.List)
	router.Post("/", admin, handler.Create)
	router.Post("/bulk", admin, handler.BulkCreate)
	router.Patch("/bulk", admin, handler.BulkUpdate)
	router.Get("/:id", handler.GetByID)
	router.Patch("/:id/status", admin, handler.UpdateStatus)
	router.Delete("/:id", admin, handler.Delete)
	router.Post("/:id/restore", admin, handler.Restore)
}

// setupLoanRoutes configures loan routes
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler) {
	admin := middleware.AdminOnly()

	router.Post("/", handler.Apply)
	router.Get("/", admin, handler.List)
	router.Get("/me", handler.ListMine)
	router.Get("/member/:userId", handler.ListByBorrower)
	router.Get("/:id", handler.GetByID)
	router.Patch("/:id/status", admin, handler.UpdateStatus)
}

// setupPaymentRoutes configures payment routes
func setupPaymentRoutes(router fiber.Router, handler *handlers.PaymentHandler) {
	admin := middleware.AdminOnly()

	router.Post("/", handler.Create)
	router.Get("/", admin, handler.List)
	router.Get("/me", handler.ListMine)
	router.Get("/:id", handler.GetByID)
	router.Patch("/:id/status", admin, handler.UpdateStatus)
}

// setupReportRoutes configures report routes (Admin only)
func setupReportRoutes(router fiber.Router, handler *handlers.ReportHandler) {
	router.Post("/", handler.Generate)
	router.Get("/", handler.List)
	router.Get("/:id", handler.GetByID)
}

// setupDashboardRoutes configures dashboard routes
func setupDashboardRoutes(router fiber.Router, handler *handlers.DashboardHandler) {
	router.Get("/", handler.GetMyDashboard)
	router.Get("/admin", middleware.AdminOnly(), handler.GetAdminDashboard)
}

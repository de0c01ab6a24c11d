package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sokoplace/sokoplace-backend/api/controllers"
	webhookcontrollers "github.com/sokoplace/sokoplace-backend/api/controllers/webhooks"
	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/internal/auth"
	"github.com/sokoplace/sokoplace-backend/internal/deliveries"
	"github.com/sokoplace/sokoplace-backend/internal/notifications"
	"github.com/sokoplace/sokoplace-backend/internal/orders"
	"github.com/sokoplace/sokoplace-backend/internal/payments"
	"github.com/sokoplace/sokoplace-backend/internal/refunds"
	"github.com/sokoplace/sokoplace-backend/internal/stream"
	paystackwebhook "github.com/sokoplace/sokoplace-backend/internal/webhooks/paystack"
	"github.com/sokoplace/sokoplace-backend/pkg/config"
	"github.com/sokoplace/sokoplace-backend/pkg/db"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	Auth          auth.Service
	Orders        orders.Service
	Payments      payments.Service
	Deliveries    deliveries.Service
	Refunds       refunds.Service
	Notifications notifications.Service
	Stream        stream.Service

	Webhook      *paystackwebhook.Service
	WebhookGuard *paystackwebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(logg, deps.DB, deps.Redis))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(
			deps.Webhook, deps.WebhookGuard, cfg.Paystack.SignatureSecret(), logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.Post("/login", controllers.AuthLogin(deps.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		paymentLimit := middleware.RateLimit("payment",
			cfg.RateLimit.PaymentLimit, cfg.RateLimit.PaymentWindow, deps.Redis, logg)
		cancelLimit := middleware.RateLimit("cancel",
			cfg.RateLimit.CancelLimit, cfg.RateLimit.CancelWindow, deps.Redis, logg)

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.Get("/", controllers.ListOrders(deps.Orders, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(deps.Orders, logg))
				r.Get("/stream", controllers.StreamOrder(deps.Orders, deps.Stream, logg))
				r.With(paymentLimit).Post("/payment", controllers.InitializePayment(
					deps.Payments, cfg.Paystack.CallbackURL, logg))
				r.Post("/payment/verify", controllers.VerifyPayment(deps.Payments, logg))
				r.With(cancelLimit).Post("/cancel", controllers.CancelOrder(deps.Refunds, logg))
				r.Post("/dispute", controllers.DisputeOrder(deps.Orders, logg))
			})
		})

		r.Route("/v1/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleSeller, logg))
			r.Post("/orders/{orderId}/status", controllers.SellerUpdateOrderStatus(deps.Orders, logg))
		})

		r.Route("/v1/rider", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleRider, logg))
			r.Post("/availability", controllers.RiderAvailability(deps.Deliveries, logg))
			r.Get("/deliveries", controllers.RiderDeliveries(deps.Deliveries, logg))
			r.Route("/deliveries/{deliveryId}", func(r chi.Router) {
				r.Post("/pickup", controllers.RiderPickup(deps.Deliveries, logg))
				r.Post("/transit", controllers.RiderTransit(deps.Deliveries, logg))
				r.Post("/deliver", controllers.RiderDeliver(deps.Deliveries, logg))
				r.Post("/location", controllers.RiderLocation(deps.Deliveries, logg))
			})
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/payments/{orderId}/refund", controllers.AdminRefund(deps.Refunds, logg))
			r.Post("/orders/{orderId}/resolve-dispute", controllers.AdminResolveDispute(deps.Refunds, logg))
		})
	})

	return r
}

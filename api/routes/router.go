package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/batahq/bata-backend/api/controllers"
	"github.com/batahq/bata-backend/api/middleware"
	"github.com/batahq/bata-backend/internal/auth"
	checkoutsvc "github.com/batahq/bata-backend/internal/checkout"
	"github.com/batahq/bata-backend/internal/disputes"
	"github.com/batahq/bata-backend/internal/orders"
	"github.com/batahq/bata-backend/internal/settlement"
	"github.com/batahq/bata-backend/internal/wallet"
	"github.com/batahq/bata-backend/pkg/config"
	"github.com/batahq/bata-backend/pkg/db"
	"github.com/batahq/bata-backend/pkg/logger"
	"github.com/batahq/bata-backend/pkg/redis"
)

// Deps lists everything the HTTP surface needs. cmd/api builds this once at
// startup.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      *redis.Client
	Auth       auth.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Settlement settlement.Engine
	Wallet     wallet.Service
	Disputes   disputes.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.Login(deps.Auth, logg))
		r.Post("/register", controllers.Register(deps.Auth, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Group(func(r chi.Router) {
			r.Post("/v1/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Route("/v1/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
				r.Post("/{orderId}/transition", controllers.TransitionOrder(deps.Orders, logg))
				r.Post("/{orderId}/confirm-delivery", controllers.ConfirmDelivery(deps.Settlement, logg))
				r.Post("/{orderId}/disputes", controllers.OpenDispute(deps.Disputes, logg))
			})

			r.Route("/v1/wallet", func(r chi.Router) {
				r.Get("/", controllers.GetWallet(deps.Wallet, logg))
				r.Get("/ledger", controllers.ListLedger(deps.Wallet, logg))
				r.Post("/withdraw", controllers.Withdraw(deps.Wallet, logg))
			})

			r.Route("/v1/disputes", func(r chi.Router) {
				r.Get("/", controllers.ListDisputes(deps.Disputes, logg))
				r.Get("/{disputeId}", controllers.GetDispute(deps.Disputes, logg))
				r.Post("/{disputeId}/messages", controllers.PostDisputeMessage(deps.Disputes, logg))
				r.Post("/{disputeId}/evidence", controllers.SubmitDisputeEvidence(deps.Disputes, logg))
			})
		})

		r.Route("/admin/v1/disputes", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Post("/{disputeId}/review", controllers.StartDisputeReview(deps.Disputes, logg))
			r.Post("/{disputeId}/resolve", controllers.ResolveDispute(deps.Disputes, logg))
		})
	})

	return r
}

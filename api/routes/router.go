package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockbookhq/stockbook-backend/api/controllers"
	"github.com/stockbookhq/stockbook-backend/api/middleware"
	"github.com/stockbookhq/stockbook-backend/internal/auth"
	"github.com/stockbookhq/stockbook-backend/internal/invitations"
	"github.com/stockbookhq/stockbook-backend/internal/properties"
	"github.com/stockbookhq/stockbook-backend/internal/transactions"
	"github.com/stockbookhq/stockbook-backend/pkg/auth/session"
	"github.com/stockbookhq/stockbook-backend/pkg/config"
	"github.com/stockbookhq/stockbook-backend/pkg/db"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
	"github.com/stockbookhq/stockbook-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionChecker session.AccessSessionChecker

	AuthService     auth.Service
	RegisterService auth.RegisterService
	Invitations     invitations.Service
	Properties      properties.Service
	Transactions    transactions.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
	})

	r.Route("/api/v1/invitations", func(r chi.Router) {
		// issuing invites is operator tooling, kept off production builds
		if !cfg.App.IsProd() {
			r.Post("/", controllers.InvitationIssue(p.Invitations, logg))
		}
		r.Post("/accept", controllers.InvitationAccept(p.Invitations, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/properties", func(r chi.Router) {
			r.Post("/", controllers.PropertyCreate(p.Properties, logg))
			r.Get("/", controllers.PropertyList(p.Properties, logg))
			r.Get("/{propertyId}", controllers.PropertyGet(p.Properties, logg))
			r.Delete("/{propertyId}", controllers.PropertyRemove(p.Properties, logg))
		})

		r.Route("/v1/transactions", func(r chi.Router) {
			r.Post("/", controllers.TransactionRecord(p.Transactions, logg))
			r.Get("/", controllers.TransactionList(p.Transactions, logg))
		})
	})

	return r
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/stockbookhq/stockbook-backend/api/routes"
	"github.com/stockbookhq/stockbook-backend/internal/auth"
	"github.com/stockbookhq/stockbook-backend/internal/invitations"
	"github.com/stockbookhq/stockbook-backend/internal/properties"
	"github.com/stockbookhq/stockbook-backend/internal/transactions"
	"github.com/stockbookhq/stockbook-backend/internal/users"
	"github.com/stockbookhq/stockbook-backend/pkg/auth/session"
	"github.com/stockbookhq/stockbook-backend/pkg/config"
	"github.com/stockbookhq/stockbook-backend/pkg/db"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
	"github.com/stockbookhq/stockbook-backend/pkg/migrate"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	invitationRepo := invitations.NewRepository(dbClient.DB())
	invitationService, err := invitations.NewService(invitations.ServiceParams{
		Repo:   invitationRepo,
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
		Config: cfg.Invites,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		Invitations:    invitationService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Outbox:         outboxService,
		PasswordConfig: cfg.Password,
		InvitesConfig:  cfg.Invites,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	propertyRepo := properties.NewRepository(dbClient.DB())
	transactionRepo := transactions.NewRepository(dbClient.DB())

	propertyService, err := properties.NewService(properties.ServiceParams{
		Repo:        propertyRepo,
		Tx:          dbClient,
		Ledger:      transactionRepo,
		Outbox:      outboxService,
		Logger:      logg,
		MaxPageSize: cfg.API.MaxPageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create property service", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(transactions.ServiceParams{
		Repo:         transactionRepo,
		PropertyRepo: propertyRepo,
		Tx:           dbClient,
		Outbox:       outboxService,
		Logger:       logg,
		MaxPageSize:  cfg.API.MaxPageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			SessionChecker:  sessionManager,
			AuthService:     authService,
			RegisterService: registerService,
			Invitations:     invitationService,
			Properties:      propertyService,
			Transactions:    transactionService,
		}),
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

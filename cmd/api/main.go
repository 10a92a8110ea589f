package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/config"
	"github.com/tgmarket/market-api/internal/domain/admin"
	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/domain/listing"
	"github.com/tgmarket/market-api/internal/domain/payment"
	"github.com/tgmarket/market-api/internal/domain/purchase"
	"github.com/tgmarket/market-api/internal/domain/referral"
	"github.com/tgmarket/market-api/internal/domain/user"
	"github.com/tgmarket/market-api/internal/middleware"
	"github.com/tgmarket/market-api/internal/pkg/database"
	"github.com/tgmarket/market-api/internal/pkg/jwt"
	"github.com/tgmarket/market-api/internal/pkg/logger"
	"github.com/tgmarket/market-api/internal/pkg/monopay"
	pkgresponse "github.com/tgmarket/market-api/internal/pkg/response"
	"github.com/tgmarket/market-api/internal/pkg/telegram"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting market API")

	if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTTTL)

	monopayClient := monopay.NewClient(monopay.Config{
		BaseURL:     cfg.MonopayBaseURL,
		Token:       cfg.MonopayToken,
		WebhookURL:  cfg.MonopayWebhookURL,
		RedirectURL: cfg.MonopayRedirectURL,
		Timeout:     cfg.MonopayTimeout,
	})
	notifier := telegram.NewNotifier(telegram.NotifierConfig{
		BotToken:  cfg.TelegramBotToken,
		ChannelID: cfg.NotifyChannelID,
		Timeout:   cfg.NotifyTimeout,
	})

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	userRepo := user.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db)
	listingRepo := listing.NewRepository(db)
	referralRepo := referral.NewRepository(db)
	adminRepo := admin.NewRepository(db)

	// ---------- Services ----------
	ledgerSvc := ledger.NewService(ledgerRepo)
	referralSvc := referral.NewService(referralRepo, ledgerSvc)
	userSvc := user.NewService(userRepo, jwtService, cfg.TelegramBotToken, referralSvc)
	paymentSvc := payment.NewService(paymentRepo, monopayClient, ledgerSvc)
	listingSvc := listing.NewService(listingRepo, ledgerSvc, notifier, cfg.ListingLifetime)
	purchaseSvc := purchase.NewService(purchaseRepo, ledgerSvc, paymentSvc, listingRepo)

	// Late wiring: payment settlement fulfills purchases, approvals pay
	// referral rewards, deletion checks pending promotion payments.
	paymentSvc.SetFulfiller(purchaseSvc)
	listingSvc.SetRewarder(referralSvc)
	listingSvc.SetPromotionChecker(purchaseSvc)

	var adminSvc *admin.Service
	if redisClient != nil {
		adminSessions := admin.NewSessionStore(redisClient, cfg.AdminSessionTTL)
		adminSvc = admin.NewService(adminRepo, adminSessions)
	} else {
		log.Warn().Msg("Redis not configured, admin API disabled")
	}

	// ---------- Handlers ----------
	userHandler := user.NewHandler(userSvc)
	ledgerHandler := ledger.NewHandler(ledgerSvc)
	paymentHandler := payment.NewHandler(paymentSvc)
	purchaseHandler := purchase.NewHandler(purchaseSvc)
	listingHandler := listing.NewHandler(listingSvc)
	referralHandler := referral.NewHandler(referralSvc)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Background workers ----------
	expiryWorker := listing.NewWorker(listingSvc, cfg.ExpirySweepInterval)
	expiryWorker.Start()
	defer expiryWorker.Stop()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", userHandler.AuthRoutes())
		r.Mount("/users", userHandler.Routes(authMiddleware))
		r.Mount("/listings", listingHandler.Routes(authMiddleware))
		r.Mount("/purchases", purchaseHandler.Routes(authMiddleware))
		r.Mount("/referrals", referralHandler.Routes(authMiddleware))

		r.Route("/payments", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/balance", ledgerHandler.Balance)
			r.Get("/transactions", ledgerHandler.Transactions)
			r.Post("/topup", paymentHandler.Topup)
			r.Post("/{invoiceId}/check", paymentHandler.Check)
		})
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	if adminSvc != nil {
		adminHandler := admin.NewHandler(adminSvc, listingSvc, cfg.IsProduction())
		r.Mount("/api/admin", adminHandler.Routes())
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

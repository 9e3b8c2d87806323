package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"streamflow/cache"
	"streamflow/config"
	"streamflow/core/auth"
	"streamflow/core/billing"
	"streamflow/core/catalog"
	"streamflow/db"
	"streamflow/logger"
	"streamflow/model"
	"streamflow/repository"
)

// Start initializes dependencies, wires the API and runs the HTTP server
// until a shutdown signal.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	auth.Init(cfg.JWTSecret)

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer sqlDB.Close()

	if err := db.InitSchema(sqlDB); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	gormDB, err := db.ConnectGorm(cfg)
	if err != nil {
		logger.Fatal("failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGorm(gormDB)

	if err := db.MigrateBillingModels(gormDB); err != nil {
		logger.Fatal("failed to migrate billing models", logger.ErrorField(err))
	}

	rdb, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", logger.ErrorField(err))
	}
	defer rdb.Close()
	logger.Info("connected to redis", logger.String("addr", cfg.RedisHost+":"+cfg.RedisPort))

	userRepo := repository.NewMySQLUserRepository(sqlDB)
	favoriteRepo := repository.NewMySQLFavoriteRepository(sqlDB)
	playlistRepo := repository.NewMySQLPlaylistRepository(sqlDB)
	historyRepo := repository.NewMySQLHistoryRepository(sqlDB)

	planRepo := repository.NewGormPlanRepository(gormDB)
	subRepo := repository.NewGormSubscriptionRepository(gormDB)
	paymentRepo := repository.NewGormPaymentRepository(gormDB)

	if err := planRepo.Seed(defaultPlans()); err != nil {
		logger.Fatal("failed to seed subscription plans", logger.ErrorField(err))
	}

	catalogClient := catalog.NewClient(cfg.CatalogAPIURL, cfg.CatalogClientID, cfg.CatalogAPITimeout)
	billingService := billing.NewService(
		cfg.StripeSecretKey,
		cfg.StripeWebhookSecret,
		cfg.CheckoutSuccessURL,
		cfg.CheckoutCancelURL,
		planRepo, subRepo, paymentRepo, userRepo,
	)

	queueStore := cache.NewQueueStore(rdb)
	recentCache := cache.NewRecentCache(rdb)
	prefStore := cache.NewPreferenceStore(rdb)

	apiHandler := NewAPIHandler(
		cfg,
		userRepo, favoriteRepo, playlistRepo, historyRepo, planRepo,
		catalogClient, billingService,
		queueStore, recentCache, prefStore,
	)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	registerRoutes(router, apiHandler)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Stripe-Signature")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func registerRoutes(router *mux.Router, h *APIHandler) {
	// Auth
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.AuthMiddleware(h.LogoutHandler)).Methods(http.MethodPost)

	// Catalog
	router.HandleFunc("/api/catalog/tracks/search", h.SearchTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog/tracks/chart", h.ChartHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog/tracks/{id}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/catalog/artists/search", h.SearchArtistsHandler).Methods(http.MethodGet)

	// Player / queue
	router.HandleFunc("/api/player/queue", h.AuthMiddleware(h.GetQueueHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/queue", h.AuthMiddleware(h.ClearQueueHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/player/queue/reorder", h.AuthMiddleware(h.ReorderQueueHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/player/queue/{trackId}", h.AuthMiddleware(h.RemoveFromQueueHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/player/play", h.AuthMiddleware(h.PlayTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/next", h.AuthMiddleware(h.NextTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/prev", h.AuthMiddleware(h.PrevTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/repeat", h.AuthMiddleware(h.ToggleRepeatHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/shuffle", h.AuthMiddleware(h.ToggleShuffleHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/recent", h.AuthMiddleware(h.RecentlyPlayedHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/history", h.AuthMiddleware(h.ListeningHistoryHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/preferences", h.AuthMiddleware(h.GetPreferencesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/player/preferences", h.AuthMiddleware(h.UpdatePreferencesHandler)).Methods(http.MethodPut)

	// Favorites
	router.HandleFunc("/api/favorites", h.AuthMiddleware(h.ListFavoritesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/favorites", h.AuthMiddleware(h.AddFavoriteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/favorites/migrate", h.AuthMiddleware(h.MigrateFavoritesHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/favorites/{trackId}", h.AuthMiddleware(h.RemoveFavoriteHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/favorites/{trackId}", h.AuthMiddleware(h.IsLikedHandler)).Methods(http.MethodGet)

	// Playlists
	router.HandleFunc("/api/playlists", h.AuthMiddleware(h.ListPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", h.AuthMiddleware(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}", h.AuthMiddleware(h.GetPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}", h.AuthMiddleware(h.UpdatePlaylistHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/playlists/{id}", h.AuthMiddleware(h.DeletePlaylistHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/tracks", h.AuthMiddleware(h.AddPlaylistTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}/tracks/{trackId}", h.AuthMiddleware(h.RemovePlaylistTrackHandler)).Methods(http.MethodDelete)

	// Billing
	router.HandleFunc("/api/billing/plans", h.ListPlansHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/billing/checkout", h.AuthMiddleware(h.CreateCheckoutHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/billing/subscription", h.AuthMiddleware(h.GetSubscriptionHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/billing/subscription/cancel", h.AuthMiddleware(h.CancelSubscriptionHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/billing/payments", h.AuthMiddleware(h.PaymentHistoryHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/billing/webhook", h.StripeWebhookHandler).Methods(http.MethodPost)
}

// defaultPlans seeds the plan catalog on first start. Seeding never
// overwrites rows an operator has edited.
func defaultPlans() []model.SubscriptionPlan {
	return []model.SubscriptionPlan{
		{
			Name:              "Free",
			Description:       "Ad-supported listening with basic limits",
			PriceCents:        0,
			Currency:          "usd",
			Interval:          model.IntervalMonth,
			MaxPlaylists:      5,
			MaxPlaylistTracks: 100,
			HasAds:            true,
			HighQualityAudio:  false,
		},
		{
			Name:              "Premium",
			Description:       "Ad-free listening, high quality audio, unlimited playlists",
			PriceCents:        999,
			Currency:          "usd",
			Interval:          model.IntervalMonth,
			StripePriceID:     os.Getenv("STRIPE_PRICE_PREMIUM_MONTHLY"),
			MaxPlaylists:      0,
			MaxPlaylistTracks: 0,
			HasAds:            false,
			HighQualityAudio:  true,
		},
		{
			Name:              "Premium Annual",
			Description:       "Premium billed once a year",
			PriceCents:        9999,
			Currency:          "usd",
			Interval:          model.IntervalYear,
			StripePriceID:     os.Getenv("STRIPE_PRICE_PREMIUM_YEARLY"),
			MaxPlaylists:      0,
			MaxPlaylistTracks: 0,
			HasAds:            false,
			HighQualityAudio:  true,
		},
	}
}

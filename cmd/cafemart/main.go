package main

import (
	"context"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roastery/cafemart/config"
	"github.com/roastery/cafemart/internal/auth"
	handler "github.com/roastery/cafemart/internal/handler/http"
	"github.com/roastery/cafemart/internal/logger"
	"github.com/roastery/cafemart/internal/metrics"
	"github.com/roastery/cafemart/internal/middleware"
	"github.com/roastery/cafemart/internal/realtime"
	"github.com/roastery/cafemart/internal/repository"
	"github.com/roastery/cafemart/internal/repository/postgres"
	"github.com/roastery/cafemart/internal/service"
	"github.com/roastery/cafemart/internal/worker"
	"go.uber.org/zap"
)

const defaultTokenKey = "2b144f355a1cd2e15c77e59e84d4f1ce"

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Log.Sync()

	// create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Log.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	if err := db.Migrate(); err != nil {
		logger.Log.Fatal("Error migrating database", zap.Error(err))
	}

	keyHex := cfg.TokenKey
	if keyHex == "" {
		keyHex = defaultTokenKey
	}
	tokenKey, err := hex.DecodeString(keyHex)
	if err != nil {
		logger.Log.Fatal("Error extracting token key", zap.Error(err))
	}
	token := auth.NewAuthToken(tokenKey)

	metrics.Register()

	hub := realtime.NewHub(logger.Log)

	// dependency injection
	// notifications
	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	// points
	pointsRepo := repository.NewPointsRepository(db)
	pointsService := service.NewPointsService(pointsRepo, db)
	pointsHandler := handler.NewPointsHandler(pointsService)

	// orders
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	orderService := service.NewOrderService(orderRepo, pointsRepo, userRepo, notificationService, db)
	orderHandler := handler.NewOrderHandler(orderService)

	// payments
	paymentService := service.NewPaymentService(orderRepo, orderService, notificationService, db)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// points expiry sweeper
	sweepService := service.NewSweepService(pointsRepo, notificationRepo, notificationService, db)
	sweeper := worker.NewExpirySweeper(sweepService, cfg.SweepInterval)
	go sweeper.Sweep(ctx)

	router := chi.NewRouter()

	router.Use(middleware.Logging(logger.Log))

	router.Handle("/metrics", promhttp.Handler())

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(handler.AuthMiddleware(token))

		group.Post("/api/orders", orderHandler.CreateOrder())
		group.Get("/api/orders", orderHandler.ListUserOrders())
		group.Get("/api/orders/{id}", orderHandler.GetOrder())
		group.Get("/api/orders/{id}/history", orderHandler.GetStatusHistory())
		group.Patch("/api/orders/{id}/status", orderHandler.RequestTransition())

		group.Get("/api/points/balance", pointsHandler.GetBalance())
		group.Get("/api/points/history", pointsHandler.GetHistory())
		group.Post("/api/points/redeem", pointsHandler.Redeem())

		group.Get("/api/notifications", notificationHandler.List())
		group.Post("/api/notifications/{id}/read", notificationHandler.MarkRead())
		group.Post("/api/notifications/read", notificationHandler.MarkAllRead())
		group.Delete("/api/notifications", notificationHandler.DeleteAll())

		// admin-only payment verification
		group.Group(func(admin chi.Router) {
			admin.Use(handler.AdminOnly)
			admin.Post("/api/admin/orders/{id}/payment/verify", paymentHandler.Verify())
			admin.Post("/api/admin/orders/{id}/payment/reject", paymentHandler.Reject())
		})
	})

	logger.Log.Info("Running server", zap.String("addr", cfg.ServerAddr))

	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		logger.Log.Fatal("Error starting server", zap.Error(err))
	}
}

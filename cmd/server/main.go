package main

import (
	"log"
	"shop_concierge/internal/config"
	"shop_concierge/internal/database"
	"shop_concierge/internal/handlers"
	"shop_concierge/internal/redis"
	"shop_concierge/internal/repository"
	"shop_concierge/internal/services"
	"shop_concierge/pkg/mpesa"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	// Initialize M-Pesa client
	mpesaClient := mpesa.NewClient(
		cfg.MpesaBaseURL,
		cfg.MpesaConsumerKey,
		cfg.MpesaConsumerSecret,
		cfg.MpesaShortCode,
		cfg.MpesaPasskey,
		cfg.MpesaCallbackURL,
		time.Duration(cfg.MpesaTimeoutSeconds)*time.Second,
		redisClient,
	)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo)
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, expenseRepo, redisClient)
	paymentService := services.NewPaymentService(
		orderRepo,
		mpesaClient,
		redisClient,
		time.Duration(cfg.PaymentRetryCooldownMinutes)*time.Minute,
	)
	reconService := services.NewReconciliationService(
		orderRepo,
		redisClient,
		time.Duration(cfg.PaymentExpiryMinutes)*time.Minute,
		decimal.NewFromInt(int64(cfg.ReconcileToleranceUnits)),
	)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(
		userService,
		orderService,
		productService,
		redisClient,
		time.Duration(cfg.StatusCacheTTLSeconds)*time.Second,
	)
	paymentHandler := handlers.NewPaymentHandler(paymentService, orderService, reconService)

	// Setup routes
	router := gin.Default()

	// Provider callback is unauthenticated; Daraja cannot carry our headers
	router.POST("/api/payments/mpesa/callback", paymentHandler.MpesaCallback)

	// Reconciliation trigger for the external scheduler
	router.POST("/api/admin/reconcile",
		handlers.RequireSharedSecret(cfg.ReconcileToken),
		paymentHandler.RunReconciliation,
	)

	api := router.Group("/api", handlers.Identify(userService))
	{
		api.POST("/auth/login", apiHandler.Login)
		api.GET("/products", apiHandler.ListProducts)

		authed := api.Group("", handlers.RequireUser())
		{
			authed.POST("/orders", apiHandler.CreateOrder)
			authed.GET("/orders", apiHandler.ListOrders)
			authed.GET("/orders/:id", apiHandler.GetOrder)
			authed.GET("/orders/:id/status", apiHandler.GetOrderStatus)
			authed.POST("/orders/:id/pay", paymentHandler.InitiatePayment)
		}

		admin := api.Group("/admin", handlers.RequireAdmin())
		{
			admin.POST("/orders/:id/status", apiHandler.UpdateOrderStatus)
			admin.POST("/orders/:id/expenses", apiHandler.AddExpense)
			admin.GET("/orders/:id/profit", apiHandler.GetProfit)
			admin.POST("/products", apiHandler.CreateProduct)
			admin.PUT("/products/:id", apiHandler.UpdateProduct)
			admin.DELETE("/products/:id", apiHandler.DeleteProduct)
		}
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

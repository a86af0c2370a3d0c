package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stylemart/stylemart-backend-go/handlers"
	customMiddleware "github.com/stylemart/stylemart-backend-go/middleware"
	"github.com/stylemart/stylemart-backend-go/models"
)

func SetupRoutes(e *echo.Echo, h *handlers.Handler) {
	// Public routes
	e.POST("/register", h.Register)
	e.POST("/login", h.Login)
	e.POST("/payments/webhook", h.Webhook)
	e.GET("/ws", h.ServeWS)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Protected API routes
	api := e.Group("/api")
	api.Use(customMiddleware.AuthMiddleware)

	// User routes
	api.GET("/users/me", h.GetProfile)
	api.PUT("/users/me", h.UpdateProfile)
	api.POST("/users/me/addresses", h.AddAddress)

	// Product routes
	api.GET("/products", h.GetProducts)
	api.GET("/products/:id", h.GetProduct)
	api.POST("/products", h.CreateProduct,
		customMiddleware.RequireRole(models.RoleStylist, models.RoleAdmin))
	api.PUT("/products/:id", h.UpdateProduct,
		customMiddleware.RequireRole(models.RoleAdmin))

	// Cart routes
	api.GET("/cart", h.GetCart)
	api.POST("/cart", h.AddToCart)
	api.DELETE("/cart/:productId", h.RemoveFromCart)
	api.PUT("/cart/quantity", h.UpdateCartQuantity)

	// Wishlist routes
	api.GET("/wishlist", h.GetWishlist)
	api.POST("/wishlist", h.AddToWishlist)
	api.DELETE("/wishlist/:productId", h.RemoveFromWishlist)

	// Order routes
	api.POST("/orders", h.CreateOrder)
	api.GET("/orders", h.GetOrders)
	api.GET("/orders/stylist", h.GetStylistOrders,
		customMiddleware.RequireRole(models.RoleStylist))
	api.GET("/orders/:orderId", h.GetOrder)
	api.GET("/orders/:orderId/status", h.GetOrderStatus)
	api.PUT("/orders/:orderId/status", h.UpdateOrderStatus,
		customMiddleware.RequireRole(models.RoleStylist, models.RoleAdmin))
	api.POST("/orders/:orderId/balance", h.PayBalance)

	// Payment routes
	api.GET("/payments/:reference/status", h.PaymentStatus)
	api.POST("/payments/:reference/verify", h.VerifyPayment)

	// Wallet routes
	api.GET("/wallet", h.GetWallet)
	api.GET("/wallet/transactions", h.GetTransactions)
	api.POST("/wallet/fund", h.FundWallet)

	// Admin routes
	admin := api.Group("/admin", customMiddleware.RequireRole(models.RoleAdmin))
	admin.POST("/users/:id/wallet-credit", h.AdminCreditWallet)
	admin.POST("/transactions/:reference/reverse", h.AdminReverseTransaction)
}

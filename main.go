package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/config"
	"github.com/stylemart/stylemart-backend-go/database"
	"github.com/stylemart/stylemart-backend-go/handlers"
	"github.com/stylemart/stylemart-backend-go/notify"
	"github.com/stylemart/stylemart-backend-go/orders"
	"github.com/stylemart/stylemart-backend-go/paystack"
	"github.com/stylemart/stylemart-backend-go/realtime"
	"github.com/stylemart/stylemart-backend-go/routes"
	"github.com/stylemart/stylemart-backend-go/wallet"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Initialize Echo
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Connect to MongoDB
	store, err := database.Connect(
		config.GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
		config.GetEnv("MONGODB_DATABASE", "stylemart"),
	)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close(context.Background())

	memCache := cache.NewMemory()
	gateway := paystack.New(
		config.GetEnv("PAYSTACK_SECRET_KEY", ""),
		config.GetEnv("PAYSTACK_BASE_URL", paystack.DefaultBaseURL),
	)
	hub := realtime.NewHub(logger)
	mailer := &notify.SMTPSender{
		Host:     config.GetEnv("SMTP_HOST", "localhost"),
		Port:     config.GetEnv("SMTP_PORT", "587"),
		Username: config.GetEnv("SMTP_USERNAME", ""),
		Password: config.GetEnv("SMTP_PASSWORD", ""),
		From:     config.GetEnv("SMTP_FROM", "no-reply@stylemart.io"),
	}
	dispatcher := notify.NewDispatcher(hub, mailer, logger)

	walletService := wallet.NewService(store, memCache, logger)
	orderService := orders.NewService(store, walletService, gateway, memCache, dispatcher, logger)
	engine := orders.NewEngine(store, walletService, memCache, dispatcher, logger)

	h := &handlers.Handler{
		Store:         store,
		Cache:         memCache,
		Orders:        orderService,
		Engine:        engine,
		Wallet:        walletService,
		Gateway:       gateway,
		Hub:           hub,
		WebhookSecret: config.GetEnv("PAYSTACK_SECRET_KEY", ""),
		CallbackURL:   config.GetEnv("PAYMENT_CALLBACK_URL", ""),
		Log:           logger,
	}

	// Setup routes
	routes.SetupRoutes(e, h)

	// Start the server
	port := config.GetEnv("PORT", "3000")
	e.Logger.Fatal(e.Start(":" + port))
}

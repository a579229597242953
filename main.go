package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"offerwall-rewards-system/handlers"
	"offerwall-rewards-system/middleware"
	"offerwall-rewards-system/models"
	"offerwall-rewards-system/services"
	"offerwall-rewards-system/utils"
	"offerwall-rewards-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := services.LoadConfig()
	if cfg.PostbackSecret == "" {
		log.Fatal("POSTBACK_SECRET environment variable not set — refusing to accept partner callbacks")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // card images only
	})

	// 🔐 GLOBAL: only Gateway requests allowed, except the partner postback
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-User-Name, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Withdrawal{},
		&models.Reward{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledgerService := services.NewLedgerService(db)
	referralService := services.NewReferralService(db, ledgerService, cfg)
	postbackService := services.NewPostbackService(db, ledgerService, referralService, cfg)
	withdrawalService := services.NewWithdrawalService(db, ledgerService, cfg)
	userService := services.NewUserService(db, ledgerService, referralService, cfg)
	catalogService := services.NewCatalogService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.FulfillmentURL != "" {
		fulfillmentClient := workers.NewFulfillmentClient(withdrawalService, cfg)
		go workers.PollWithdrawals(ctx, fulfillmentClient, 30*time.Second)
	} else {
		log.Println("⚠️  FULFILLMENT_URL not set — withdrawals stay pending until fulfilled manually")
	}

	withdrawalService.StartMaintenanceScheduler()

	handlers.SetupPostbackRoutes(app, postbackService)
	handlers.SetupUserRoutes(app, userService, withdrawalService)
	handlers.SetupShopRoutes(app, catalogService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Postback endpoint live at /postback")
	log.Println("✅ Withdrawal maintenance scheduler running (every 10m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"music-access-system/handlers"
	"music-access-system/middleware"
	"music-access-system/models"
	"music-access-system/services"
	"music-access-system/utils"
	"music-access-system/workers"

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

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // 32MB — artwork only, audio goes straight to R2
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
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

	// TranslateError maps unique-constraint violations to gorm.ErrDuplicatedKey,
	// which the idempotent-insert paths (purchases, referral codes, points
	// dedup keys) rely on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Content{},
		&models.MonetizationSettings{},
		&models.Interaction{},
		&models.Purchase{},
		&models.Subscription{},
		&models.DownloadToken{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.PointsHistory{},
		&models.AuditLogEntry{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	quotaService := services.NewQuotaService(db)
	entitlementService := services.NewEntitlementService(db, quotaService)
	auditService := services.NewAuditService(db)
	downloadService := services.NewDownloadService(db, entitlementService, auditService)
	revenueService := services.NewRevenueService(db)
	referralService := services.NewReferralService(db)
	subscriptionService := services.NewSubscriptionService(db)
	contentService := services.NewContentService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Purchase sync: payment service → purchases (+ revenue split + points)
	purchaseSync := workers.NewPurchaseSyncClient(db, revenueService, referralService)
	go workers.PollPurchases(ctx, purchaseSync, 15*time.Second)

	downloadService.StartMaintenanceScheduler(referralService)

	// ✅ Setup routes — enforced Gateway auth everywhere
	handlers.SetupAccessRoutes(app, entitlementService, downloadService, auditService)
	handlers.SetupRewardsRoutes(app, referralService)
	handlers.SetupContentRoutes(app, contentService, subscriptionService, revenueService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Purchase polling running (every 15s)")
	log.Println("✅ Maintenance scheduler running (token purge, referral verification)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/darlynton/ev-assistant-bot/database"
	"github.com/darlynton/ev-assistant-bot/internal/config"
	"github.com/darlynton/ev-assistant-bot/internal/handlers"
	"github.com/darlynton/ev-assistant-bot/internal/models"
	"github.com/darlynton/ev-assistant-bot/internal/routes"
	"github.com/darlynton/ev-assistant-bot/internal/services"
	"github.com/darlynton/ev-assistant-bot/internal/session"
	"github.com/darlynton/ev-assistant-bot/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if cfg.Meta.AccessToken == "" || cfg.Meta.PhoneNumberID == "" {
		log.Println("⚠️  Meta Cloud API credentials not found - Cloud API replies will be limited")
	}
	if cfg.Chargers.OpenChargeMapKey == "" {
		log.Println("⚠️  Open Charge Map key not found - charger lookup will be degraded")
	}

	// Initialize storage
	var store storage.Store

	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(cfg.Database); err != nil {
			log.Fatal("Failed to connect to database:", err)
		}

		log.Println("🔄 Running database migrations...")
		if err := database.DB.AutoMigrate(&models.VehicleProfile{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Initialize services
	resolver := services.NewChargerService(cfg.Chargers, cfg.HTTPTimeout())
	metaService := services.NewMetaService(cfg.Meta, cfg.HTTPTimeout())
	engine := services.NewEngine(store, resolver)

	twilioService, err := services.NewTwilioService(cfg.Twilio)
	if err != nil {
		log.Printf("⚠️  Twilio service not initialized: %v", err)
	} else {
		log.Println("✅ Twilio service initialized")
	}

	// Session manager with lazy expiry and a background sweep
	sessions := session.NewManager(cfg.SessionTimeout())
	sessions.StartSweeper(5*time.Minute, cfg.EvictAfter())

	whatsappHandler := handlers.NewWhatsAppHandler(sessions, engine, metaService, twilioService, cfg.Meta.VerifyToken)

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "EV Assistant Bot v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, whatsappHandler, sessions)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		sessions.StopSweeper()
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 EV Assistant Bot starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageType(cfg))
	log.Printf("📱 Cloud API: %s", configuredStatus(cfg.Meta.AccessToken))
	log.Printf("📞 Twilio: %s", configuredStatus(cfg.Twilio.AccountSID))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Port))
}

func storageType(cfg *config.Config) string {
	if cfg.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func configuredStatus(credential string) string {
	if credential == "" {
		return "Not configured"
	}
	return "Configured"
}

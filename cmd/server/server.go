package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/craftable/errx/errxfiber"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/adapters/genesys"
	"github.com/shabibmr/waba-xypr-sub002/messaging/adapters/whatsapp"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/database"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
	"github.com/shabibmr/waba-xypr-sub002/pkg/storage"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogger(cfg)

	log.Println("🚀 Starting WABA relay...")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)

	// Conectar a PostgreSQL
	log.Println("🔌 Connecting to PostgreSQL...")
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)
	log.Println("✅ Connected to PostgreSQL")

	// Conectar a Redis
	log.Println("🔌 Connecting to Redis...")
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer database.CloseRedis(redisClient)
	log.Println("✅ Connected to Redis")

	// Preparar object storage para media
	log.Println("🔌 Connecting to object storage...")
	objectStore := storage.NewS3Store(cfg.Storage)
	if err := objectStore.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to ensure media bucket: %v", err)
	}
	log.Println("✅ Object storage ready")

	// Inicializar contenedor de dependencias
	container := NewContainer(cfg, db, redisClient, objectStore)
	defer container.Cleanup()

	// Arrancar consumidores, mover de reintentos y jobs programados
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	container.Start(workerCtx)

	// Crear aplicación Fiber
	app := fiber.New(fiber.Config{
		AppName:      "WABA Relay",
		ServerHeader: "Relay",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errxfiber.FiberErrorHandler(),
	})

	setupMiddleware(app, cfg)

	log.Println("🛣️  Setting up routes...")
	setupRoutes(app, container)
	log.Println("✅ Routes configured")

	// Iniciar servidor en goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("⏸️  Shutting down server...")

	// Dejar de aceptar webhooks antes de frenar los consumidores, para que el
	// pipeline drene lo ya encolado
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("❌ Error during server shutdown: %v", err)
	}

	stopWorkers()

	log.Println("👋 Server stopped gracefully")
}

// setupLogger configura el logger
func setupLogger(cfg *config.Config) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.Server.Environment == "production" {
		log.SetFlags(log.LstdFlags)
	}
}

// setupMiddleware configura los middleware globales
func setupMiddleware(app *fiber.App, cfg *config.Config) {
	app.Use(requestid.New())

	if cfg.Server.Environment != "test" {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
		}))
	}

	// Recover de panics
	app.Use(recover.New())

	// Los webhooks llegan server-to-server; CORS solo aplica a las rutas
	// internas consultadas desde tooling de operación
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST",
	}))

	app.Use(compress.New())
}

// setupRoutes configura todas las rutas de la aplicación
func setupRoutes(app *fiber.App, c *Container) {
	app.Get("/health", healthCheckHandler(c))

	// =================================================================
	// WEBHOOKS
	// =================================================================
	whatsapp.RegisterRoutes(app, c.WhatsAppWebhookHandler)
	genesys.RegisterRoutes(app, c.GenesysWebhookHandler)

	// =================================================================
	// INTERNAL ROUTES
	// =================================================================
	registerInternalRoutes(app, c.TenantResolver, c.TenantDir)

	// =================================================================
	// 404 HANDLER
	// =================================================================
	app.Use(func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
			"path":  ctx.Path(),
		})
	})
}

// registerInternalRoutes monta las rutas de operación: no están expuestas al
// público, las consume el servicio de onboarding y el tooling interno
func registerInternalRoutes(app *fiber.App, resolver messaging.TenantResolver, directory messaging.TenantDirectory) {
	// Invalidación del cache de ruteo tras cambios de credenciales
	app.Post("/internal/tenants/:tenantId/invalidate", func(ctx *fiber.Ctx) error {
		tenantID := kernel.NewTenantID(ctx.Params("tenantId"))
		if tenantID.IsEmpty() {
			return messaging.ErrTenantNotFound()
		}

		if err := resolver.Invalidate(ctx.Context(), tenantID); err != nil {
			return err
		}

		log.Printf("🔄 Routing cache invalidated for tenant %s", tenantID)
		return ctx.JSON(fiber.Map{"status": "invalidated"})
	})

	// Listado paginado de enrutamientos, para auditoría de onboarding
	app.Get("/internal/tenants", func(ctx *fiber.Ctx) error {
		req := messaging.ListTenantsRequest{
			PaginationOptions: storex.PaginationOptions{
				Page:     ctx.QueryInt("page", 1),
				PageSize: ctx.QueryInt("page_size", 20),
			},
		}
		if ctx.Query("is_active") != "" {
			isActive := ctx.QueryBool("is_active")
			req.IsActive = &isActive
		}

		list, err := directory.List(ctx.Context(), req)
		if err != nil {
			return err
		}
		return ctx.JSON(list)
	})
}

// healthCheckHandler reporta el estado de las dependencias
func healthCheckHandler(c *Container) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		health := c.HealthCheck()

		services := make(map[string]string, len(health))
		allHealthy := true
		for name, healthy := range health {
			if healthy {
				services[name] = "up"
			} else {
				services[name] = "down"
				allHealthy = false
			}
		}

		status := "healthy"
		statusCode := fiber.StatusOK
		if !allHealthy {
			status = "degraded"
			statusCode = fiber.StatusServiceUnavailable
		}

		return ctx.Status(statusCode).JSON(messaging.HealthResponse{
			Status:   status,
			Services: services,
		})
	}
}

package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	genesysadapter "github.com/shabibmr/waba-xypr-sub002/messaging/adapters/genesys"
	whatsappadapter "github.com/shabibmr/waba-xypr-sub002/messaging/adapters/whatsapp"
	"github.com/shabibmr/waba-xypr-sub002/messaging/delivery"
	"github.com/shabibmr/waba-xypr-sub002/messaging/messaginginfra"
	"github.com/shabibmr/waba-xypr-sub002/messaging/messagingsrv"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/storage"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client
	ObjectStore *storage.S3Store

	// =================================================================
	// QUEUE & STORES
	// =================================================================
	Queue         *messaginginfra.RedisQueue
	Conversations messaging.ConversationStore
	Correlations  messaging.CorrelationStore
	Dedupe        messaging.DedupeStore
	TenantDir     messaging.TenantDirectory

	// =================================================================
	// SERVICES
	// =================================================================
	TenantResolver messaging.TenantResolver
	TokenProvider  messaging.TokenProvider
	MediaRelay     *messagingsrv.MediaRelayService
	Correlator     *messagingsrv.StatusCorrelator

	// Webhook processors
	WhatsAppProcessor *messagingsrv.WhatsAppProcessor
	GenesysProcessor  *messagingsrv.GenesysProcessor

	// =================================================================
	// PLATFORM ADAPTERS
	// =================================================================
	WhatsAppAdapter *whatsappadapter.Adapter
	GenesysAdapter  *genesysadapter.Adapter

	// Webhook handlers
	WhatsAppWebhookHandler *whatsappadapter.WebhookHandler
	GenesysWebhookHandler  *genesysadapter.WebhookHandler

	// =================================================================
	// DELIVERY CONSUMERS
	// =================================================================
	Consumers []*delivery.Consumer

	// =================================================================
	// SCHEDULED JOBS ⏰
	// =================================================================
	Cron *cron.Cron
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, objectStore *storage.S3Store) *Container {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
		ObjectStore: objectStore,
	}

	log.Println("📦 Initializing dependency container...")

	c.initStores()
	c.initServices()
	c.initAdapters()   // 📡 Adapters need TokenProvider
	c.initProcessors() // Processors need MediaRelay (which needs the WhatsApp adapter)
	c.initHandlers()
	c.initConsumers()
	c.initScheduledJobs()

	log.Println("✅ Dependency container initialized successfully")

	return c
}

// =================================================================
// STORES INITIALIZATION
// =================================================================

func (c *Container) initStores() {
	log.Println("  🗄️  Initializing stores...")

	c.Queue = messaginginfra.NewRedisQueue(c.RedisClient)
	c.Conversations = messaginginfra.NewRedisConversationStore(c.RedisClient)
	c.Correlations = messaginginfra.NewRedisCorrelationStore(c.RedisClient)
	c.Dedupe = messaginginfra.NewRedisDedupeStore(c.RedisClient, c.Config.Relay.DedupeTTL)
	c.TenantDir = messaginginfra.NewPostgresTenantDirectory(c.DB)

	log.Println("  ✅ Stores initialized")
}

// =================================================================
// SERVICES INITIALIZATION
// =================================================================

func (c *Container) initServices() {
	log.Println("  🔧 Initializing services...")

	c.TenantResolver = messagingsrv.NewCachedTenantResolver(c.TenantDir, c.Conversations, c.RedisClient)
	c.TokenProvider = messagingsrv.NewAuthTokenProvider(c.Config.Auth)
	c.Correlator = messagingsrv.NewStatusCorrelator(
		c.Correlations,
		c.Conversations,
		c.TenantResolver,
		c.Queue,
		c.Config.Relay.IgnoreSentStatus,
	)

	log.Println("  ✅ Services initialized")
}

// =================================================================
// PLATFORM ADAPTERS INITIALIZATION 📡
// =================================================================

func (c *Container) initAdapters() {
	log.Println("  📡 Initializing platform adapters...")

	httpClient := &http.Client{Timeout: c.Config.Relay.SendTimeout}

	c.WhatsAppAdapter = whatsappadapter.NewAdapter(c.Config.WhatsApp, c.TokenProvider, httpClient)
	c.GenesysAdapter = genesysadapter.NewAdapter(c.Config.Genesys, c.TokenProvider, httpClient)

	// Media relay lee de WhatsApp (el adapter es la fuente) y escribe al
	// object store con su propio timeout, más holgado que el de envío
	c.MediaRelay = messagingsrv.NewMediaRelayService(c.ObjectStore, c.WhatsAppAdapter, c.Config.Relay.MediaTimeout)

	log.Println("  ✅ Platform adapters initialized")
}

// =================================================================
// WEBHOOK PROCESSORS INITIALIZATION
// =================================================================

func (c *Container) initProcessors() {
	log.Println("  ⚙️  Initializing webhook processors...")

	c.WhatsAppProcessor = messagingsrv.NewWhatsAppProcessor(
		c.TenantResolver,
		c.Conversations,
		c.MediaRelay,
		c.Queue,
	)

	c.GenesysProcessor = messagingsrv.NewGenesysProcessor(
		c.TenantResolver,
		c.MediaRelay,
		c.Queue,
		c.Config.Relay.UnsupportedMime,
	)

	log.Println("  ✅ Webhook processors initialized")
}

func (c *Container) initHandlers() {
	log.Println("  🌐 Initializing webhook handlers...")

	c.WhatsAppWebhookHandler = whatsappadapter.NewWebhookHandler(
		c.Config.WhatsApp,
		c.TenantResolver,
		c.WhatsAppProcessor,
	)

	c.GenesysWebhookHandler = genesysadapter.NewWebhookHandler(
		c.Config.Genesys,
		c.TenantResolver,
		c.GenesysProcessor,
	)

	log.Println("  ✅ Webhook handlers initialized")
}

// =================================================================
// DELIVERY CONSUMERS INITIALIZATION
// =================================================================

func (c *Container) initConsumers() {
	log.Println("  🚚 Initializing delivery consumers...")

	relayCfg := c.Config.Relay

	c.Consumers = []*delivery.Consumer{
		delivery.NewConsumer(c.Queue, messaging.QueueInboundReady,
			delivery.NewGenesysInboundHandler(c.GenesysAdapter, c.Dedupe, c.Conversations), relayCfg),
		delivery.NewConsumer(c.Queue, messaging.QueueInboundStatusReady,
			delivery.NewGenesysReceiptHandler(c.GenesysAdapter), relayCfg),
		delivery.NewConsumer(c.Queue, messaging.QueueOutboundReady,
			delivery.NewWhatsAppOutboundHandler(c.WhatsAppAdapter, c.Dedupe, c.Queue), relayCfg),
		delivery.NewConsumer(c.Queue, messaging.QueueOutboundStatus,
			delivery.NewWhatsAppStatusHandler(c.WhatsAppAdapter), relayCfg),
		delivery.NewConsumer(c.Queue, messaging.QueueOutboundAck,
			c.Correlator.HandleAck, relayCfg),
		delivery.NewConsumer(c.Queue, messaging.QueueWhatsAppStatus,
			c.Correlator.HandleWhatsAppStatus, relayCfg),
		delivery.NewConsumer(c.Queue, messaging.QueueGenesysStatus,
			c.Correlator.HandleGenesysStatus, relayCfg),
	}

	log.Printf("  ✅ %d delivery consumers initialized", len(c.Consumers))
}

// =================================================================
// SCHEDULED JOBS INITIALIZATION ⏰
// =================================================================

// backlogWarnThreshold es el largo de cola a partir del cual el reporte
// periódico empieza a avisar
const backlogWarnThreshold = 100

func (c *Container) initScheduledJobs() {
	log.Println("  ⏰ Initializing scheduled jobs...")

	c.Cron = cron.New()

	// Reporte periódico de colas: visibilidad mínima sin stack de métricas.
	// Backlog creciente o DLQ no vacía son las dos señales de operación.
	c.Cron.AddFunc("* * * * *", func() {
		ctx := context.Background()
		for _, queue := range messaging.AllQueues {
			depth, err := c.Queue.Depth(ctx, queue)
			if err != nil {
				log.Printf("  ⚠️  Failed to read depth for %s: %v", queue, err)
				continue
			}
			if depth > backlogWarnThreshold {
				log.Printf("📈 Queue %s backlog at %d entries", queue, depth)
			}

			dlqDepth, err := c.Queue.DeadLetterDepth(ctx, queue)
			if err != nil {
				log.Printf("  ⚠️  Failed to read DLQ depth for %s: %v", queue, err)
				continue
			}
			if dlqDepth > 0 {
				log.Printf("💀 DLQ %s has %d entries", queue, dlqDepth)
			}
		}

		if pending, err := c.Queue.PendingRetries(ctx); err == nil && pending > 0 {
			log.Printf("⏳ %d deliveries awaiting scheduled retry", pending)
		}
	})

	// Limpieza horaria de mapeos de conversación huérfanos
	c.Cron.AddFunc("0 * * * *", func() {
		removed, err := c.Conversations.SweepOrphans(context.Background())
		if err != nil {
			log.Printf("  ⚠️  Conversation sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("🧹 Swept %d orphaned conversation mappings", removed)
		}
	})

	log.Println("  ✅ Scheduled jobs initialized")
}

// =================================================================
// LIFECYCLE
// =================================================================

// Start arranca los workers de fondo: consumidores, mover de reintentos y cron
func (c *Container) Start(ctx context.Context) {
	log.Println("🚚 Starting background workers...")

	c.Queue.StartRetryWorker(ctx)
	for _, consumer := range c.Consumers {
		consumer.Start(ctx)
	}
	c.Cron.Start()

	log.Println("✅ Background workers started")
}

func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.Cron != nil {
		log.Println("  ⏰ Stopping scheduled jobs...")
		c.Cron.Stop()
	}

	for _, consumer := range c.Consumers {
		consumer.Stop()
	}
	log.Println("  🚚 Delivery consumers stopped")

	if c.Queue != nil {
		log.Println("  🔁 Stopping retry worker...")
		c.Queue.StopRetryWorker()
	}

	if c.DB != nil {
		log.Println("  🗄️  Closing database connections...")
		c.DB.Close()
	}

	if c.RedisClient != nil {
		log.Println("  🔴 Closing Redis connections...")
		c.RedisClient.Close()
	}

	log.Println("✅ Container cleanup complete")
}

func (c *Container) HealthCheck() map[string]bool {
	ctx := context.Background()
	health := make(map[string]bool)

	if c.DB != nil {
		health["database"] = c.DB.Ping() == nil
	} else {
		health["database"] = false
	}

	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(ctx).Err() == nil
	} else {
		health["redis"] = false
	}

	if c.ObjectStore != nil {
		health["storage"] = c.ObjectStore.Ping(ctx) == nil
	} else {
		health["storage"] = false
	}

	if c.Queue != nil {
		health["queue"] = c.Queue.Ping(ctx) == nil
	} else {
		health["queue"] = false
	}

	return health
}

package messagingsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

const (
	routingCachePrefix     = "relay:tenant:routing:"     // JSON de TenantRouting
	integrationIndexPrefix = "relay:tenant:integration:" // integrationId -> tenantId
	phoneIndexPrefix       = "relay:tenant:phone:"       // phoneNumberId -> tenantId
	routingCacheTTL        = 15 * time.Minute
)

var _ messaging.TenantResolver = (*CachedTenantResolver)(nil)

// CachedTenantResolver resuelve el tenant de cada webhook con cache en Redis
// por delante del directorio en PostgreSQL. La invalidación es explícita: el
// directorio es la fuente de verdad y el cache solo acelera el camino caliente.
type CachedTenantResolver struct {
	directory     messaging.TenantDirectory
	conversations messaging.ConversationStore
	redis         *redis.Client
	cacheTTL      time.Duration
}

func NewCachedTenantResolver(
	directory messaging.TenantDirectory,
	conversations messaging.ConversationStore,
	redisClient *redis.Client,
) *CachedTenantResolver {
	return &CachedTenantResolver{
		directory:     directory,
		conversations: conversations,
		redis:         redisClient,
		cacheTTL:      routingCacheTTL,
	}
}

// ResolveByConversation resuelve vía el mapeo de conversación activa
func (r *CachedTenantResolver) ResolveByConversation(ctx context.Context, conversationID kernel.ConversationID) (kernel.TenantID, error) {
	if conversationID.IsEmpty() {
		return "", messaging.ErrTenantNotResolved().WithDetail("reason", "empty conversation id")
	}
	return r.conversations.GetTenantByConversation(ctx, conversationID)
}

// ResolveByIntegration resuelve por el integration ID de Genesys
func (r *CachedTenantResolver) ResolveByIntegration(ctx context.Context, integrationID kernel.IntegrationID) (kernel.TenantID, error) {
	if integrationID.IsEmpty() {
		return "", messaging.ErrTenantNotResolved().WithDetail("reason", "empty integration id")
	}

	cacheKey := integrationIndexPrefix + integrationID.String()
	if cached, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
		return kernel.NewTenantID(cached), nil
	}

	routing, err := r.directory.GetByIntegrationID(ctx, integrationID)
	if err != nil {
		return "", err
	}

	r.cacheRouting(ctx, routing)
	return routing.TenantID, nil
}

// ResolveByPhoneNumber resuelve por el phone number ID de WhatsApp
func (r *CachedTenantResolver) ResolveByPhoneNumber(ctx context.Context, phoneNumberID kernel.PhoneNumberID) (kernel.TenantID, error) {
	if phoneNumberID.IsEmpty() {
		return "", messaging.ErrTenantNotResolved().WithDetail("reason", "empty phone number id")
	}

	cacheKey := phoneIndexPrefix + phoneNumberID.String()
	if cached, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
		return kernel.NewTenantID(cached), nil
	}

	routing, err := r.directory.GetByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		return "", err
	}

	r.cacheRouting(ctx, routing)
	return routing.TenantID, nil
}

// GetRouting retorna el enrutamiento completo de un tenant, cacheado
func (r *CachedTenantResolver) GetRouting(ctx context.Context, tenantID kernel.TenantID) (*messaging.TenantRouting, error) {
	cacheKey := routingCachePrefix + tenantID.String()

	if cached, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
		var routing messaging.TenantRouting
		if err := json.Unmarshal([]byte(cached), &routing); err == nil {
			return &routing, nil
		}
	}

	routing, err := r.directory.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if !routing.IsActive {
		return nil, messaging.ErrTenantInactive().WithDetail("tenant_id", tenantID.String())
	}

	r.cacheRouting(ctx, routing)
	return routing, nil
}

// Invalidate purga todas las entradas cacheadas de un tenant
func (r *CachedTenantResolver) Invalidate(ctx context.Context, tenantID kernel.TenantID) error {
	routing, err := r.directory.GetByTenantID(ctx, tenantID)

	pipe := r.redis.Pipeline()
	pipe.Del(ctx, routingCachePrefix+tenantID.String())
	if err == nil {
		pipe.Del(ctx, integrationIndexPrefix+routing.IntegrationID.String())
		pipe.Del(ctx, phoneIndexPrefix+routing.PhoneNumberID.String())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate tenant cache: %w", err)
	}

	log.Printf("♻️  Invalidated routing cache for tenant %s", tenantID)
	return nil
}

func (r *CachedTenantResolver) cacheRouting(ctx context.Context, routing *messaging.TenantRouting) {
	data, err := json.Marshal(routing)
	if err != nil {
		return
	}

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, routingCachePrefix+routing.TenantID.String(), data, r.cacheTTL)
	if !routing.IntegrationID.IsEmpty() {
		pipe.Set(ctx, integrationIndexPrefix+routing.IntegrationID.String(), routing.TenantID.String(), r.cacheTTL)
	}
	if !routing.PhoneNumberID.IsEmpty() {
		pipe.Set(ctx, phoneIndexPrefix+routing.PhoneNumberID.String(), routing.TenantID.String(), r.cacheTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️  Failed to cache routing for tenant %s: %v", routing.TenantID, err)
	}
}

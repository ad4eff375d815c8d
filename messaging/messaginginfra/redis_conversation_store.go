package messaginginfra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

const (
	waMappingPrefix   = "relay:conv:wa:"   // relay:conv:wa:<tenant>:<waId> -> conversationId
	convMappingPrefix = "relay:conv:id:"   // relay:conv:id:<conversationId> -> tenantId
	lastMsgPrefix     = "relay:conv:last:" // relay:conv:last:<tenant>:<conversationId> -> wamid
	conversationTTL   = 1 * time.Hour
)

var _ messaging.ConversationStore = (*RedisConversationStore)(nil)

// RedisConversationStore mantiene el mapeo efímero cliente <-> conversación.
// Ambas direcciones llevan TTL deslizante; la conversación expira sola cuando
// el tráfico se detiene.
type RedisConversationStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisConversationStore(redisClient *redis.Client) *RedisConversationStore {
	return &RedisConversationStore{
		redis: redisClient,
		ttl:   conversationTTL,
	}
}

func waKey(tenantID kernel.TenantID, waID string) string {
	return fmt.Sprintf("%s%s:%s", waMappingPrefix, tenantID.String(), waID)
}

func convKey(conversationID kernel.ConversationID) string {
	return convMappingPrefix + conversationID.String()
}

func lastMsgKey(tenantID kernel.TenantID, conversationID kernel.ConversationID) string {
	return fmt.Sprintf("%s%s:%s", lastMsgPrefix, tenantID.String(), conversationID.String())
}

// GetConversation retorna la conversación activa de un cliente y renueva su
// TTL; ConversationID vacío si no hay mapeo
func (s *RedisConversationStore) GetConversation(ctx context.Context, tenantID kernel.TenantID, waID string) (kernel.ConversationID, error) {
	key := waKey(tenantID, waID)

	val, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get conversation mapping: %w", err)
	}

	// TTL deslizante: el tráfico mantiene viva la conversación
	s.redis.Expire(ctx, key, s.ttl)
	s.redis.Expire(ctx, convKey(kernel.NewConversationID(val)), s.ttl)

	return kernel.NewConversationID(val), nil
}

// GetTenantByConversation resuelve el tenant dueño de una conversación
func (s *RedisConversationStore) GetTenantByConversation(ctx context.Context, conversationID kernel.ConversationID) (kernel.TenantID, error) {
	val, err := s.redis.Get(ctx, convKey(conversationID)).Result()
	if err == redis.Nil {
		return "", messaging.ErrTenantNotResolved().
			WithDetail("conversation_id", conversationID.String())
	}
	if err != nil {
		return "", fmt.Errorf("failed to get conversation tenant: %w", err)
	}
	return kernel.NewTenantID(val), nil
}

// SaveMapping registra el par waId <-> conversación en ambas direcciones
func (s *RedisConversationStore) SaveMapping(ctx context.Context, tenantID kernel.TenantID, waID string, conversationID kernel.ConversationID) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, waKey(tenantID, waID), conversationID.String(), s.ttl)
	pipe.Set(ctx, convKey(conversationID), tenantID.String(), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save conversation mapping: %w", err)
	}
	return nil
}

// DeleteByConversation elimina el mapeo en ambas direcciones a partir de la
// conversación; el mapeo directo se localiza por scan acotado al tenant
func (s *RedisConversationStore) DeleteByConversation(ctx context.Context, conversationID kernel.ConversationID) error {
	tenantID, err := s.redis.Get(ctx, convKey(conversationID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve conversation tenant: %w", err)
	}

	pipe := s.redis.Pipeline()
	pipe.Del(ctx, convKey(conversationID))
	pipe.Del(ctx, lastMsgKey(kernel.NewTenantID(tenantID), conversationID))

	var cursor uint64
	pattern := fmt.Sprintf("%s%s:*", waMappingPrefix, tenantID)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan forward mappings: %w", err)
		}
		for _, key := range keys {
			if val, err := s.redis.Get(ctx, key).Result(); err == nil && val == conversationID.String() {
				pipe.Del(ctx, key)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete conversation mapping: %w", err)
	}

	log.Printf("🔚 Conversation %s disconnected, mapping removed", conversationID)
	return nil
}

// SaveLastCustomerMessage recuerda el último mensaje del cliente
func (s *RedisConversationStore) SaveLastCustomerMessage(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, messageID kernel.MessageID) error {
	if err := s.redis.Set(ctx, lastMsgKey(tenantID, conversationID), messageID.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save last customer message: %w", err)
	}
	return nil
}

// GetLastCustomerMessage retorna el último mensaje del cliente; vacío si no hay
func (s *RedisConversationStore) GetLastCustomerMessage(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID) (kernel.MessageID, error) {
	val, err := s.redis.Get(ctx, lastMsgKey(tenantID, conversationID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last customer message: %w", err)
	}
	return kernel.NewMessageID(val), nil
}

// SweepOrphans elimina mapeos inversos cuyo mapeo directo ya expiró. Los TTL
// de ambas direcciones se renuevan juntos, pero una caída a mitad de pipeline
// puede dejar huérfanos.
func (s *RedisConversationStore) SweepOrphans(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, convMappingPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan conversation mappings: %w", err)
		}

		for _, key := range keys {
			tenantID, err := s.redis.Get(ctx, key).Result()
			if err != nil {
				continue
			}

			conversationID := key[len(convMappingPrefix):]
			forward, err := s.findForwardMapping(ctx, tenantID, conversationID)
			if err != nil {
				return removed, err
			}
			if !forward {
				s.redis.Del(ctx, key)
				removed++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		log.Printf("🧹 Swept %d orphan conversation mappings", removed)
	}
	return removed, nil
}

func (s *RedisConversationStore) findForwardMapping(ctx context.Context, tenantID, conversationID string) (bool, error) {
	var cursor uint64
	pattern := fmt.Sprintf("%s%s:*", waMappingPrefix, tenantID)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return false, fmt.Errorf("failed to scan forward mappings: %w", err)
		}

		for _, key := range keys {
			val, err := s.redis.Get(ctx, key).Result()
			if err == nil && val == conversationID {
				return true, nil
			}
		}

		cursor = next
		if cursor == 0 {
			return false, nil
		}
	}
}

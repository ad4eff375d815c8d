package messaginginfra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

const dedupePrefix = "relay:dedupe:" // relay:dedupe:<tenant>:<messageId>

var _ messaging.DedupeStore = (*RedisDedupeStore)(nil)

// RedisDedupeStore registra entregas completadas dentro de una ventana de
// deduplicación. Se marca solo después de entregar con éxito: una entrega
// caída a mitad de camino se reintenta y la plataforma destino absorbe el
// duplicado restante.
type RedisDedupeStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisDedupeStore(redisClient *redis.Client, ttl time.Duration) *RedisDedupeStore {
	return &RedisDedupeStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

func dedupeKey(tenantID kernel.TenantID, messageID kernel.MessageID) string {
	return fmt.Sprintf("%s%s:%s", dedupePrefix, tenantID.String(), messageID.String())
}

// IsDelivered indica si el mensaje ya fue entregado dentro de la ventana
func (s *RedisDedupeStore) IsDelivered(ctx context.Context, tenantID kernel.TenantID, messageID kernel.MessageID) (bool, error) {
	count, err := s.redis.Exists(ctx, dedupeKey(tenantID, messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe key: %w", err)
	}
	return count > 0, nil
}

// MarkDelivered registra la entrega exitosa
func (s *RedisDedupeStore) MarkDelivered(ctx context.Context, tenantID kernel.TenantID, messageID kernel.MessageID) error {
	if err := s.redis.Set(ctx, dedupeKey(tenantID, messageID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}
	return nil
}

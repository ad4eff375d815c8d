package messaginginfra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

const (
	correlationPrefix = "relay:corr:" // relay:corr:<tenant>:<externalMessageId>
	correlationTTL    = 48 * time.Hour
)

var _ messaging.CorrelationStore = (*RedisCorrelationStore)(nil)

// RedisCorrelationStore persiste registros de correlación write-once con TTL.
// La clave es el ID que la plataforma destino asignó (el wamid), porque los
// recibos posteriores llegan referenciando ese ID.
type RedisCorrelationStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCorrelationStore(redisClient *redis.Client) *RedisCorrelationStore {
	return &RedisCorrelationStore{
		redis: redisClient,
		ttl:   correlationTTL,
	}
}

func correlationKey(tenantID kernel.TenantID, externalMessageID kernel.MessageID) string {
	return fmt.Sprintf("%s%s:%s", correlationPrefix, tenantID.String(), externalMessageID.String())
}

// Save registra la correlación; SetNX preserva la semántica write-once ante
// redeliveries del ack
func (s *RedisCorrelationStore) Save(ctx context.Context, record messaging.CorrelationRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal correlation record: %w", err)
	}

	key := correlationKey(record.TenantID, record.ExternalMessageID)
	if err := s.redis.SetNX(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save correlation record: %w", err)
	}
	return nil
}

// Get recupera un registro de correlación por el ID externo del mensaje
func (s *RedisCorrelationStore) Get(ctx context.Context, tenantID kernel.TenantID, externalMessageID kernel.MessageID) (*messaging.CorrelationRecord, error) {
	data, err := s.redis.Get(ctx, correlationKey(tenantID, externalMessageID)).Result()
	if err == redis.Nil {
		return nil, messaging.ErrCorrelationMissing().
			WithDetail("external_message_id", externalMessageID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get correlation record: %w", err)
	}

	var record messaging.CorrelationRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal correlation record: %w", err)
	}
	return &record, nil
}

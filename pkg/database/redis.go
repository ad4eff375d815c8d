package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
)

const redisConnectTimeout = 5 * time.Second

// NewRedisClient conecta el cliente compartido del pipeline: colas, cache de
// enrutamiento, mapeos de conversación, correlación y dedupe viajan todos por
// esta conexión. Falla en el arranque si el broker no responde, porque sin
// Redis el relay no puede aceptar webhooks de forma durable.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		// Los consumers bloquean en BRPOPLPUSH más tiempo que el default
		ReadTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// CloseRedis cierra la conexión a Redis
func CloseRedis(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

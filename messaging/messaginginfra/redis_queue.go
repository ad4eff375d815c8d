package messaginginfra

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
)

const (
	queuePrefix      = "relay:q:"
	dlqPrefix        = "relay:dlq:"
	processingPrefix = "relay:proc:"    // Entregas reclamadas pendientes de Ack
	retrySetKey      = "relay:retryset" // Sorted set de reintentos programados
	retryItemPrefix  = "relay:retryitem:"
)

var _ messaging.MessageQueue = (*RedisQueue)(nil)

// RedisQueue implementa el broker del pipeline sobre listas de Redis.
// Cada cola es una lista (LPUSH/BRPOP), su DLQ otra lista, y los reintentos
// con delay viven en un sorted set con el timestamp de re-entrega como score.
type RedisQueue struct {
	redis         *redis.Client
	workerRunning bool
	stopChan      chan struct{}
}

// queueEnvelope es el formato on-wire de cada entrega
type queueEnvelope struct {
	Headers envelopeHeaders `json:"headers"`
	Body    json.RawMessage `json:"body"`
}

type envelopeHeaders struct {
	RetryCount      int       `json:"x-retry-count"`
	FirstEnqueuedAt time.Time `json:"x-first-enqueued-at"`
}

// scheduledRetry es el item almacenado mientras espera su re-entrega
type scheduledRetry struct {
	Queue    string        `json:"queue"`
	Envelope queueEnvelope `json:"envelope"`
}

// NewRedisQueue crea el broker sobre un cliente de Redis existente
func NewRedisQueue(redisClient *redis.Client) *RedisQueue {
	return &RedisQueue{
		redis:    redisClient,
		stopChan: make(chan struct{}),
	}
}

func queueKey(queue string) string      { return queuePrefix + queue }
func dlqKey(queue string) string        { return dlqPrefix + queue }
func processingKey(queue string) string { return processingPrefix + queue }

// Publish encola un payload nuevo con contador de reintentos en cero
func (q *RedisQueue) Publish(ctx context.Context, queue string, body []byte) error {
	envelope := queueEnvelope{
		Headers: envelopeHeaders{
			RetryCount:      0,
			FirstEnqueuedAt: time.Now().UTC(),
		},
		Body: body,
	}
	return q.push(ctx, queue, envelope)
}

// Requeue devuelve una entrega a la cola preservando sus metadatos
func (q *RedisQueue) Requeue(ctx context.Context, queue string, delivery messaging.QueueDelivery) error {
	envelope := queueEnvelope{
		Headers: envelopeHeaders{
			RetryCount:      delivery.RetryCount,
			FirstEnqueuedAt: delivery.FirstEnqueuedAt,
		},
		Body: delivery.Body,
	}
	return q.push(ctx, queue, envelope)
}

func (q *RedisQueue) push(ctx context.Context, queue string, envelope queueEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := q.redis.LPush(ctx, queueKey(queue), data).Err(); err != nil {
		return messaging.ErrQueueUnavailable().
			WithDetail("queue", queue).
			WithCause(err)
	}
	return nil
}

// ScheduleRetry programa una re-entrega con el contador incrementado
func (q *RedisQueue) ScheduleRetry(ctx context.Context, queue string, delivery messaging.QueueDelivery, delay time.Duration) error {
	retryID := uuid.New().String()

	item := scheduledRetry{
		Queue: queue,
		Envelope: queueEnvelope{
			Headers: envelopeHeaders{
				RetryCount:      delivery.RetryCount + 1,
				FirstEnqueuedAt: delivery.FirstEnqueuedAt,
			},
			Body: delivery.Body,
		},
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal retry item: %w", err)
	}

	// El item vive aparte del sorted set, como las continuations del motor
	key := retryItemPrefix + retryID
	if err := q.redis.Set(ctx, key, data, delay+time.Hour).Err(); err != nil {
		return messaging.ErrQueueUnavailable().WithCause(err)
	}

	score := float64(time.Now().Add(delay).Unix())
	if err := q.redis.ZAdd(ctx, retrySetKey, &redis.Z{
		Score:  score,
		Member: retryID,
	}).Err(); err != nil {
		return messaging.ErrQueueUnavailable().WithCause(err)
	}

	log.Printf("⏰ Scheduled retry %d for queue %s in %v", delivery.RetryCount+1, queue, delay)
	return nil
}

// DeadLetter archiva una entrega terminal en la DLQ de la cola
func (q *RedisQueue) DeadLetter(ctx context.Context, queue string, letter messaging.DeadLetter) error {
	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := q.redis.LPush(ctx, dlqKey(queue), data).Err(); err != nil {
		return messaging.ErrQueueUnavailable().
			WithDetail("queue", queue).
			WithCause(err)
	}
	log.Printf("💀 Dead-lettered delivery from queue %s: %s", queue, letter.Reason)
	return nil
}

// Pop bloquea hasta timeout esperando una entrega; (nil, nil) si expira.
// La entrega se mueve atómicamente a la lista de procesamiento de la cola,
// donde queda hasta que el consumidor la confirme con Ack. Si el proceso
// muere con la entrega en vuelo, RecoverPending la devuelve a la cola.
func (q *RedisQueue) Pop(ctx context.Context, queue string, timeout time.Duration) (*messaging.QueueDelivery, error) {
	raw, err := q.redis.BRPopLPush(ctx, queueKey(queue), processingKey(queue), timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, messaging.ErrQueueUnavailable().
			WithDetail("queue", queue).
			WithCause(err)
	}

	var envelope queueEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		// Un envelope corrupto no puede procesarse: va directo a la DLQ
		log.Printf("❌ Corrupt envelope on queue %s, dead-lettering", queue)
		_ = q.DeadLetter(ctx, queue, messaging.DeadLetter{
			Original:  []byte(raw),
			Reason:    "corrupt envelope: " + err.Error(),
			Timestamp: time.Now().UTC(),
		})
		q.redis.LRem(ctx, processingKey(queue), 1, raw)
		return nil, nil
	}

	return &messaging.QueueDelivery{
		Body:            envelope.Body,
		RetryCount:      envelope.Headers.RetryCount,
		FirstEnqueuedAt: envelope.Headers.FirstEnqueuedAt,
		Receipt:         raw,
	}, nil
}

// Ack retira una entrega de la lista de procesamiento una vez resuelta
func (q *RedisQueue) Ack(ctx context.Context, queue string, delivery messaging.QueueDelivery) error {
	if delivery.Receipt == "" {
		return nil
	}
	if err := q.redis.LRem(ctx, processingKey(queue), 1, delivery.Receipt).Err(); err != nil {
		return messaging.ErrQueueUnavailable().
			WithDetail("queue", queue).
			WithCause(err)
	}
	return nil
}

// RecoverPending devuelve a la cola las entregas reclamadas sin Ack. Se llama
// al arrancar los consumidores; en operación normal la lista está vacía o
// contiene solo las entregas en vuelo de este proceso.
func (q *RedisQueue) RecoverPending(ctx context.Context, queue string) (int64, error) {
	var recovered int64
	for {
		_, err := q.redis.RPopLPush(ctx, processingKey(queue), queueKey(queue)).Result()
		if err == redis.Nil {
			return recovered, nil
		}
		if err != nil {
			return recovered, messaging.ErrQueueUnavailable().
				WithDetail("queue", queue).
				WithCause(err)
		}
		recovered++
	}
}

// Depth retorna la cantidad de entregas pendientes en una cola
func (q *RedisQueue) Depth(ctx context.Context, queue string) (int64, error) {
	return q.redis.LLen(ctx, queueKey(queue)).Result()
}

// DeadLetterDepth retorna la cantidad de entregas en la DLQ de una cola
func (q *RedisQueue) DeadLetterDepth(ctx context.Context, queue string) (int64, error) {
	return q.redis.LLen(ctx, dlqKey(queue)).Result()
}

// Ping verifica la disponibilidad del broker
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.redis.Ping(ctx).Err()
}

// StartRetryWorker arranca el loop que mueve reintentos vencidos a su cola
func (q *RedisQueue) StartRetryWorker(ctx context.Context) {
	if q.workerRunning {
		log.Println("⚠️  Retry worker already running")
		return
	}

	q.workerRunning = true
	log.Println("🚀 Starting queue retry worker...")

	go q.retryLoop(ctx)
}

// StopRetryWorker detiene el loop de reintentos
func (q *RedisQueue) StopRetryWorker() {
	if !q.workerRunning {
		return
	}

	log.Println("🛑 Stopping queue retry worker...")
	close(q.stopChan)
	q.workerRunning = false
}

func (q *RedisQueue) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️  Retry worker stopped (context done)")
			return
		case <-q.stopChan:
			log.Println("⏹️  Retry worker stopped")
			return
		case <-ticker.C:
			if err := q.processDueRetries(ctx); err != nil {
				log.Printf("❌ Error processing due retries: %v", err)
			}
		}
	}
}

func (q *RedisQueue) processDueRetries(ctx context.Context) error {
	now := float64(time.Now().Unix())

	due, err := q.redis.ZRangeByScore(ctx, retrySetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 50,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for _, retryID := range due {
		// Reclamar atómicamente; otro worker pudo ganarlo
		removed, err := q.redis.ZRem(ctx, retrySetKey, retryID).Result()
		if err != nil || removed == 0 {
			continue
		}

		q.redeliver(ctx, retryID)
	}

	return nil
}

func (q *RedisQueue) redeliver(ctx context.Context, retryID string) {
	key := retryItemPrefix + retryID

	data, err := q.redis.Get(ctx, key).Result()
	if err != nil {
		log.Printf("❌ Failed to retrieve retry item %s: %v", retryID, err)
		return
	}

	var item scheduledRetry
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		log.Printf("❌ Failed to unmarshal retry item %s: %v", retryID, err)
		return
	}

	if err := q.push(ctx, item.Queue, item.Envelope); err != nil {
		log.Printf("❌ Failed to redeliver retry %s to queue %s: %v", retryID, item.Queue, err)
		return
	}

	q.redis.Del(ctx, key)
	log.Printf("▶️  Redelivered retry %d to queue %s", item.Envelope.Headers.RetryCount, item.Queue)
}

// PendingRetries retorna cuántos reintentos esperan re-entrega
func (q *RedisQueue) PendingRetries(ctx context.Context) (int64, error) {
	return q.redis.ZCard(ctx, retrySetKey).Result()
}

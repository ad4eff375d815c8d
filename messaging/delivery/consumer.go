package delivery

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
)

// popTimeout acota cada espera bloqueante para poder observar el shutdown
const popTimeout = 5 * time.Second

// HandlerFunc procesa el cuerpo de una entrega. El error retornado se
// clasifica con messaging.ClassifyDelivery para decidir reintento, requeue
// o dead-letter; nil confirma la entrega.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer drena una cola con un pool de workers y aplica la política de
// reintentos sobre cada entrega fallida.
type Consumer struct {
	queue      messaging.MessageQueue
	name       string
	handler    HandlerFunc
	workers    int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewConsumer(queue messaging.MessageQueue, name string, handler HandlerFunc, cfg config.RelayConfig) *Consumer {
	return &Consumer{
		queue:      queue,
		name:       name,
		handler:    handler,
		workers:    cfg.Prefetch,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		maxDelay:   cfg.RetryMaxDelay,
		stopChan:   make(chan struct{}),
	}
}

// Start arranca el pool de workers. Antes devuelve a la cola las entregas
// que un proceso anterior dejó reclamadas sin confirmar.
func (c *Consumer) Start(ctx context.Context) {
	log.Printf("🚀 Starting consumer for %s (%d workers)", c.name, c.workers)

	recovered, err := c.queue.RecoverPending(ctx, c.name)
	if err != nil {
		log.Printf("⚠️  Failed to recover pending deliveries on %s: %v", c.name, err)
	} else if recovered > 0 {
		log.Printf("♻️  Recovered %d unacked deliveries on %s", recovered, c.name)
	}

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.workerLoop(ctx)
	}
}

// Stop detiene los workers y espera a que terminen la entrega en curso
func (c *Consumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	log.Printf("⏹️  Consumer for %s stopped", c.name)
}

func (c *Consumer) workerLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		delivery, err := c.queue.Pop(ctx, c.name, popTimeout)
		if err != nil {
			log.Printf("❌ Failed to pop from %s: %v", c.name, err)
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		c.process(ctx, delivery)
	}
}

// process resuelve el destino de una entrega y la confirma con Ack solo
// cuando ese destino quedó persistido en el broker. Si reprogramar o reencolar
// falla, la entrega cae a la DLQ antes de perderse; si ni eso se puede, queda
// sin Ack en la lista de procesamiento y RecoverPending la rescata.
func (c *Consumer) process(ctx context.Context, delivery *messaging.QueueDelivery) {
	err := c.handler(ctx, delivery.Body)
	if err == nil {
		c.ack(ctx, delivery)
		return
	}

	switch messaging.ClassifyDelivery(err) {
	case messaging.FailureUnparseable:
		log.Printf("🗑️  Unparseable delivery on %s, dead-lettering: %v", c.name, err)
		if c.deadLetter(ctx, delivery, "unparseable: "+err.Error()) == nil {
			c.ack(ctx, delivery)
		}

	case messaging.FailurePermanent:
		log.Printf("💀 Permanent failure on %s, dead-lettering: %v", c.name, err)
		if c.deadLetter(ctx, delivery, "permanent: "+err.Error()) == nil {
			c.ack(ctx, delivery)
		}

	case messaging.FailureRateLimited:
		// Reencolar sin consumir presupuesto; la pausa evita martillar al
		// proveedor con el mismo worker
		log.Printf("🐢 Rate limited on %s, requeueing without penalty", c.name)
		time.Sleep(c.baseDelay)
		if qErr := c.queue.Requeue(ctx, c.name, *delivery); qErr != nil {
			log.Printf("❌ Failed to requeue on %s: %v", c.name, qErr)
			if c.deadLetter(ctx, delivery, "requeue failed: "+qErr.Error()) != nil {
				return
			}
		}
		c.ack(ctx, delivery)

	default: // transitorio
		if delivery.RetryCount+1 >= c.maxRetries {
			log.Printf("💀 Retry budget exhausted on %s after %d attempts: %v",
				c.name, delivery.RetryCount+1, err)
			if c.deadLetter(ctx, delivery, "retries exhausted: "+err.Error()) == nil {
				c.ack(ctx, delivery)
			}
			return
		}

		delay := Backoff(delivery.RetryCount, c.baseDelay, c.maxDelay)
		log.Printf("🔁 Transient failure on %s (attempt %d), retrying in %v: %v",
			c.name, delivery.RetryCount+1, delay, err)
		if qErr := c.queue.ScheduleRetry(ctx, c.name, *delivery, delay); qErr != nil {
			log.Printf("❌ Failed to schedule retry on %s: %v", c.name, qErr)
			if c.deadLetter(ctx, delivery, "retry scheduling failed: "+qErr.Error()) != nil {
				return
			}
		}
		c.ack(ctx, delivery)
	}
}

func (c *Consumer) ack(ctx context.Context, delivery *messaging.QueueDelivery) {
	if err := c.queue.Ack(ctx, c.name, *delivery); err != nil {
		// Sin Ack la entrega se redistribuye en el próximo arranque; los
		// handlers son idempotentes vía dedupe, así que solo se registra
		log.Printf("⚠️  Failed to ack delivery on %s: %v", c.name, err)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, delivery *messaging.QueueDelivery, reason string) error {
	letter := messaging.DeadLetter{
		Original:  delivery.Body,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := c.queue.DeadLetter(ctx, c.name, letter); err != nil {
		log.Printf("❌ Failed to dead-letter on %s: %v", c.name, err)
		return err
	}
	return nil
}

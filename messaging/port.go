package messaging

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/storex"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// ============================================================================
// Queue Port
// ============================================================================

// QueueDelivery es una entrega tomada de una cola, con sus metadatos de
// reintento. Receipt identifica la entrega dentro de la lista de procesamiento
// del broker; se usa para confirmarla con Ack.
type QueueDelivery struct {
	Body            []byte
	RetryCount      int
	FirstEnqueuedAt time.Time
	Receipt         string
}

// MessageQueue define el broker durable del pipeline
type MessageQueue interface {
	// Publish encola un payload nuevo (contador de reintentos en cero)
	Publish(ctx context.Context, queue string, body []byte) error

	// Requeue devuelve una entrega a la cola sin consumir presupuesto de
	// reintentos (usado para rate limiting del proveedor)
	Requeue(ctx context.Context, queue string, delivery QueueDelivery) error

	// ScheduleRetry programa una re-entrega con el contador incrementado
	ScheduleRetry(ctx context.Context, queue string, delivery QueueDelivery, delay time.Duration) error

	// DeadLetter archiva una entrega terminal para inspección manual
	DeadLetter(ctx context.Context, queue string, letter DeadLetter) error

	// Pop bloquea hasta timeout esperando una entrega; (nil, nil) si expira.
	// La entrega queda reclamada en una lista de procesamiento hasta su Ack:
	// si el consumidor muere antes de confirmarla, RecoverPending la devuelve
	// a la cola en el siguiente arranque.
	Pop(ctx context.Context, queue string, timeout time.Duration) (*QueueDelivery, error)

	// Ack confirma una entrega reclamada por Pop tras resolver su destino
	// (éxito, reintento programado, requeue o dead-letter)
	Ack(ctx context.Context, queue string, delivery QueueDelivery) error

	// RecoverPending devuelve a la cola las entregas reclamadas que quedaron
	// sin Ack (un consumidor murió a mitad de procesamiento); retorna cuántas
	RecoverPending(ctx context.Context, queue string) (int64, error)

	// Depth retorna la cantidad de entregas pendientes en una cola
	Depth(ctx context.Context, queue string) (int64, error)

	// DeadLetterDepth retorna la cantidad de entregas en la DLQ de una cola
	DeadLetterDepth(ctx context.Context, queue string) (int64, error)

	// Ping verifica la disponibilidad del broker
	Ping(ctx context.Context) error
}

// ============================================================================
// Tenant Directory Port
// ============================================================================

// ListTenantsRequest filtros de paginación para listar tenants
type ListTenantsRequest struct {
	storex.PaginationOptions

	IsActive *bool `json:"is_active,omitempty"`
}

func (r ListTenantsRequest) GetOffset() int {
	return (r.Page - 1) * r.PageSize
}

// TenantRoutingListResponse lista paginada de enrutamientos
type TenantRoutingListResponse = storex.Paginated[TenantRouting]

// TenantDirectory es la fuente de verdad de enrutamiento por tenant
type TenantDirectory interface {
	GetByTenantID(ctx context.Context, tenantID kernel.TenantID) (*TenantRouting, error)
	GetByIntegrationID(ctx context.Context, integrationID kernel.IntegrationID) (*TenantRouting, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID kernel.PhoneNumberID) (*TenantRouting, error)
	List(ctx context.Context, req ListTenantsRequest) (TenantRoutingListResponse, error)
}

// TenantResolver resuelve y cachea enrutamiento; Invalidate purga el cache
type TenantResolver interface {
	ResolveByConversation(ctx context.Context, conversationID kernel.ConversationID) (kernel.TenantID, error)
	ResolveByIntegration(ctx context.Context, integrationID kernel.IntegrationID) (kernel.TenantID, error)
	ResolveByPhoneNumber(ctx context.Context, phoneNumberID kernel.PhoneNumberID) (kernel.TenantID, error)
	GetRouting(ctx context.Context, tenantID kernel.TenantID) (*TenantRouting, error)
	Invalidate(ctx context.Context, tenantID kernel.TenantID) error
}

// ============================================================================
// Conversation Store Port
// ============================================================================

// ConversationStore mantiene el mapeo efímero waId <-> conversación activa
type ConversationStore interface {
	// GetConversation retorna la conversación activa de un cliente;
	// ConversationID vacío si no existe mapeo
	GetConversation(ctx context.Context, tenantID kernel.TenantID, waID string) (kernel.ConversationID, error)

	// GetTenantByConversation resuelve el tenant dueño de una conversación
	GetTenantByConversation(ctx context.Context, conversationID kernel.ConversationID) (kernel.TenantID, error)

	// SaveMapping registra el par waId <-> conversación con TTL deslizante
	SaveMapping(ctx context.Context, tenantID kernel.TenantID, waID string, conversationID kernel.ConversationID) error

	// DeleteByConversation elimina el mapeo al desconectar la conversación
	DeleteByConversation(ctx context.Context, conversationID kernel.ConversationID) error

	// SaveLastCustomerMessage recuerda el último mensaje del cliente en una
	// conversación; los eventos de typing/read de Genesys se aplican sobre él
	SaveLastCustomerMessage(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, messageID kernel.MessageID) error

	// GetLastCustomerMessage retorna el último mensaje del cliente; ID vacío
	// si no hay registro
	GetLastCustomerMessage(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID) (kernel.MessageID, error)

	// SweepOrphans elimina mapeos inversos cuyo mapeo directo ya expiró;
	// retorna cuántos eliminó
	SweepOrphans(ctx context.Context) (int, error)
}

// ============================================================================
// Correlation Store Port
// ============================================================================

// CorrelationStore persiste registros de correlación write-once con TTL
type CorrelationStore interface {
	Save(ctx context.Context, record CorrelationRecord) error
	Get(ctx context.Context, tenantID kernel.TenantID, externalMessageID kernel.MessageID) (*CorrelationRecord, error)
}

// ============================================================================
// Dedupe Port
// ============================================================================

// DedupeStore registra entregas completadas para absorber redelivery
type DedupeStore interface {
	// IsDelivered indica si el mensaje ya fue entregado dentro de la ventana
	IsDelivered(ctx context.Context, tenantID kernel.TenantID, messageID kernel.MessageID) (bool, error)

	// MarkDelivered registra la entrega; se llama solo tras éxito
	MarkDelivered(ctx context.Context, tenantID kernel.TenantID, messageID kernel.MessageID) error
}

// ============================================================================
// Token Provider Port
// ============================================================================

// TokenProvider entrega tokens de acceso por tenant y plataforma desde el
// credential provider externo, con cache e invalidación ante 401
type TokenProvider interface {
	GetToken(ctx context.Context, tenantID kernel.TenantID, platform Platform) (string, error)
	Invalidate(ctx context.Context, tenantID kernel.TenantID, platform Platform) error
}

// ============================================================================
// Object Store Port
// ============================================================================

// ObjectStore es el storage durable donde se relocaliza la media
type ObjectStore interface {
	PutObject(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// ============================================================================
// Platform sender ports (implementados por los adapters)
// ============================================================================

// GenesysSender inyecta mensajes y recibos en Genesys Cloud
type GenesysSender interface {
	InjectMessage(ctx context.Context, tenantID kernel.TenantID, integrationID kernel.IntegrationID, msg GenesysInboundMessage) (*GenesysInjectResponse, error)
	SendReceipt(ctx context.Context, tenantID kernel.TenantID, integrationID kernel.IntegrationID, receipt GenesysReceiptRequest) error
}

// WhatsAppSender envía mensajes y acciones de estado hacia WhatsApp
type WhatsAppSender interface {
	// SendMessage envía el payload y retorna el wamid asignado por Meta
	SendMessage(ctx context.Context, tenantID kernel.TenantID, phoneNumberID kernel.PhoneNumberID, payload WabaPayload) (kernel.MessageID, error)

	// MarkMessageRead marca un mensaje del cliente como leído; con typing
	// activo incluye el indicador de escritura
	MarkMessageRead(ctx context.Context, tenantID kernel.TenantID, phoneNumberID kernel.PhoneNumberID, messageID kernel.MessageID, typing bool) error
}

// MediaSource descarga media referenciada por ID desde la plataforma origen
type MediaSource interface {
	FetchMedia(ctx context.Context, tenantID kernel.TenantID, mediaID string) (data []byte, contentType string, err error)
}

package messaging

import (
	"time"

	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// ============================================================================
// Platform / Direction
// ============================================================================

// Platform identifica un extremo del relay
type Platform string

const (
	PlatformWhatsApp Platform = "whatsapp"
	PlatformGenesys  Platform = "genesys"
)

// Direction indica hacia dónde viaja un mensaje dentro del pipeline
type Direction string

const (
	// DirectionInbound: cliente (WhatsApp) hacia el contact center (Genesys)
	DirectionInbound Direction = "inbound"
	// DirectionOutbound: agente (Genesys) hacia el cliente (WhatsApp)
	DirectionOutbound Direction = "outbound"
)

// ============================================================================
// Message Content - unión etiquetada sobre el contenido
// ============================================================================

// ContentKind discrimina el contenido de un mensaje normalizado
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentMedia ContentKind = "media"
)

// MediaContent es un adjunto ya relocalizado en storage durable. Caption es
// el texto plegado sobre el adjunto cuando la plataforma destino lo admite.
type MediaContent struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// MessageContent es exactamente texto o media, nunca ambos ausentes
type MessageContent struct {
	Kind  ContentKind   `json:"kind"`
	Text  string        `json:"text,omitempty"`
	Media *MediaContent `json:"media,omitempty"`
}

// TextContent construye contenido de texto
func TextContent(text string) MessageContent {
	return MessageContent{Kind: ContentText, Text: text}
}

// MediaOnlyContent construye contenido de media
func MediaOnlyContent(media MediaContent) MessageContent {
	return MessageContent{Kind: ContentMedia, Media: &media}
}

// Validate verifica la invariante de contenido
func (c MessageContent) Validate() error {
	switch c.Kind {
	case ContentText:
		if c.Text == "" {
			return ErrInvalidMessageFormat().WithDetail("reason", "empty text content")
		}
	case ContentMedia:
		if c.Media == nil || c.Media.URL == "" {
			return ErrInvalidMessageFormat().WithDetail("reason", "media content without url")
		}
	default:
		return ErrInvalidMessageFormat().WithDetail("reason", "unknown content kind").WithDetail("kind", string(c.Kind))
	}
	return nil
}

// ============================================================================
// NormalizedMessage - representación interna agnóstica de plataforma
// ============================================================================

// NormalizedMessage es un mensaje de chat entre etapas del pipeline.
// ConversationID vacío significa que el mensaje inicia una conversación nueva.
type NormalizedMessage struct {
	TenantID          kernel.TenantID       `json:"tenant_id"`
	Direction         Direction             `json:"direction"`
	ExternalMessageID kernel.MessageID      `json:"external_message_id"`
	ConversationID    kernel.ConversationID `json:"conversation_id,omitempty"`
	Content           MessageContent        `json:"content"`
	SenderID          string                `json:"sender_id,omitempty"`
	SenderName        string                `json:"sender_name,omitempty"`
	RecipientID       string                `json:"recipient_id,omitempty"`
	PhoneNumberID     kernel.PhoneNumberID  `json:"phone_number_id,omitempty"`
	Timestamp         time.Time             `json:"timestamp"`
	CorrelationID     kernel.CorrelationID  `json:"correlation_id"`
}

// IsNewConversation indica si el mensaje abre una conversación nueva
func (m *NormalizedMessage) IsNewConversation() bool {
	return m.ConversationID.IsEmpty()
}

// ============================================================================
// StatusEvent - notificación de estado de entrega
// ============================================================================

// Status es el vocabulario interno de estados de entrega
type Status string

const (
	StatusSent         Status = "sent"
	StatusDelivered    Status = "delivered"
	StatusRead         Status = "read"
	StatusFailed       Status = "failed"
	StatusTyping       Status = "typing"
	StatusDisconnected Status = "disconnected"
)

// FailureReason acompaña a un StatusFailed; se propaga sin modificar
type FailureReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusEvent es un evento de recibo/estado, distinto del contenido del mensaje
type StatusEvent struct {
	TenantID          kernel.TenantID       `json:"tenant_id"`
	Platform          Platform              `json:"platform"`
	ExternalMessageID kernel.MessageID      `json:"external_message_id,omitempty"`
	ConversationID    kernel.ConversationID `json:"conversation_id,omitempty"`
	Status            Status                `json:"status"`
	Timestamp         time.Time             `json:"timestamp"`
	Reason            *FailureReason        `json:"reason,omitempty"`
}

// ============================================================================
// CorrelationRecord - mapea IDs internos y externos tras una entrega exitosa
// ============================================================================

// CorrelationRecord se crea al entregar con éxito y es inmutable después.
// ExternalMessageID es el ID que la plataforma destino asignó (ej. wamid);
// InternalMessageID es el ID del mensaje en la plataforma origen.
type CorrelationRecord struct {
	TenantID          kernel.TenantID       `json:"tenant_id"`
	CorrelationID     kernel.CorrelationID  `json:"correlation_id"`
	InternalMessageID kernel.MessageID      `json:"internal_message_id"`
	ExternalMessageID kernel.MessageID      `json:"external_message_id"`
	ConversationID    kernel.ConversationID `json:"conversation_id,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// ============================================================================
// TenantRouting - identificadores de enrutamiento por tenant (cacheados)
// ============================================================================

// TenantRouting es propiedad del tenant directory externo; el pipeline solo
// mantiene copias cacheadas con invalidación explícita.
type TenantRouting struct {
	TenantID      kernel.TenantID      `db:"tenant_id" json:"tenant_id"`
	PhoneNumberID kernel.PhoneNumberID `db:"phone_number_id" json:"phone_number_id"`
	IntegrationID kernel.IntegrationID `db:"integration_id" json:"integration_id"`
	WebhookSecret string               `db:"webhook_secret" json:"webhook_secret,omitempty"`
	AppSecret     string               `db:"app_secret" json:"app_secret,omitempty"`
	Region        string               `db:"genesys_region" json:"region,omitempty"`
	IsActive      bool                 `db:"is_active" json:"is_active"`
}

// SecretFor retorna el secreto de webhook para una plataforma
func (r *TenantRouting) SecretFor(platform Platform) string {
	switch platform {
	case PlatformWhatsApp:
		return r.AppSecret
	case PlatformGenesys:
		return r.WebhookSecret
	}
	return ""
}

// ============================================================================
// Dead Letter
// ============================================================================

// DeadLetter envuelve una entrega terminal para inspección manual
type DeadLetter struct {
	Original  []byte    `json:"original"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// ============================================================================
// Queues
// ============================================================================

// Nombres lógicos de colas; la infraestructura les antepone su propio prefijo
const (
	QueueInboundReady       = "inbound.ready"
	QueueInboundStatusReady = "inbound.status.ready"
	QueueOutboundReady      = "outbound.ready"
	QueueOutboundStatus     = "outbound.status.ready"
	QueueOutboundAck        = "outbound.ack.evt"
	QueueWhatsAppStatus     = "whatsapp.status.evt"
	QueueGenesysStatus      = "genesys.status.evt"
)

// AllQueues lista las colas del pipeline, para health y reportes de DLQ
var AllQueues = []string{
	QueueInboundReady,
	QueueInboundStatusReady,
	QueueOutboundReady,
	QueueOutboundStatus,
	QueueOutboundAck,
	QueueWhatsAppStatus,
	QueueGenesysStatus,
}

// EchoIDPrefix marca IDs de mensajes que el pipeline mismo inyectó upstream:
// los wamid reales de WhatsApp siempre llevan este prefijo, y Genesys los
// devuelve como messageId al hacer eco de nuestras inyecciones.
const EchoIDPrefix = "wamid."

package messaging

import (
	"encoding/json"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// ============================================================================
// WhatsApp webhook (Meta Cloud API)
// ============================================================================

type WhatsAppWebhook struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Value WebhookValue `json:"value"`
	Field string       `json:"field"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookMessage struct {
	ID        kernel.MessageID `json:"id"`
	From      string           `json:"from"`
	Timestamp int64            `json:"timestamp,string"`
	Type      string           `json:"type"`
	Text      *WebhookText     `json:"text,omitempty"`
	Image     *WebhookMedia    `json:"image,omitempty"`
	Document  *WebhookMedia    `json:"document,omitempty"`
	Audio     *WebhookMedia    `json:"audio,omitempty"`
	Video     *WebhookMedia    `json:"video,omitempty"`
	Sticker   *WebhookMedia    `json:"sticker,omitempty"`
	Location  *WebhookLocation `json:"location,omitempty"`
	Contacts  json.RawMessage  `json:"contacts,omitempty"`
	Interactive *WebhookInteractive `json:"interactive,omitempty"`
	Button      *WebhookButton      `json:"button,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// WebhookInteractive es la respuesta del cliente a botones o listas
type WebhookInteractive struct {
	Type        string        `json:"type"` // button_reply | list_reply
	ButtonReply *WebhookReply `json:"button_reply,omitempty"`
	ListReply   *WebhookReply `json:"list_reply,omitempty"`
}

type WebhookReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// WebhookButton es la respuesta a un botón de plantilla
type WebhookButton struct {
	Payload string `json:"payload,omitempty"`
	Text    string `json:"text"`
}

type WebhookLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type WebhookStatus struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	Timestamp   int64               `json:"timestamp,string"`
	RecipientID string              `json:"recipient_id"`
	Errors      []WebhookStatusErr  `json:"errors,omitempty"`
	Pricing     json.RawMessage     `json:"pricing,omitempty"`
	Conversation *WebhookConversation `json:"conversation,omitempty"`
}

type WebhookStatusErr struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

type WebhookConversation struct {
	ID string `json:"id"`
}

// Media descriptor del mensaje: primer adjunto presente, si hay
func (m *WebhookMessage) MediaDescriptor() *WebhookMedia {
	switch {
	case m.Image != nil:
		return m.Image
	case m.Document != nil:
		return m.Document
	case m.Audio != nil:
		return m.Audio
	case m.Video != nil:
		return m.Video
	case m.Sticker != nil:
		return m.Sticker
	}
	return nil
}

// ============================================================================
// WhatsApp send API (Graph /{phoneNumberID}/messages)
// ============================================================================

// WabaPayload es el cuerpo listo para POST al Graph API
type WabaPayload struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type,omitempty"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *WabaText     `json:"text,omitempty"`
	Image            *WabaMedia    `json:"image,omitempty"`
	Document         *WabaMedia    `json:"document,omitempty"`
	Audio            *WabaMedia    `json:"audio,omitempty"`
	Video            *WabaMedia    `json:"video,omitempty"`
	Sticker          *WabaMedia    `json:"sticker,omitempty"`
}

type WabaText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type WabaMedia struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// WabaSendResponse es la respuesta del Graph API al enviar un mensaje
type WabaSendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// WabaErrorResponse es el error estándar del Graph API
type WabaErrorResponse struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode,omitempty"`
		FBTraceID string `json:"fbtrace_id,omitempty"`
	} `json:"error"`
}

// ============================================================================
// Genesys Cloud Open Messaging
// ============================================================================

// GenesysEvent es el cuerpo del webhook outbound de Open Messaging.
// Cubre mensajes de agente, recibos y eventos (typing, disconnect).
type GenesysEvent struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId,omitempty"`
	Channel        GenesysChannel  `json:"channel"`
	Type           string          `json:"type"`   // Text | Structured | Receipt | Event | HealthCheck
	Text           string          `json:"text,omitempty"`
	Content        []GenesysContent `json:"content,omitempty"`
	Direction      string          `json:"direction,omitempty"`
	Status         string          `json:"status,omitempty"`
	Reasons        []GenesysReason `json:"reasons,omitempty"`
	IsFinalReceipt bool            `json:"isFinalReceipt,omitempty"`
	Events         []GenesysChannelEvent `json:"events,omitempty"`
}

type GenesysChannel struct {
	ID            string             `json:"id,omitempty"`
	IntegrationID string             `json:"integrationId,omitempty"`
	Platform      string             `json:"platform,omitempty"`
	Type          string             `json:"type,omitempty"`
	MessageID     string             `json:"messageId,omitempty"`
	To            *GenesysParty      `json:"to,omitempty"`
	From          *GenesysParty      `json:"from,omitempty"`
	Time          time.Time          `json:"time,omitempty"`
	Metadata      *GenesysChannelMeta `json:"metadata,omitempty"`
}

type GenesysChannelMeta struct {
	CustomAttributes map[string]string `json:"customAttributes,omitempty"`
}

type GenesysParty struct {
	ID        string `json:"id"`
	IDType    string `json:"idType,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type GenesysContent struct {
	ContentType string            `json:"contentType"` // Attachment | QuickReply | ...
	Attachment  *GenesysAttachment `json:"attachment,omitempty"`
}

type GenesysAttachment struct {
	ID        string `json:"id,omitempty"`
	MediaType string `json:"mediaType,omitempty"` // Image | Video | Audio | File
	URL       string `json:"url,omitempty"`
	Mime      string `json:"mime,omitempty"`
	Filename  string `json:"filename,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

type GenesysReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GenesysChannelEvent struct {
	EventType string          `json:"eventType"` // Typing | Presence
	Typing    json.RawMessage `json:"typing,omitempty"`
	Presence  *GenesysPresence `json:"presence,omitempty"`
}

type GenesysPresence struct {
	Type string `json:"type"` // Join | Disconnect
}

// GenesysInboundMessage es el cuerpo para inyectar un mensaje del cliente
// en POST /api/v2/conversations/messages/{integrationId}/inbound/open/message
type GenesysInboundMessage struct {
	Channel GenesysInboundChannel `json:"channel"`
	Type    string                `json:"type"` // Text
	Text    string                `json:"text,omitempty"`
	Content []GenesysContent      `json:"content,omitempty"`
	Direction string              `json:"direction"` // Inbound
}

type GenesysInboundChannel struct {
	MessageID string        `json:"messageId"`
	From      *GenesysParty `json:"from"`
	To        *GenesysParty `json:"to,omitempty"`
	Time      string        `json:"time"`
	Metadata  *GenesysChannelMeta `json:"metadata,omitempty"`
}

// GenesysInjectResponse es la respuesta de la inyección inbound
type GenesysInjectResponse struct {
	ID           string `json:"id"`
	Conversation *struct {
		ID string `json:"id"`
	} `json:"conversation,omitempty"`
}

// GenesysReceiptRequest es el cuerpo para reportar estado de entrega
// en POST /api/v2/conversations/messages/{integrationId}/inbound/open/receipt
type GenesysReceiptRequest struct {
	Channel GenesysInboundChannel `json:"channel"`
	Status  string                `json:"status"` // Delivered | Read | Failed
	Reasons []GenesysReason       `json:"reasons,omitempty"`
	IsFinalReceipt bool           `json:"isFinalReceipt,omitempty"`
	Direction string              `json:"direction"` // Outbound
}

// ============================================================================
// Queue payloads - lo que viaja entre productores y consumidores
// ============================================================================

// InboundDispatch es una unidad de trabajo para entregar hacia Genesys
type InboundDispatch struct {
	TenantID      kernel.TenantID       `json:"tenant_id"`
	IntegrationID kernel.IntegrationID  `json:"integration_id"`
	CorrelationID kernel.CorrelationID  `json:"correlation_id"`
	WaID          string                `json:"wa_id"`
	Message       GenesysInboundMessage `json:"message"`
}

// OutboundDispatch es una unidad de trabajo para entregar hacia WhatsApp
type OutboundDispatch struct {
	TenantID          kernel.TenantID      `json:"tenant_id"`
	PhoneNumberID     kernel.PhoneNumberID `json:"phone_number_id"`
	CorrelationID     kernel.CorrelationID `json:"correlation_id"`
	InternalMessageID kernel.MessageID     `json:"internal_message_id"` // ID del mensaje en Genesys
	ConversationID    kernel.ConversationID `json:"conversation_id,omitempty"`
	Payload           WabaPayload          `json:"payload"`
}

// ReceiptDispatch es una unidad de trabajo para reportar un recibo a Genesys
type ReceiptDispatch struct {
	TenantID      kernel.TenantID      `json:"tenant_id"`
	IntegrationID kernel.IntegrationID `json:"integration_id"`
	Receipt       GenesysReceiptRequest `json:"receipt"`
}

// StatusDispatch es una unidad de trabajo para reflejar estado hacia WhatsApp
type StatusDispatch struct {
	TenantID      kernel.TenantID      `json:"tenant_id"`
	PhoneNumberID kernel.PhoneNumberID `json:"phone_number_id"`
	MessageID     kernel.MessageID     `json:"message_id"` // wamid del mensaje del cliente
	Status        Status               `json:"status"`
}

// ============================================================================
// API responses
// ============================================================================

type WebhookAckResponse struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

package genesys

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/messagingsrv"
	"github.com/shabibmr/waba-xypr-sub002/messaging/signature"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// WebhookHandler atiende el webhook outbound de Open Messaging. El orden de
// la fase pre-ack importa: health check y filtro de eco responden antes de
// verificar firma, porque no tienen tenant que resolver.
type WebhookHandler struct {
	cfg       config.GenesysConfig
	resolver  messaging.TenantResolver
	processor *messagingsrv.GenesysProcessor
}

func NewWebhookHandler(cfg config.GenesysConfig, resolver messaging.TenantResolver, processor *messagingsrv.GenesysProcessor) *WebhookHandler {
	return &WebhookHandler{
		cfg:       cfg,
		resolver:  resolver,
		processor: processor,
	}
}

// HandleWebhook procesa el POST del webhook
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	raw := c.Body()

	var event messaging.GenesysEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return messaging.ErrInvalidPayload().WithCause(err)
	}

	// Sonda de salud de Genesys: responder sin tocar el pipeline
	if event.Type == "HealthCheck" {
		return c.Status(fiber.StatusOK).JSON(messaging.WebhookAckResponse{Status: "healthy"})
	}

	// Eco de una inyección nuestra: Genesys reenvía los mensajes del cliente
	// con el wamid como messageId. Reinyectarlos duplicaría el mensaje.
	if isEcho(event) {
		log.Printf("🔇 Filtered echo of %s", event.Channel.MessageID)
		return c.Status(fiber.StatusOK).JSON(messaging.WebhookAckResponse{Status: "filtered"})
	}

	tenantID, err := h.resolveTenant(c.Context(), event)
	if err != nil {
		log.Printf("❌ Tenant resolution failed for event %s", event.ID)
		return err
	}

	routing, err := h.resolver.GetRouting(c.Context(), tenantID)
	if err != nil {
		return err
	}

	secret, ok := signature.ResolveSecret(routing.SecretFor(messaging.PlatformGenesys), h.cfg.WebhookSecret)
	if !ok {
		log.Printf("❌ No webhook secret configured for tenant %s", tenantID)
		return messaging.ErrMissingSecret()
	}

	// Genesys firma con digest base64, a diferencia de Meta
	if !signature.Verify(raw, c.Get("X-Hub-Signature-256"), secret, signature.EncodingBase64) {
		log.Printf("❌ Invalid Genesys signature for tenant %s", tenantID)
		return messaging.ErrInvalidSignature()
	}

	go h.processor.Process(context.Background(), tenantID, event)

	return c.Status(fiber.StatusOK).JSON(messaging.WebhookAckResponse{Status: "received"})
}

// resolveTenant intenta conversación, integración y nada más: un evento sin
// ninguna de las dos no es enrutable
func (h *WebhookHandler) resolveTenant(ctx context.Context, event messaging.GenesysEvent) (kernel.TenantID, error) {
	if event.ConversationID != "" {
		if tenantID, err := h.resolver.ResolveByConversation(ctx, kernel.NewConversationID(event.ConversationID)); err == nil {
			return tenantID, nil
		}
	}

	if event.Channel.IntegrationID != "" {
		return h.resolver.ResolveByIntegration(ctx, kernel.NewIntegrationID(event.Channel.IntegrationID))
	}

	return "", messaging.ErrTenantNotResolved().WithDetail("event_id", event.ID)
}

// isEcho detecta mensajes que el pipeline mismo inyectó: sus messageId llevan
// el prefijo de los wamid de WhatsApp
func isEcho(event messaging.GenesysEvent) bool {
	if event.Type != "Text" && event.Type != "Structured" {
		return false
	}
	return strings.HasPrefix(event.Channel.MessageID, messaging.EchoIDPrefix)
}

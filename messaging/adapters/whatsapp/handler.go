package whatsapp

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/messagingsrv"
	"github.com/shabibmr/waba-xypr-sub002/messaging/signature"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// WebhookHandler atiende el webhook de WhatsApp. La fase pre-ack (firma,
// resolución de tenant) corre inline; el procesamiento corre detrás del ack
// en una goroutine con contexto propio.
type WebhookHandler struct {
	cfg       config.WhatsAppConfig
	resolver  messaging.TenantResolver
	processor *messagingsrv.WhatsAppProcessor
}

func NewWebhookHandler(cfg config.WhatsAppConfig, resolver messaging.TenantResolver, processor *messagingsrv.WhatsAppProcessor) *WebhookHandler {
	return &WebhookHandler{
		cfg:       cfg,
		resolver:  resolver,
		processor: processor,
	}
}

// VerifyWebhook responde el handshake de suscripción de Meta (GET)
func (h *WebhookHandler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.cfg.VerifyToken {
		log.Println("✅ WhatsApp webhook verified")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}

	log.Println("❌ WhatsApp webhook verification failed")
	return messaging.ErrVerificationFailed()
}

// HandleWebhook procesa el POST del webhook
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	// La firma se calcula sobre los bytes crudos, antes de cualquier parseo
	raw := c.Body()

	var webhook messaging.WhatsAppWebhook
	if err := json.Unmarshal(raw, &webhook); err != nil {
		return messaging.ErrInvalidPayload().WithCause(err)
	}

	phoneNumberID := extractPhoneNumberID(webhook)
	if phoneNumberID.IsEmpty() {
		return messaging.ErrInvalidPayload().WithDetail("reason", "webhook without phone_number_id")
	}

	tenantID, err := h.resolver.ResolveByPhoneNumber(c.Context(), phoneNumberID)
	if err != nil {
		log.Printf("❌ Tenant resolution failed for phone %s", phoneNumberID)
		return err
	}

	routing, err := h.resolver.GetRouting(c.Context(), tenantID)
	if err != nil {
		return err
	}

	secret, ok := signature.ResolveSecret(routing.SecretFor(messaging.PlatformWhatsApp), h.cfg.AppSecret)
	if !ok {
		// Sin secreto configurado se rechaza, nunca se salta la verificación
		log.Printf("❌ No app secret configured for tenant %s", tenantID)
		return messaging.ErrMissingSecret()
	}

	if !signature.Verify(raw, c.Get("X-Hub-Signature-256"), secret, signature.EncodingHex) {
		log.Printf("❌ Invalid WhatsApp signature for tenant %s", tenantID)
		return messaging.ErrInvalidSignature()
	}

	// Ack inmediato; el pipeline absorbe el resto
	go h.processor.Process(context.Background(), tenantID, webhook)

	return c.Status(fiber.StatusOK).JSON(messaging.WebhookAckResponse{Status: "received"})
}

func extractPhoneNumberID(webhook messaging.WhatsAppWebhook) kernel.PhoneNumberID {
	for _, entry := range webhook.Entry {
		for _, change := range entry.Changes {
			if change.Value.Metadata.PhoneNumberID != "" {
				return kernel.NewPhoneNumberID(change.Value.Metadata.PhoneNumberID)
			}
		}
	}
	return ""
}

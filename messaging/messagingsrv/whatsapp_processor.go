package messagingsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/transform"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// WhatsAppProcessor procesa webhooks de WhatsApp ya autenticados: normaliza
// los mensajes del cliente, relocaliza su media y los encola hacia Genesys.
// Los statuses se encolan crudos para que el correlator los mapee.
type WhatsAppProcessor struct {
	resolver      messaging.TenantResolver
	conversations messaging.ConversationStore
	mediaRelay    *MediaRelayService
	queue         messaging.MessageQueue
}

func NewWhatsAppProcessor(
	resolver messaging.TenantResolver,
	conversations messaging.ConversationStore,
	mediaRelay *MediaRelayService,
	queue messaging.MessageQueue,
) *WhatsAppProcessor {
	return &WhatsAppProcessor{
		resolver:      resolver,
		conversations: conversations,
		mediaRelay:    mediaRelay,
		queue:         queue,
	}
}

// Process recorre el webhook completo. Corre detrás del ack HTTP: los errores
// se registran pero ya no pueden cambiar la respuesta al proveedor.
func (p *WhatsAppProcessor) Process(ctx context.Context, tenantID kernel.TenantID, webhook messaging.WhatsAppWebhook) {
	routing, err := p.resolver.GetRouting(ctx, tenantID)
	if err != nil {
		log.Printf("❌ Failed to load routing for tenant %s: %v", tenantID, err)
		return
	}

	for _, entry := range webhook.Entry {
		for _, change := range entry.Changes {
			if change.Value.MessagingProduct != "whatsapp" {
				continue
			}

			names := contactNames(change.Value.Contacts)

			for _, msg := range change.Value.Messages {
				if err := p.processMessage(ctx, routing, msg, names[msg.From]); err != nil {
					log.Printf("❌ Failed to process message %s: %v", msg.ID, err)
				}
			}

			for _, status := range change.Value.Statuses {
				if err := p.processStatus(ctx, tenantID, status); err != nil {
					log.Printf("❌ Failed to process status for %s: %v", status.ID, err)
				}
			}
		}
	}
}

func (p *WhatsAppProcessor) processMessage(ctx context.Context, routing *messaging.TenantRouting, msg messaging.WebhookMessage, senderName string) error {
	inbound := transform.InboundMessage{
		ID:         msg.ID,
		WaID:       msg.From,
		SenderName: senderName,
		Timestamp:  time.Unix(msg.Timestamp, 0),
	}

	if msg.Text != nil {
		inbound.Text = msg.Text.Body
	}

	if msg.Location != nil {
		inbound.Text = formatLocation(msg.Location)
	}

	if msg.Interactive != nil {
		inbound.Text = interactiveText(msg.Interactive)
	}

	if msg.Button != nil {
		inbound.Text = msg.Button.Text
	}

	if media := msg.MediaDescriptor(); media != nil {
		if media.Caption != "" {
			inbound.Text = media.Caption
		}

		// Un fallo de media degrada a entrega sin adjunto, nunca bloquea
		relayed, err := p.mediaRelay.RelayFromWhatsApp(ctx, routing.TenantID, media.ID, media.Filename)
		if err != nil {
			log.Printf("⚠️  Media relay failed for message %s, delivering without media: %v", msg.ID, err)
		} else {
			inbound.Attachments = append(inbound.Attachments, *relayed)
		}
	}

	// Tipos sin contenido extraíble degradan a un placeholder legible
	if inbound.Text == "" && len(inbound.Attachments) == 0 && msg.Type != "" {
		inbound.Text = fmt.Sprintf("[%s]", msg.Type)
	}

	parts, err := transform.FanOutInbound(inbound)
	if err != nil {
		return err
	}

	conversationID, err := p.conversations.GetConversation(ctx, routing.TenantID, msg.From)
	if err != nil {
		log.Printf("⚠️  Conversation lookup failed for %s: %v", msg.From, err)
	}
	for i := range parts {
		parts[i].TenantID = routing.TenantID
		parts[i].ConversationID = conversationID
	}
	if parts[0].IsNewConversation() {
		log.Printf("🆕 First message from %s, Genesys will open the conversation", msg.From)
	}

	for _, part := range parts {
		inject, err := transform.ToGenesys(part)
		if err != nil {
			return err
		}

		dispatch := messaging.InboundDispatch{
			TenantID:      routing.TenantID,
			IntegrationID: routing.IntegrationID,
			CorrelationID: part.CorrelationID,
			WaID:          msg.From,
			Message:       inject,
		}

		body, err := json.Marshal(dispatch)
		if err != nil {
			return fmt.Errorf("failed to marshal inbound dispatch: %w", err)
		}

		if err := p.queue.Publish(ctx, messaging.QueueInboundReady, body); err != nil {
			return err
		}
	}

	// Los eventos de typing/read del agente se aplican sobre este mensaje
	if !conversationID.IsEmpty() {
		if err := p.conversations.SaveLastCustomerMessage(ctx, routing.TenantID, conversationID, msg.ID); err != nil {
			log.Printf("⚠️  Failed to track last customer message: %v", err)
		}
	}

	log.Printf("📥 Queued %d part(s) for message %s (tenant %s)", len(parts), msg.ID, routing.TenantID)
	return nil
}

func (p *WhatsAppProcessor) processStatus(ctx context.Context, tenantID kernel.TenantID, status messaging.WebhookStatus) error {
	event := messaging.StatusEvent{
		TenantID:          tenantID,
		Platform:          messaging.PlatformWhatsApp,
		ExternalMessageID: kernel.NewMessageID(status.ID),
		Status:            transform.WhatsAppStatusToInternal(status.Status),
		Timestamp:         time.Unix(status.Timestamp, 0),
	}

	// Los motivos de fallo viajan sin modificar hasta la otra plataforma
	if len(status.Errors) > 0 {
		event.Reason = &messaging.FailureReason{
			Code:    fmt.Sprintf("%d", status.Errors[0].Code),
			Message: status.Errors[0].Title,
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	return p.queue.Publish(ctx, messaging.QueueWhatsAppStatus, body)
}

func contactNames(contacts []messaging.WebhookContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}

func interactiveText(interactive *messaging.WebhookInteractive) string {
	switch {
	case interactive.ButtonReply != nil:
		return interactive.ButtonReply.Title
	case interactive.ListReply != nil:
		return interactive.ListReply.Title
	}
	return fmt.Sprintf("[interactive:%s]", interactive.Type)
}

func formatLocation(loc *messaging.WebhookLocation) string {
	text := fmt.Sprintf("📍 %f, %f", loc.Latitude, loc.Longitude)
	if loc.Name != "" {
		text = fmt.Sprintf("📍 %s (%f, %f)", loc.Name, loc.Latitude, loc.Longitude)
	}
	return text
}

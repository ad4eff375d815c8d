package messagingsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/transform"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// GenesysProcessor procesa eventos del webhook outbound de Open Messaging ya
// autenticados: mensajes de agente hacia el cliente, recibos de inyecciones
// previas y eventos de conversación (typing, disconnect).
type GenesysProcessor struct {
	resolver        messaging.TenantResolver
	mediaRelay      *MediaRelayService
	queue           messaging.MessageQueue
	unsupportedMime config.UnsupportedMimeBehavior
}

func NewGenesysProcessor(
	resolver messaging.TenantResolver,
	mediaRelay *MediaRelayService,
	queue messaging.MessageQueue,
	unsupportedMime config.UnsupportedMimeBehavior,
) *GenesysProcessor {
	return &GenesysProcessor{
		resolver:        resolver,
		mediaRelay:      mediaRelay,
		queue:           queue,
		unsupportedMime: unsupportedMime,
	}
}

// Process clasifica y despacha un evento. Corre detrás del ack HTTP.
func (p *GenesysProcessor) Process(ctx context.Context, tenantID kernel.TenantID, event messaging.GenesysEvent) {
	switch {
	case event.Type == "Receipt" || event.Status != "":
		if err := p.processReceipt(ctx, tenantID, event); err != nil {
			log.Printf("❌ Failed to process receipt %s: %v", event.ID, err)
		}
	case event.Type == "Event" && len(event.Events) > 0:
		if err := p.processConversationEvents(ctx, tenantID, event); err != nil {
			log.Printf("❌ Failed to process conversation events for %s: %v", event.ConversationID, err)
		}
	case strings.EqualFold(event.Direction, "Outbound"):
		if err := p.processAgentMessage(ctx, tenantID, event); err != nil {
			log.Printf("❌ Failed to process agent message %s: %v", event.ID, err)
		}
	default:
		log.Printf("⚠️  Unclassified Genesys event %s (type=%s direction=%s), ignoring",
			event.ID, event.Type, event.Direction)
	}
}

// processAgentMessage transforma el mensaje del agente y lo encola hacia
// WhatsApp, una entrega por parte
func (p *GenesysProcessor) processAgentMessage(ctx context.Context, tenantID kernel.TenantID, event messaging.GenesysEvent) error {
	routing, err := p.resolver.GetRouting(ctx, tenantID)
	if err != nil {
		return err
	}

	if event.Channel.To == nil || event.Channel.To.ID == "" {
		return messaging.ErrInvalidMessageFormat().
			WithDetail("reason", "agent message without recipient").
			WithDetail("event_id", event.ID)
	}

	messageID := event.Channel.MessageID
	if messageID == "" {
		messageID = event.ID
	}

	outbound := transform.OutboundMessage{
		ID:   kernel.NewMessageID(messageID),
		To:   event.Channel.To.ID,
		Text: event.Text,
	}

	for _, content := range event.Content {
		if content.Attachment == nil {
			continue
		}
		att := content.Attachment

		// Fallo de media degrada a entrega sin adjunto
		relayed, err := p.mediaRelay.RelayFromURL(ctx, tenantID, att.URL, att.Mime, att.Filename)
		if err != nil {
			log.Printf("⚠️  Media relay failed for attachment on %s, skipping attachment: %v", event.ID, err)
			continue
		}
		outbound.Attachments = append(outbound.Attachments, *relayed)
	}

	parts, err := transform.FanOutOutbound(outbound, p.unsupportedMime)
	if err != nil {
		return err
	}

	conversationID := kernel.NewConversationID(event.ConversationID)

	for _, part := range parts {
		payload, err := transform.ToWhatsApp(part, p.unsupportedMime)
		if err != nil {
			return err
		}

		dispatch := messaging.OutboundDispatch{
			TenantID:          tenantID,
			PhoneNumberID:     routing.PhoneNumberID,
			CorrelationID:     part.CorrelationID,
			InternalMessageID: part.ExternalMessageID,
			ConversationID:    conversationID,
			Payload:           payload,
		}

		body, err := json.Marshal(dispatch)
		if err != nil {
			return fmt.Errorf("failed to marshal outbound dispatch: %w", err)
		}

		if err := p.queue.Publish(ctx, messaging.QueueOutboundReady, body); err != nil {
			return err
		}
	}

	log.Printf("📤 Queued %d part(s) for agent message %s (tenant %s)", len(parts), messageID, tenantID)
	return nil
}

// processReceipt encola el recibo como evento de estado interno
func (p *GenesysProcessor) processReceipt(ctx context.Context, tenantID kernel.TenantID, event messaging.GenesysEvent) error {
	statusEvent := messaging.StatusEvent{
		TenantID:          tenantID,
		Platform:          messaging.PlatformGenesys,
		ExternalMessageID: kernel.NewMessageID(event.Channel.MessageID),
		ConversationID:    kernel.NewConversationID(event.ConversationID),
		Status:            transform.GenesysStatusToInternal(event.Status),
		Timestamp:         eventTime(event),
	}

	if len(event.Reasons) > 0 {
		statusEvent.Reason = &messaging.FailureReason{
			Code:    event.Reasons[0].Code,
			Message: event.Reasons[0].Message,
		}
	}

	body, err := json.Marshal(statusEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	return p.queue.Publish(ctx, messaging.QueueGenesysStatus, body)
}

// processConversationEvents traduce typing y disconnect a eventos de estado
func (p *GenesysProcessor) processConversationEvents(ctx context.Context, tenantID kernel.TenantID, event messaging.GenesysEvent) error {
	for _, ev := range event.Events {
		var status messaging.Status

		switch {
		case ev.EventType == "Typing":
			status = messaging.StatusTyping
		case ev.EventType == "Presence" && ev.Presence != nil && ev.Presence.Type == "Disconnect":
			status = messaging.StatusDisconnected
		default:
			continue
		}

		statusEvent := messaging.StatusEvent{
			TenantID:       tenantID,
			Platform:       messaging.PlatformGenesys,
			ConversationID: kernel.NewConversationID(event.ConversationID),
			Status:         status,
			Timestamp:      eventTime(event),
		}

		body, err := json.Marshal(statusEvent)
		if err != nil {
			return fmt.Errorf("failed to marshal status event: %w", err)
		}

		if err := p.queue.Publish(ctx, messaging.QueueGenesysStatus, body); err != nil {
			return err
		}
	}

	return nil
}

func eventTime(event messaging.GenesysEvent) time.Time {
	if !event.Channel.Time.IsZero() {
		return event.Channel.Time
	}
	return time.Now().UTC()
}

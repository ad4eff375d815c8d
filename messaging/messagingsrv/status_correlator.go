package messagingsrv

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/transform"
)

// StatusCorrelator cruza los recibos de cada plataforma con los registros de
// correlación y los republica hacia la plataforma originante. Sus handlers
// corren dentro de consumidores de cola: un error retornado dispara la
// clasificación de reintentos estándar.
type StatusCorrelator struct {
	correlations  messaging.CorrelationStore
	conversations messaging.ConversationStore
	resolver      messaging.TenantResolver
	queue         messaging.MessageQueue
	ignoreSent    bool
}

func NewStatusCorrelator(
	correlations messaging.CorrelationStore,
	conversations messaging.ConversationStore,
	resolver messaging.TenantResolver,
	queue messaging.MessageQueue,
	ignoreSent bool,
) *StatusCorrelator {
	return &StatusCorrelator{
		correlations:  correlations,
		conversations: conversations,
		resolver:      resolver,
		queue:         queue,
		ignoreSent:    ignoreSent,
	}
}

// HandleAck persiste el registro de correlación emitido tras cada entrega
// exitosa hacia WhatsApp
func (c *StatusCorrelator) HandleAck(ctx context.Context, body []byte) error {
	var record messaging.CorrelationRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
	}

	if err := c.correlations.Save(ctx, record); err != nil {
		return err
	}

	log.Printf("🔗 Correlated %s -> %s (tenant %s)",
		record.ExternalMessageID, record.InternalMessageID, record.TenantID)
	return nil
}

// HandleWhatsAppStatus mapea un status de WhatsApp (sobre un mensaje que
// nosotros enviamos) a un recibo de Open Messaging
func (c *StatusCorrelator) HandleWhatsAppStatus(ctx context.Context, body []byte) error {
	var event messaging.StatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
	}

	if event.Status == messaging.StatusSent && c.ignoreSent {
		return nil
	}

	record, err := c.correlations.Get(ctx, event.TenantID, event.ExternalMessageID)
	if err != nil {
		// Sin registro no hay a quién reportar: statuses de mensajes del
		// cliente o correlaciones ya expiradas
		log.Printf("⚠️  No correlation for status %s on %s, skipping", event.Status, event.ExternalMessageID)
		return nil
	}

	genesysStatus, known := transform.InternalStatusToGenesys(event.Status)
	if !known {
		log.Printf("⚠️  Status %q has no receipt equivalent, skipping", event.Status)
		return nil
	}

	routing, err := c.resolver.GetRouting(ctx, event.TenantID)
	if err != nil {
		return err
	}

	receipt := messaging.GenesysReceiptRequest{
		Channel: messaging.GenesysInboundChannel{
			MessageID: record.InternalMessageID.String(),
			Time:      event.Timestamp.UTC().Format(time.RFC3339),
		},
		Status:         genesysStatus,
		IsFinalReceipt: transform.IsFinalReceipt(event.Status),
		Direction:      "Outbound",
	}
	if event.Reason != nil {
		receipt.Reasons = []messaging.GenesysReason{
			{Code: event.Reason.Code, Message: event.Reason.Message},
		}
	}

	dispatch := messaging.ReceiptDispatch{
		TenantID:      event.TenantID,
		IntegrationID: routing.IntegrationID,
		Receipt:       receipt,
	}

	payload, err := json.Marshal(dispatch)
	if err != nil {
		return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
	}

	return c.queue.Publish(ctx, messaging.QueueInboundStatusReady, payload)
}

// HandleGenesysStatus refleja los eventos de Genesys hacia WhatsApp: typing y
// read se aplican sobre el último mensaje del cliente, disconnect cierra el
// mapeo de conversación
func (c *StatusCorrelator) HandleGenesysStatus(ctx context.Context, body []byte) error {
	var event messaging.StatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
	}

	switch event.Status {
	case messaging.StatusDisconnected:
		return c.conversations.DeleteByConversation(ctx, event.ConversationID)

	case messaging.StatusRead, messaging.StatusTyping:
		return c.reflectToWhatsApp(ctx, event)

	case messaging.StatusFailed:
		reason := ""
		if event.Reason != nil {
			reason = event.Reason.Code + " " + event.Reason.Message
		}
		log.Printf("❌ Genesys reported failure for %s: %s", event.ExternalMessageID, reason)
		return nil

	default:
		// Published, delivered y similares sobre inyecciones nuestras no
		// tienen acción hacia WhatsApp
		return nil
	}
}

func (c *StatusCorrelator) reflectToWhatsApp(ctx context.Context, event messaging.StatusEvent) error {
	messageID := event.ExternalMessageID
	if !strings.HasPrefix(messageID.String(), messaging.EchoIDPrefix) {
		var err error
		messageID, err = c.conversations.GetLastCustomerMessage(ctx, event.TenantID, event.ConversationID)
		if err != nil {
			return err
		}
	}

	if messageID.IsEmpty() {
		log.Printf("⚠️  No customer message to apply %s on conversation %s", event.Status, event.ConversationID)
		return nil
	}

	routing, err := c.resolver.GetRouting(ctx, event.TenantID)
	if err != nil {
		return err
	}

	dispatch := messaging.StatusDispatch{
		TenantID:      event.TenantID,
		PhoneNumberID: routing.PhoneNumberID,
		MessageID:     messageID,
		Status:        event.Status,
	}

	payload, err := json.Marshal(dispatch)
	if err != nil {
		return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
	}

	return c.queue.Publish(ctx, messaging.QueueOutboundStatus, payload)
}

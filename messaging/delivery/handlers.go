package delivery

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// NewGenesysInboundHandler entrega mensajes del cliente hacia Genesys.
// Tras una inyección exitosa registra el mapeo de conversación y marca la
// entrega en la ventana de deduplicación.
func NewGenesysInboundHandler(
	sender messaging.GenesysSender,
	dedupe messaging.DedupeStore,
	conversations messaging.ConversationStore,
) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var dispatch messaging.InboundDispatch
		if err := json.Unmarshal(body, &dispatch); err != nil {
			return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
		}

		messageID := kernel.NewMessageID(dispatch.Message.Channel.MessageID)

		delivered, err := dedupe.IsDelivered(ctx, dispatch.TenantID, messageID)
		if err != nil {
			return err
		}
		if delivered {
			log.Printf("♻️  Message %s already delivered, skipping", messageID)
			return nil
		}

		resp, err := sender.InjectMessage(ctx, dispatch.TenantID, dispatch.IntegrationID, dispatch.Message)
		if err != nil {
			return err
		}

		if resp.Conversation != nil && resp.Conversation.ID != "" {
			conversationID := kernel.NewConversationID(resp.Conversation.ID)
			if err := conversations.SaveMapping(ctx, dispatch.TenantID, dispatch.WaID, conversationID); err != nil {
				log.Printf("⚠️  Failed to save conversation mapping: %v", err)
			}
			if err := conversations.SaveLastCustomerMessage(ctx, dispatch.TenantID, conversationID, messageID); err != nil {
				log.Printf("⚠️  Failed to track last customer message: %v", err)
			}
		}

		if err := dedupe.MarkDelivered(ctx, dispatch.TenantID, messageID); err != nil {
			log.Printf("⚠️  Failed to mark %s delivered: %v", messageID, err)
		}

		log.Printf("✅ Injected message %s into Genesys (genesys id %s)", messageID, resp.ID)
		return nil
	}
}

// NewGenesysReceiptHandler reporta recibos de entrega hacia Genesys
func NewGenesysReceiptHandler(sender messaging.GenesysSender) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var dispatch messaging.ReceiptDispatch
		if err := json.Unmarshal(body, &dispatch); err != nil {
			return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
		}

		if err := sender.SendReceipt(ctx, dispatch.TenantID, dispatch.IntegrationID, dispatch.Receipt); err != nil {
			return err
		}

		log.Printf("✅ Receipt %s reported for %s", dispatch.Receipt.Status, dispatch.Receipt.Channel.MessageID)
		return nil
	}
}

// NewWhatsAppOutboundHandler entrega mensajes de agente hacia WhatsApp.
// Tras un envío exitoso publica el registro de correlación con el wamid
// asignado y marca la entrega en la ventana de deduplicación.
func NewWhatsAppOutboundHandler(
	sender messaging.WhatsAppSender,
	dedupe messaging.DedupeStore,
	queue messaging.MessageQueue,
) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var dispatch messaging.OutboundDispatch
		if err := json.Unmarshal(body, &dispatch); err != nil {
			return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
		}

		delivered, err := dedupe.IsDelivered(ctx, dispatch.TenantID, dispatch.InternalMessageID)
		if err != nil {
			return err
		}
		if delivered {
			log.Printf("♻️  Message %s already delivered, skipping", dispatch.InternalMessageID)
			return nil
		}

		wamid, err := sender.SendMessage(ctx, dispatch.TenantID, dispatch.PhoneNumberID, dispatch.Payload)
		if err != nil {
			return err
		}

		record := messaging.CorrelationRecord{
			TenantID:          dispatch.TenantID,
			CorrelationID:     dispatch.CorrelationID,
			InternalMessageID: dispatch.InternalMessageID,
			ExternalMessageID: wamid,
			ConversationID:    dispatch.ConversationID,
			CreatedAt:         time.Now().UTC(),
		}

		ack, err := json.Marshal(record)
		if err != nil {
			return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
		}
		if err := queue.Publish(ctx, messaging.QueueOutboundAck, ack); err != nil {
			// El mensaje ya salió; perder el ack solo degrada los recibos
			log.Printf("⚠️  Failed to publish ack for %s: %v", wamid, err)
		}

		if err := dedupe.MarkDelivered(ctx, dispatch.TenantID, dispatch.InternalMessageID); err != nil {
			log.Printf("⚠️  Failed to mark %s delivered: %v", dispatch.InternalMessageID, err)
		}

		log.Printf("✅ Sent message %s to WhatsApp as %s", dispatch.InternalMessageID, wamid)
		return nil
	}
}

// NewWhatsAppStatusHandler refleja read y typing hacia WhatsApp con la acción
// de mark-as-read del Graph API
func NewWhatsAppStatusHandler(sender messaging.WhatsAppSender) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var dispatch messaging.StatusDispatch
		if err := json.Unmarshal(body, &dispatch); err != nil {
			return messaging.NewDeliveryError(messaging.FailureUnparseable, err)
		}

		switch dispatch.Status {
		case messaging.StatusRead, messaging.StatusTyping:
			typing := dispatch.Status == messaging.StatusTyping
			if err := sender.MarkMessageRead(ctx, dispatch.TenantID, dispatch.PhoneNumberID, dispatch.MessageID, typing); err != nil {
				return err
			}
			log.Printf("✅ Applied %s on %s", dispatch.Status, dispatch.MessageID)
			return nil
		default:
			// WhatsApp no tiene acción para otros estados
			return nil
		}
	}
}

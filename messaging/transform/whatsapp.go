package transform

import (
	"fmt"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// InboundMessage es un mensaje de WhatsApp ya normalizado, con la media
// relocalizada en storage durable (o ausente si el relay de media falló)
type InboundMessage struct {
	ID          kernel.MessageID
	WaID        string
	SenderName  string
	Text        string
	Attachments []messaging.MediaContent
	Timestamp   time.Time
}

// PartID deriva el ID estable de la parte i de un mensaje con adjuntos.
// La derivación es determinística: reintentar produce los mismos IDs.
func PartID(id kernel.MessageID, index int) kernel.MessageID {
	return kernel.MessageID(fmt.Sprintf("%s_att%d", id.String(), index))
}

// FanOutInbound reparte un mensaje del cliente en partes normalizadas, cada
// una con exactamente texto o un adjunto. Un mensaje con N adjuntos produce
// N partes (más una de texto si trae cuerpo), en orden fijo: texto primero
// con el ID original, adjuntos después con IDs derivados.
func FanOutInbound(msg InboundMessage) ([]messaging.NormalizedMessage, error) {
	if msg.Text == "" && len(msg.Attachments) == 0 {
		return nil, messaging.ErrInvalidMessageFormat().
			WithDetail("reason", "message without text or attachments").
			WithDetail("message_id", msg.ID.String())
	}

	var parts []messaging.NormalizedMessage

	if msg.Text != "" {
		parts = append(parts, inboundPart(msg, msg.ID, messaging.TextContent(msg.Text)))
	}

	for i, att := range msg.Attachments {
		parts = append(parts, inboundPart(msg, PartID(msg.ID, i), messaging.MediaOnlyContent(att)))
	}

	return parts, nil
}

func inboundPart(msg InboundMessage, id kernel.MessageID, content messaging.MessageContent) messaging.NormalizedMessage {
	return messaging.NormalizedMessage{
		Direction:         messaging.DirectionInbound,
		ExternalMessageID: id,
		Content:           content,
		SenderID:          msg.WaID,
		SenderName:        msg.SenderName,
		Timestamp:         msg.Timestamp,
		CorrelationID:     kernel.NewCorrelationID(id.String()),
	}
}

// ToGenesys mapea una parte normalizada al cuerpo de inyección de Open
// Messaging
func ToGenesys(part messaging.NormalizedMessage) (messaging.GenesysInboundMessage, error) {
	if err := part.Content.Validate(); err != nil {
		return messaging.GenesysInboundMessage{}, err
	}

	out := messaging.GenesysInboundMessage{
		Channel: messaging.GenesysInboundChannel{
			MessageID: part.ExternalMessageID.String(),
			From: &messaging.GenesysParty{
				ID:       part.SenderID,
				IDType:   "Phone",
				Nickname: part.SenderName,
			},
			Time: part.Timestamp.UTC().Format(time.RFC3339),
		},
		Type:      "Text",
		Direction: "Inbound",
	}

	switch part.Content.Kind {
	case messaging.ContentText:
		out.Text = part.Content.Text
	case messaging.ContentMedia:
		media := part.Content.Media
		out.Content = []messaging.GenesysContent{
			{
				ContentType: "Attachment",
				Attachment: &messaging.GenesysAttachment{
					MediaType: GenesysMediaTypeFor(media.ContentType),
					URL:       media.URL,
					Mime:      media.ContentType,
					Filename:  media.Filename,
				},
			},
		}
	}

	return out, nil
}

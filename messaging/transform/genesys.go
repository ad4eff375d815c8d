package transform

import (
	"net/url"
	"path"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// MaxCaptionLength es el límite de caption del Graph API
const MaxCaptionLength = 1024

// OutboundMessage es un mensaje de agente ya normalizado, con la media
// relocalizada en storage durable
type OutboundMessage struct {
	ID          kernel.MessageID
	To          string // waId del cliente
	Text        string
	Attachments []messaging.MediaContent
}

// TruncateCaption recorta un caption al límite del Graph API
func TruncateCaption(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxCaptionLength {
		return text
	}
	return string(runes[:MaxCaptionLength])
}

// FanOutOutbound reparte un mensaje de agente en partes normalizadas, cada
// una con exactamente texto o un adjunto. El texto se pliega como caption del
// primer adjunto que lo soporte; cuando ninguno admite caption (ej. audio)
// viaja en parte propia, primero. Los adjuntos con MIME no soportado se
// degradan según el comportamiento configurado: aquí se resuelve el fallback
// a texto (el link viaja como cuerpo), el resto lo decide ToWhatsApp.
func FanOutOutbound(msg OutboundMessage, behavior config.UnsupportedMimeBehavior) ([]messaging.NormalizedMessage, error) {
	if msg.Text == "" && len(msg.Attachments) == 0 {
		return nil, messaging.ErrInvalidMessageFormat().
			WithDetail("reason", "message without text or attachments").
			WithDetail("message_id", msg.ID.String())
	}

	if len(msg.Attachments) == 0 {
		return []messaging.NormalizedMessage{
			outboundPart(msg, msg.ID, messaging.TextContent(msg.Text)),
		}, nil
	}

	// Resolver el tipo de cada adjunto primero, para saber si el texto
	// puede viajar como caption o necesita parte propia
	types := make([]string, len(msg.Attachments))
	for i, att := range msg.Attachments {
		wabaType, ok := WabaTypeFor(att.ContentType)
		if !ok {
			switch behavior {
			case config.MimeConvertToDocument:
				wabaType = WabaTypeDocument
			case config.MimeTextFallback:
				wabaType = WabaTypeText
			default:
				return nil, messaging.ErrUnsupportedMediaType().
					WithDetail("mime_type", att.ContentType).
					WithDetail("message_id", msg.ID.String())
			}
		}
		types[i] = wabaType
	}

	captionIndex := -1
	if msg.Text != "" {
		for i, t := range types {
			if SupportsCaption(t) {
				captionIndex = i
				break
			}
		}
	}

	var parts []messaging.NormalizedMessage

	// Texto que no cupo como caption viaja con el ID original
	if msg.Text != "" && captionIndex < 0 {
		parts = append(parts, outboundPart(msg, msg.ID, messaging.TextContent(msg.Text)))
	}

	for i, att := range msg.Attachments {
		partID := PartID(msg.ID, i)

		if types[i] == WabaTypeText {
			// Fallback: el adjunto no soportado viaja como link en texto
			parts = append(parts, outboundPart(msg, partID, messaging.TextContent(att.URL)))
			continue
		}

		if i == captionIndex {
			att.Caption = TruncateCaption(msg.Text)
		}
		parts = append(parts, outboundPart(msg, partID, messaging.MediaOnlyContent(att)))
	}

	return parts, nil
}

func outboundPart(msg OutboundMessage, id kernel.MessageID, content messaging.MessageContent) messaging.NormalizedMessage {
	return messaging.NormalizedMessage{
		Direction:         messaging.DirectionOutbound,
		ExternalMessageID: id,
		Content:           content,
		RecipientID:       msg.To,
		CorrelationID:     kernel.NewCorrelationID(id.String()),
	}
}

// ToWhatsApp mapea una parte normalizada a un payload del Graph API
func ToWhatsApp(part messaging.NormalizedMessage, behavior config.UnsupportedMimeBehavior) (messaging.WabaPayload, error) {
	if err := part.Content.Validate(); err != nil {
		return messaging.WabaPayload{}, err
	}

	if part.Content.Kind == messaging.ContentText {
		return textPayload(part.RecipientID, part.Content.Text), nil
	}

	media := part.Content.Media

	wabaType, ok := WabaTypeFor(media.ContentType)
	if !ok {
		switch behavior {
		case config.MimeConvertToDocument:
			wabaType = WabaTypeDocument
		case config.MimeTextFallback:
			return textPayload(part.RecipientID, media.URL), nil
		default:
			return messaging.WabaPayload{}, messaging.ErrUnsupportedMediaType().
				WithDetail("mime_type", media.ContentType).
				WithDetail("message_id", part.ExternalMessageID.String())
		}
	}

	wabaMedia := &messaging.WabaMedia{
		Link:    media.URL,
		Caption: media.Caption,
	}
	if wabaType == WabaTypeDocument {
		wabaMedia.Filename = documentFilename(*media)
	}

	payload := messaging.WabaPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               part.RecipientID,
		Type:             wabaType,
	}

	switch wabaType {
	case WabaTypeImage:
		payload.Image = wabaMedia
	case WabaTypeVideo:
		payload.Video = wabaMedia
	case WabaTypeAudio:
		payload.Audio = wabaMedia
	case WabaTypeSticker:
		payload.Sticker = wabaMedia
	case WabaTypeDocument:
		payload.Document = wabaMedia
	}

	return payload, nil
}

// documentFilename resuelve el nombre visible del documento: el declarado,
// el basename de la URL, o "document"
func documentFilename(att messaging.MediaContent) string {
	if att.Filename != "" {
		return att.Filename
	}
	if u, err := url.Parse(att.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return "document"
}

func textPayload(to, text string) messaging.WabaPayload {
	return messaging.WabaPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             WabaTypeText,
		Text:             &messaging.WabaText{Body: text},
	}
}

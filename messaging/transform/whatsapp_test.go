package transform

import (
	"reflect"
	"testing"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

func inboundFixture() InboundMessage {
	return InboundMessage{
		ID:         kernel.NewMessageID("wamid.ABC123"),
		WaID:       "5215512345678",
		SenderName: "Juan Pérez",
		Timestamp:  time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}

// injectParts corre las dos etapas: fan-out y mapeo a Open Messaging
func injectParts(t *testing.T, msg InboundMessage) []messaging.GenesysInboundMessage {
	t.Helper()

	parts, err := FanOutInbound(msg)
	if err != nil {
		t.Fatalf("unexpected fan-out error: %v", err)
	}

	out := make([]messaging.GenesysInboundMessage, len(parts))
	for i, part := range parts {
		mapped, err := ToGenesys(part)
		if err != nil {
			t.Fatalf("unexpected mapping error: %v", err)
		}
		out[i] = mapped
	}
	return out
}

func TestFanOutInboundTextOnly(t *testing.T) {
	msg := inboundFixture()
	msg.Text = "hola, necesito ayuda"

	parts, err := FanOutInbound(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}

	part := parts[0]
	if part.ExternalMessageID.String() != "wamid.ABC123" {
		t.Errorf("expected original message id, got %s", part.ExternalMessageID)
	}
	if part.Direction != messaging.DirectionInbound {
		t.Errorf("expected inbound direction, got %s", part.Direction)
	}
	if part.Content.Kind != messaging.ContentText || part.Content.Text != "hola, necesito ayuda" {
		t.Errorf("content malformed: %+v", part.Content)
	}
	if part.CorrelationID.IsEmpty() {
		t.Error("correlation id must be derived for every part")
	}
}

func TestFanOutInboundTextWithAttachment(t *testing.T) {
	msg := inboundFixture()
	msg.Text = "mira esta foto"
	msg.Attachments = []messaging.MediaContent{
		{URL: "https://media.example.com/t1/a.jpg", ContentType: "image/jpeg"},
	}

	parts, err := FanOutInbound(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts (text + attachment), got %d", len(parts))
	}

	// Orden fijo: texto primero con el ID original
	if parts[0].Content.Kind != messaging.ContentText || parts[0].ExternalMessageID.String() != "wamid.ABC123" {
		t.Errorf("text part malformed: %+v", parts[0])
	}
	if parts[1].ExternalMessageID.String() != "wamid.ABC123_att0" {
		t.Errorf("expected derived part id wamid.ABC123_att0, got %s", parts[1].ExternalMessageID)
	}
	if parts[1].Content.Kind != messaging.ContentMedia || parts[1].Content.Media == nil {
		t.Fatalf("attachment part missing media: %+v", parts[1].Content)
	}
}

func TestFanOutInboundMultipleAttachmentsNoText(t *testing.T) {
	msg := inboundFixture()
	msg.Attachments = []messaging.MediaContent{
		{URL: "https://media.example.com/t1/a.jpg", ContentType: "image/jpeg"},
		{URL: "https://media.example.com/t1/b.png", ContentType: "image/png"},
	}

	parts, err := FanOutInbound(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected exactly 2 parts, got %d", len(parts))
	}
	if parts[0].ExternalMessageID.String() != "wamid.ABC123_att0" || parts[1].ExternalMessageID.String() != "wamid.ABC123_att1" {
		t.Errorf("part ids not stable: %s, %s", parts[0].ExternalMessageID, parts[1].ExternalMessageID)
	}
}

func TestFanOutInboundDeterministic(t *testing.T) {
	msg := inboundFixture()
	msg.Text = "reintento"
	msg.Attachments = []messaging.MediaContent{
		{URL: "https://media.example.com/t1/a.jpg", ContentType: "image/jpeg"},
		{URL: "https://media.example.com/t1/b.mp4", ContentType: "video/mp4"},
	}

	first := injectParts(t, msg)
	second := injectParts(t, msg)
	if !reflect.DeepEqual(first, second) {
		t.Error("transformation is not deterministic across retries")
	}
}

func TestFanOutInboundEmptyMessage(t *testing.T) {
	if _, err := FanOutInbound(inboundFixture()); err == nil {
		t.Error("expected error for message without text or attachments")
	}
}

func TestToGenesysTextPart(t *testing.T) {
	msg := inboundFixture()
	msg.Text = "hola, necesito ayuda"

	out := injectParts(t, msg)
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if out[0].Channel.MessageID != "wamid.ABC123" {
		t.Errorf("expected original message id, got %s", out[0].Channel.MessageID)
	}
	if out[0].Text != "hola, necesito ayuda" {
		t.Errorf("unexpected text: %s", out[0].Text)
	}
	if out[0].Direction != "Inbound" {
		t.Errorf("expected Inbound direction, got %s", out[0].Direction)
	}
	if out[0].Channel.From.ID != "5215512345678" || out[0].Channel.From.Nickname != "Juan Pérez" {
		t.Errorf("sender not propagated: %+v", out[0].Channel.From)
	}
}

func TestToGenesysAttachmentPart(t *testing.T) {
	msg := inboundFixture()
	msg.Attachments = []messaging.MediaContent{
		{URL: "https://media.example.com/t1/a.jpg", ContentType: "image/jpeg", Filename: "foto.jpg"},
	}

	out := injectParts(t, msg)
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if len(out[0].Content) != 1 || out[0].Content[0].Attachment == nil {
		t.Fatalf("attachment missing: %+v", out[0])
	}
	att := out[0].Content[0].Attachment
	if att.MediaType != "Image" || att.URL != "https://media.example.com/t1/a.jpg" || att.Filename != "foto.jpg" {
		t.Errorf("attachment malformed: %+v", att)
	}
}

func TestToGenesysRejectsInvalidContent(t *testing.T) {
	cases := []struct {
		name    string
		content messaging.MessageContent
	}{
		{"empty text", messaging.MessageContent{Kind: messaging.ContentText}},
		{"media without url", messaging.MessageContent{Kind: messaging.ContentMedia, Media: &messaging.MediaContent{}}},
		{"unknown kind", messaging.MessageContent{Kind: "sticker_pack"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			part := messaging.NormalizedMessage{
				Direction:         messaging.DirectionInbound,
				ExternalMessageID: kernel.NewMessageID("wamid.BAD"),
				Content:           tc.content,
			}
			if _, err := ToGenesys(part); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPartIDDerivation(t *testing.T) {
	id := kernel.NewMessageID("wamid.XYZ")
	if got := PartID(id, 0); got.String() != "wamid.XYZ_att0" {
		t.Errorf("unexpected part id: %s", got)
	}
	if got := PartID(id, 7); got.String() != "wamid.XYZ_att7" {
		t.Errorf("unexpected part id: %s", got)
	}
}

package transform

import (
	"testing"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
)

func TestGenesysStatusToInternal(t *testing.T) {
	tests := []struct {
		genesys  string
		expected messaging.Status
	}{
		{"Sent", messaging.StatusSent},
		{"Published", messaging.StatusSent},
		{"Delivered", messaging.StatusDelivered},
		{"Read", messaging.StatusRead},
		{"Failed", messaging.StatusFailed},
		{"Typing", messaging.StatusTyping},
		{"Disconnect", messaging.StatusDisconnected},
		// Desconocidos degradan a passthrough en minúsculas
		{"Escalated", messaging.Status("escalated")},
		{"Queued", messaging.Status("queued")},
	}

	for _, tt := range tests {
		if got := GenesysStatusToInternal(tt.genesys); got != tt.expected {
			t.Errorf("GenesysStatusToInternal(%q) = %q, expected %q", tt.genesys, got, tt.expected)
		}
	}
}

func TestInternalStatusToGenesys(t *testing.T) {
	tests := []struct {
		internal messaging.Status
		expected string
		known    bool
	}{
		{messaging.StatusSent, "Sent", true},
		{messaging.StatusDelivered, "Delivered", true},
		{messaging.StatusRead, "Read", true},
		{messaging.StatusFailed, "Failed", true},
		{messaging.Status("escalated"), "escalated", false},
	}

	for _, tt := range tests {
		got, known := InternalStatusToGenesys(tt.internal)
		if got != tt.expected || known != tt.known {
			t.Errorf("InternalStatusToGenesys(%q) = (%q, %v), expected (%q, %v)",
				tt.internal, got, known, tt.expected, tt.known)
		}
	}
}

func TestWhatsAppStatusToInternal(t *testing.T) {
	tests := []struct {
		whatsapp string
		expected messaging.Status
	}{
		{"sent", messaging.StatusSent},
		{"delivered", messaging.StatusDelivered},
		{"read", messaging.StatusRead},
		{"failed", messaging.StatusFailed},
		{"deleted", messaging.Status("deleted")},
	}

	for _, tt := range tests {
		if got := WhatsAppStatusToInternal(tt.whatsapp); got != tt.expected {
			t.Errorf("WhatsAppStatusToInternal(%q) = %q, expected %q", tt.whatsapp, got, tt.expected)
		}
	}
}

func TestWabaTypeFor(t *testing.T) {
	tests := []struct {
		mime     string
		expected string
		ok       bool
	}{
		{"image/jpeg", WabaTypeImage, true},
		{"image/webp", WabaTypeSticker, true},
		{"video/mp4", WabaTypeVideo, true},
		{"audio/ogg; codecs=opus", WabaTypeAudio, true},
		{"application/pdf", WabaTypeDocument, true},
		{"audio/flac", "", false},
		{"application/x-tar", "", false},
	}

	for _, tt := range tests {
		got, ok := WabaTypeFor(tt.mime)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("WabaTypeFor(%q) = (%q, %v), expected (%q, %v)", tt.mime, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	if got := ExtensionFor("audio/ogg; codecs=opus"); got != "ogg" {
		t.Errorf("expected ogg, got %s", got)
	}
	if got := ExtensionFor("application/x-unknown"); got != "bin" {
		t.Errorf("expected bin fallback, got %s", got)
	}
}

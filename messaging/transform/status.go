package transform

import (
	"strings"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
)

// Estados que Genesys emite en recibos y eventos
var genesysToInternal = map[string]messaging.Status{
	"Sent":       messaging.StatusSent,
	"Published":  messaging.StatusSent,
	"Delivered":  messaging.StatusDelivered,
	"Read":       messaging.StatusRead,
	"Failed":     messaging.StatusFailed,
	"Typing":     messaging.StatusTyping,
	"Disconnect": messaging.StatusDisconnected,
}

// GenesysStatusToInternal mapea un estado de Genesys al vocabulario interno.
// Estados desconocidos degradan a passthrough en minúsculas para que los
// consumidores decidan si les interesa.
func GenesysStatusToInternal(status string) messaging.Status {
	if internal, ok := genesysToInternal[status]; ok {
		return internal
	}
	return messaging.Status(strings.ToLower(status))
}

var internalToGenesys = map[messaging.Status]string{
	messaging.StatusSent:      "Sent",
	messaging.StatusDelivered: "Delivered",
	messaging.StatusRead:      "Read",
	messaging.StatusFailed:    "Failed",
}

// InternalStatusToGenesys mapea el vocabulario interno al de recibos de
// Genesys. ok=false cuando el estado no tiene recibo equivalente y debe
// viajar como passthrough en minúsculas.
func InternalStatusToGenesys(status messaging.Status) (string, bool) {
	if genesys, ok := internalToGenesys[status]; ok {
		return genesys, true
	}
	return strings.ToLower(string(status)), false
}

// WhatsAppStatusToInternal mapea un estado del webhook de WhatsApp al
// vocabulario interno. Meta ya los emite en minúsculas.
func WhatsAppStatusToInternal(status string) messaging.Status {
	switch status {
	case "sent":
		return messaging.StatusSent
	case "delivered":
		return messaging.StatusDelivered
	case "read":
		return messaging.StatusRead
	case "failed":
		return messaging.StatusFailed
	}
	return messaging.Status(strings.ToLower(status))
}

// IsFinalReceipt indica si un recibo cierra el ciclo de vida del mensaje
func IsFinalReceipt(status messaging.Status) bool {
	return status == messaging.StatusFailed
}

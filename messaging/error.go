package messaging

import (
	"errors"
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("RELAY")

// ============================================================================
// Error Codes
// ============================================================================

var (
	// Webhook / ingestión
	CodeInvalidSignature   = ErrRegistry.Register("INVALID_SIGNATURE", errx.TypeAuthorization, http.StatusUnauthorized, "Firma de webhook inválida")
	CodeMissingSecret      = ErrRegistry.Register("MISSING_SECRET", errx.TypeAuthorization, http.StatusUnauthorized, "Secreto de webhook no configurado")
	CodeInvalidPayload     = ErrRegistry.Register("INVALID_PAYLOAD", errx.TypeValidation, http.StatusBadRequest, "Payload de webhook inválido")
	CodeVerificationFailed = ErrRegistry.Register("VERIFICATION_FAILED", errx.TypeAuthorization, http.StatusForbidden, "Verificación de webhook falló")

	// Tenant / routing
	CodeTenantNotResolved = ErrRegistry.Register("TENANT_NOT_RESOLVED", errx.TypeNotFound, http.StatusNotFound, "Tenant no resuelto para el webhook")
	CodeTenantNotFound    = ErrRegistry.Register("TENANT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tenant no encontrado")
	CodeTenantInactive    = ErrRegistry.Register("TENANT_INACTIVE", errx.TypeBusiness, http.StatusForbidden, "Tenant está inactivo")

	// Transformación
	CodeInvalidMessageFormat = ErrRegistry.Register("INVALID_MESSAGE_FORMAT", errx.TypeValidation, http.StatusBadRequest, "Formato de mensaje inválido")
	CodeUnsupportedMediaType = ErrRegistry.Register("UNSUPPORTED_MEDIA_TYPE", errx.TypeValidation, http.StatusUnsupportedMediaType, "Tipo de medio no soportado")

	// Entrega
	CodeDeliveryFailed   = ErrRegistry.Register("DELIVERY_FAILED", errx.TypeExternal, http.StatusBadGateway, "Entrega de mensaje falló")
	CodeProviderAuth     = ErrRegistry.Register("PROVIDER_AUTH_FAILED", errx.TypeExternal, http.StatusUnauthorized, "Autenticación con proveedor falló")
	CodeProviderRate     = ErrRegistry.Register("PROVIDER_RATE_LIMITED", errx.TypeExternal, http.StatusTooManyRequests, "Proveedor limitó la tasa de requests")
	CodeMediaRelayFailed = ErrRegistry.Register("MEDIA_RELAY_FAILED", errx.TypeExternal, http.StatusBadGateway, "Relocalización de media falló")

	// Infraestructura
	CodeQueueUnavailable   = ErrRegistry.Register("QUEUE_UNAVAILABLE", errx.TypeInternal, http.StatusServiceUnavailable, "Cola de mensajes no disponible")
	CodeCorrelationMissing = ErrRegistry.Register("CORRELATION_MISSING", errx.TypeNotFound, http.StatusNotFound, "Registro de correlación no encontrado")
)

// ============================================================================
// Error Constructor Functions
// ============================================================================

func ErrInvalidSignature() *errx.Error {
	return ErrRegistry.New(CodeInvalidSignature)
}

func ErrMissingSecret() *errx.Error {
	return ErrRegistry.New(CodeMissingSecret)
}

func ErrInvalidPayload() *errx.Error {
	return ErrRegistry.New(CodeInvalidPayload)
}

func ErrVerificationFailed() *errx.Error {
	return ErrRegistry.New(CodeVerificationFailed)
}

func ErrTenantNotResolved() *errx.Error {
	return ErrRegistry.New(CodeTenantNotResolved)
}

func ErrTenantNotFound() *errx.Error {
	return ErrRegistry.New(CodeTenantNotFound)
}

func ErrTenantInactive() *errx.Error {
	return ErrRegistry.New(CodeTenantInactive)
}

func ErrInvalidMessageFormat() *errx.Error {
	return ErrRegistry.New(CodeInvalidMessageFormat)
}

func ErrUnsupportedMediaType() *errx.Error {
	return ErrRegistry.New(CodeUnsupportedMediaType)
}

func ErrDeliveryFailed() *errx.Error {
	return ErrRegistry.New(CodeDeliveryFailed)
}

func ErrProviderAuth() *errx.Error {
	return ErrRegistry.New(CodeProviderAuth)
}

func ErrProviderRateLimited() *errx.Error {
	return ErrRegistry.New(CodeProviderRate)
}

func ErrMediaRelayFailed() *errx.Error {
	return ErrRegistry.New(CodeMediaRelayFailed)
}

func ErrQueueUnavailable() *errx.Error {
	return ErrRegistry.New(CodeQueueUnavailable)
}

func ErrCorrelationMissing() *errx.Error {
	return ErrRegistry.New(CodeCorrelationMissing)
}

// ============================================================================
// Delivery failure classification
// ============================================================================

// FailureKind clasifica un fallo de entrega para decidir su destino en la cola
type FailureKind int

const (
	// FailureTransient: reintentar con backoff hasta agotar el presupuesto
	FailureTransient FailureKind = iota
	// FailurePermanent: dead-letter inmediato, reintentar no puede ayudar
	FailurePermanent
	// FailureRateLimited: reencolar sin consumir presupuesto de reintentos
	FailureRateLimited
	// FailureUnparseable: el payload no se pudo interpretar, descartar a DLQ
	FailureUnparseable
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureRateLimited:
		return "rate_limited"
	case FailureUnparseable:
		return "unparseable"
	}
	return "unknown"
}

// DeliveryError envuelve el error de un intento de entrega con su clasificación
type DeliveryError struct {
	Kind FailureKind
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " delivery failure"
	}
	return e.Kind.String() + " delivery failure: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError construye un error de entrega clasificado
func NewDeliveryError(kind FailureKind, err error) *DeliveryError {
	return &DeliveryError{Kind: kind, Err: err}
}

// ClassifyDelivery extrae la clasificación de un error; los errores no
// clasificados (red, timeouts, etc.) se tratan como transitorios.
func ClassifyDelivery(err error) FailureKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return FailureTransient
}

// ClassifyHTTPStatus mapea un status HTTP del proveedor a una clasificación
func ClassifyHTTPStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusBadRequest, status == http.StatusForbidden, status == http.StatusNotFound:
		return FailurePermanent
	default:
		return FailureTransient
	}
}

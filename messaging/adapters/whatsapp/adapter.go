package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

var (
	_ messaging.WhatsAppSender = (*Adapter)(nil)
	_ messaging.MediaSource    = (*Adapter)(nil)
)

// Adapter habla con el Graph API de Meta: envío de mensajes, acciones de
// estado y resolución de media. Los errores de envío salen clasificados para
// la política de reintentos del consumidor.
type Adapter struct {
	cfg        config.WhatsAppConfig
	tokens     messaging.TokenProvider
	httpClient *http.Client
}

func NewAdapter(cfg config.WhatsAppConfig, tokens messaging.TokenProvider, httpClient *http.Client) *Adapter {
	return &Adapter{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
	}
}

func (a *Adapter) messagesURL(phoneNumberID kernel.PhoneNumberID) string {
	return fmt.Sprintf("%s/%s/%s/messages", a.cfg.GraphBaseURL, a.cfg.APIVersion, phoneNumberID.String())
}

// SendMessage envía el payload y retorna el wamid asignado por Meta
func (a *Adapter) SendMessage(ctx context.Context, tenantID kernel.TenantID, phoneNumberID kernel.PhoneNumberID, payload messaging.WabaPayload) (kernel.MessageID, error) {
	body, status, err := a.post(ctx, tenantID, a.messagesURL(phoneNumberID), payload)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return "", a.classifyError(ctx, tenantID, status, body)
	}

	var resp messaging.WabaSendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", messaging.NewDeliveryError(messaging.FailureTransient,
			fmt.Errorf("failed to decode send response: %w", err))
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", messaging.NewDeliveryError(messaging.FailureTransient,
			messaging.ErrDeliveryFailed().WithDetail("reason", "response without message id"))
	}

	return kernel.NewMessageID(resp.Messages[0].ID), nil
}

// MarkMessageRead marca un mensaje del cliente como leído; typing agrega el
// indicador de escritura
func (a *Adapter) MarkMessageRead(ctx context.Context, tenantID kernel.TenantID, phoneNumberID kernel.PhoneNumberID, messageID kernel.MessageID, typing bool) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID.String(),
	}
	if typing {
		payload["typing_indicator"] = map[string]string{"type": "text"}
	}

	body, status, err := a.post(ctx, tenantID, a.messagesURL(phoneNumberID), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return a.classifyError(ctx, tenantID, status, body)
	}
	return nil
}

// FetchMedia resuelve un media ID a su URL efímera y descarga el contenido.
// Ambos pasos requieren el bearer token del tenant.
func (a *Adapter) FetchMedia(ctx context.Context, tenantID kernel.TenantID, mediaID string) ([]byte, string, error) {
	token, err := a.tokens.GetToken(ctx, tenantID, messaging.PlatformWhatsApp)
	if err != nil {
		return nil, "", err
	}

	metaURL := fmt.Sprintf("%s/%s/%s", a.cfg.GraphBaseURL, a.cfg.APIVersion, mediaID)
	meta, status, err := a.get(ctx, token, metaURL)
	if err != nil {
		return nil, "", err
	}
	if status != http.StatusOK {
		return nil, "", messaging.ErrMediaRelayFailed().
			WithDetail("media_id", mediaID).
			WithDetail("status", status)
	}

	var info struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(meta, &info); err != nil {
		return nil, "", fmt.Errorf("failed to decode media info: %w", err)
	}
	if info.URL == "" {
		return nil, "", messaging.ErrMediaRelayFailed().
			WithDetail("media_id", mediaID).
			WithDetail("reason", "media info without url")
	}

	data, status, err := a.get(ctx, token, info.URL)
	if err != nil {
		return nil, "", err
	}
	if status != http.StatusOK {
		return nil, "", messaging.ErrMediaRelayFailed().
			WithDetail("media_id", mediaID).
			WithDetail("status", status)
	}

	return data, info.MimeType, nil
}

func (a *Adapter) post(ctx context.Context, tenantID kernel.TenantID, url string, payload any) ([]byte, int, error) {
	token, err := a.tokens.GetToken(ctx, tenantID, messaging.PlatformWhatsApp)
	if err != nil {
		return nil, 0, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, messaging.NewDeliveryError(messaging.FailureUnparseable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(data))
	if err != nil {
		return nil, 0, messaging.NewDeliveryError(messaging.FailureTransient, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// Errores de red y timeouts son transitorios
		return nil, 0, messaging.NewDeliveryError(messaging.FailureTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}

func (a *Adapter) get(ctx context.Context, token, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}

func (a *Adapter) classifyError(ctx context.Context, tenantID kernel.TenantID, status int, body []byte) error {
	var apiErr messaging.WabaErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	base := messaging.ErrDeliveryFailed().
		WithDetail("status", status).
		WithDetail("provider_code", apiErr.Error.Code).
		WithDetail("provider_message", apiErr.Error.Message)

	if status == http.StatusUnauthorized {
		// Token vencido o revocado: invalidar y dejar que el reintento
		// obtenga uno fresco
		log.Printf("🔑 WhatsApp API returned 401 for tenant %s, invalidating token", tenantID)
		_ = a.tokens.Invalidate(ctx, tenantID, messaging.PlatformWhatsApp)
		return messaging.NewDeliveryError(messaging.FailureTransient, base)
	}

	return messaging.NewDeliveryError(messaging.ClassifyHTTPStatus(status), base)
}

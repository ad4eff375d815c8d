package genesys

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

var _ messaging.GenesysSender = (*Adapter)(nil)

// Adapter habla con el API de Genesys Cloud: inyección de mensajes inbound y
// reporte de recibos sobre Open Messaging. Los errores salen clasificados
// para la política de reintentos del consumidor.
type Adapter struct {
	cfg        config.GenesysConfig
	tokens     messaging.TokenProvider
	httpClient *http.Client
}

func NewAdapter(cfg config.GenesysConfig, tokens messaging.TokenProvider, httpClient *http.Client) *Adapter {
	return &Adapter{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
	}
}

func (a *Adapter) baseURL() string {
	return fmt.Sprintf("https://api.%s", a.cfg.Region)
}

// InjectMessage inyecta un mensaje del cliente en la conversación
func (a *Adapter) InjectMessage(ctx context.Context, tenantID kernel.TenantID, integrationID kernel.IntegrationID, msg messaging.GenesysInboundMessage) (*messaging.GenesysInjectResponse, error) {
	url := fmt.Sprintf("%s/api/v2/conversations/messages/%s/inbound/open/message",
		a.baseURL(), integrationID.String())

	body, status, err := a.post(ctx, tenantID, url, msg)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return nil, a.classifyError(ctx, tenantID, status, body)
	}

	var resp messaging.GenesysInjectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, messaging.NewDeliveryError(messaging.FailureTransient,
			fmt.Errorf("failed to decode inject response: %w", err))
	}

	return &resp, nil
}

// SendReceipt reporta el estado de entrega de un mensaje previamente inyectado
func (a *Adapter) SendReceipt(ctx context.Context, tenantID kernel.TenantID, integrationID kernel.IntegrationID, receipt messaging.GenesysReceiptRequest) error {
	url := fmt.Sprintf("%s/api/v2/conversations/messages/%s/inbound/open/receipt",
		a.baseURL(), integrationID.String())

	body, status, err := a.post(ctx, tenantID, url, receipt)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return a.classifyError(ctx, tenantID, status, body)
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, tenantID kernel.TenantID, url string, payload any) ([]byte, int, error) {
	token, err := a.tokens.GetToken(ctx, tenantID, messaging.PlatformGenesys)
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
		return nil, 0, messaging.NewDeliveryError(messaging.FailureTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}

func (a *Adapter) classifyError(ctx context.Context, tenantID kernel.TenantID, status int, body []byte) error {
	base := messaging.ErrDeliveryFailed().
		WithDetail("status", status).
		WithDetail("response", string(body))

	if status == http.StatusUnauthorized {
		log.Printf("🔑 Genesys API returned 401 for tenant %s, invalidating token", tenantID)
		_ = a.tokens.Invalidate(ctx, tenantID, messaging.PlatformGenesys)
		return messaging.NewDeliveryError(messaging.FailureTransient, base)
	}

	return messaging.NewDeliveryError(messaging.ClassifyHTTPStatus(status), base)
}

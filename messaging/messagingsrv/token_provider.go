package messagingsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

var _ messaging.TokenProvider = (*AuthTokenProvider)(nil)

// AuthTokenProvider obtiene tokens de acceso del credential provider externo
// y los cachea en memoria hasta cerca de su expiración. Un 401 del proveedor
// downstream debe invalidar el token para forzar un refresh en el siguiente
// intento.
type AuthTokenProvider struct {
	baseURL     string
	httpClient  *http.Client
	tokenBuffer time.Duration

	mu    sync.RWMutex
	cache map[string]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func NewAuthTokenProvider(cfg config.AuthServiceConfig) *AuthTokenProvider {
	return &AuthTokenProvider{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		tokenBuffer: cfg.TokenBuffer,
		cache:       make(map[string]cachedToken),
	}
}

func tokenCacheKey(tenantID kernel.TenantID, platform messaging.Platform) string {
	return tenantID.String() + ":" + string(platform)
}

// GetToken retorna un token vigente, del cache o del credential provider
func (p *AuthTokenProvider) GetToken(ctx context.Context, tenantID kernel.TenantID, platform messaging.Platform) (string, error) {
	key := tokenCacheKey(tenantID, platform)

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()

	if ok && time.Now().Before(cached.expiresAt) {
		return cached.token, nil
	}

	return p.fetch(ctx, tenantID, platform)
}

// Invalidate descarta el token cacheado de un tenant/plataforma
func (p *AuthTokenProvider) Invalidate(ctx context.Context, tenantID kernel.TenantID, platform messaging.Platform) error {
	p.mu.Lock()
	delete(p.cache, tokenCacheKey(tenantID, platform))
	p.mu.Unlock()

	log.Printf("♻️  Invalidated %s token for tenant %s", platform, tenantID)
	return nil
}

func (p *AuthTokenProvider) fetch(ctx context.Context, tenantID kernel.TenantID, platform messaging.Platform) (string, error) {
	url := fmt.Sprintf("%s/api/v1/tokens/%s/%s", p.baseURL, tenantID.String(), platform)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", messaging.ErrProviderAuth().
			WithDetail("tenant_id", tenantID.String()).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", messaging.ErrProviderAuth().
			WithDetail("tenant_id", tenantID.String()).
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", messaging.ErrProviderAuth().WithDetail("reason", "empty access token")
	}

	expiresAt := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).Add(-p.tokenBuffer)

	p.mu.Lock()
	p.cache[tokenCacheKey(tenantID, platform)] = cachedToken{
		token:     tr.AccessToken,
		expiresAt: expiresAt,
	}
	p.mu.Unlock()

	return tr.AccessToken, nil
}

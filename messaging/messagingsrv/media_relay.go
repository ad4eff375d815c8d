package messagingsrv

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/transform"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// maxMediaBytes limita el tamaño de media aceptado (100 MB, el tope de WhatsApp)
const maxMediaBytes = 100 << 20

// MediaRelayService descarga media de la plataforma origen y la relocaliza en
// storage durable, retornando una URL estable. Los fallos no detienen el
// mensaje: el caller degrada a entrega sin media.
type MediaRelayService struct {
	store      messaging.ObjectStore
	source     messaging.MediaSource
	httpClient *http.Client
}

func NewMediaRelayService(store messaging.ObjectStore, source messaging.MediaSource, timeout time.Duration) *MediaRelayService {
	return &MediaRelayService{
		store:      store,
		source:     source,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RelayFromWhatsApp descarga media de WhatsApp por su media ID (la URL real
// requiere resolución con bearer token) y la sube al storage
func (m *MediaRelayService) RelayFromWhatsApp(ctx context.Context, tenantID kernel.TenantID, mediaID string, filename string) (*messaging.MediaContent, error) {
	data, contentType, err := m.source.FetchMedia(ctx, tenantID, mediaID)
	if err != nil {
		return nil, messaging.ErrMediaRelayFailed().
			WithDetail("media_id", mediaID).
			WithCause(err)
	}

	return m.stash(ctx, tenantID, data, contentType, filename)
}

// RelayFromURL descarga media desde una URL pública (los adjuntos de Genesys
// llegan con URL directa) y la sube al storage
func (m *MediaRelayService) RelayFromURL(ctx context.Context, tenantID kernel.TenantID, sourceURL, contentType, filename string) (*messaging.MediaContent, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return nil, messaging.ErrMediaRelayFailed().WithCause(err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, messaging.ErrMediaRelayFailed().
			WithDetail("url", sourceURL).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, messaging.ErrMediaRelayFailed().
			WithDetail("url", sourceURL).
			WithDetail("status", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, messaging.ErrMediaRelayFailed().WithCause(err)
	}

	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}

	return m.stash(ctx, tenantID, data, contentType, filename)
}

func (m *MediaRelayService) stash(ctx context.Context, tenantID kernel.TenantID, data []byte, contentType, filename string) (*messaging.MediaContent, error) {
	if len(data) == 0 {
		return nil, messaging.ErrMediaRelayFailed().WithDetail("reason", "empty media body")
	}

	now := time.Now().UTC()
	path := fmt.Sprintf("%s/%04d/%02d/%s.%s",
		tenantID.String(), now.Year(), now.Month(), uuid.New().String(),
		transform.ExtensionFor(contentType))

	url, err := m.store.PutObject(ctx, path, data, contentType)
	if err != nil {
		return nil, messaging.ErrMediaRelayFailed().
			WithDetail("path", path).
			WithCause(err)
	}

	log.Printf("📦 Relayed media for tenant %s: %s (%d bytes)", tenantID, path, len(data))

	return &messaging.MediaContent{
		URL:         url,
		ContentType: contentType,
		Filename:    filename,
	}, nil
}

package genesys

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx/errxfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/messaging/messagingsrv"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// ----------------------------------------------------------------------------
// Stubs
// ----------------------------------------------------------------------------

type publishRecorder struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newPublishRecorder() *publishRecorder {
	return &publishRecorder{published: make(map[string][][]byte)}
}

func (q *publishRecorder) Publish(ctx context.Context, queue string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[queue] = append(q.published[queue], body)
	return nil
}

func (q *publishRecorder) Requeue(ctx context.Context, queue string, d messaging.QueueDelivery) error {
	return nil
}

func (q *publishRecorder) ScheduleRetry(ctx context.Context, queue string, d messaging.QueueDelivery, delay time.Duration) error {
	return nil
}

func (q *publishRecorder) DeadLetter(ctx context.Context, queue string, letter messaging.DeadLetter) error {
	return nil
}

func (q *publishRecorder) Pop(ctx context.Context, queue string, timeout time.Duration) (*messaging.QueueDelivery, error) {
	return nil, nil
}

func (q *publishRecorder) Ack(ctx context.Context, queue string, d messaging.QueueDelivery) error {
	return nil
}

func (q *publishRecorder) RecoverPending(ctx context.Context, queue string) (int64, error) {
	return 0, nil
}

func (q *publishRecorder) Depth(ctx context.Context, queue string) (int64, error) { return 0, nil }
func (q *publishRecorder) DeadLetterDepth(ctx context.Context, queue string) (int64, error) {
	return 0, nil
}
func (q *publishRecorder) Ping(ctx context.Context) error { return nil }

func (q *publishRecorder) total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, bodies := range q.published {
		n += len(bodies)
	}
	return n
}

type stubResolver struct {
	routing *messaging.TenantRouting
}

func (r *stubResolver) ResolveByConversation(ctx context.Context, id kernel.ConversationID) (kernel.TenantID, error) {
	return r.routing.TenantID, nil
}

func (r *stubResolver) ResolveByIntegration(ctx context.Context, id kernel.IntegrationID) (kernel.TenantID, error) {
	return r.routing.TenantID, nil
}

func (r *stubResolver) ResolveByPhoneNumber(ctx context.Context, id kernel.PhoneNumberID) (kernel.TenantID, error) {
	return r.routing.TenantID, nil
}

func (r *stubResolver) GetRouting(ctx context.Context, tenantID kernel.TenantID) (*messaging.TenantRouting, error) {
	return r.routing, nil
}

func (r *stubResolver) Invalidate(ctx context.Context, tenantID kernel.TenantID) error {
	return nil
}

type stubObjectStore struct{}

func (s *stubObjectStore) PutObject(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	return "https://media.example.com/" + path, nil
}

type stubMediaSource struct{}

func (s *stubMediaSource) FetchMedia(ctx context.Context, tenantID kernel.TenantID, mediaID string) ([]byte, string, error) {
	return []byte("x"), "image/jpeg", nil
}

const testSecret = "genesys-secret"

func newTestApp(queue messaging.MessageQueue) *fiber.App {
	routing := &messaging.TenantRouting{
		TenantID:      kernel.NewTenantID("t1"),
		PhoneNumberID: kernel.NewPhoneNumberID("phone-1"),
		IntegrationID: kernel.NewIntegrationID("int-1"),
		WebhookSecret: testSecret,
		IsActive:      true,
	}

	resolver := &stubResolver{routing: routing}
	mediaRelay := messagingsrv.NewMediaRelayService(&stubObjectStore{}, &stubMediaSource{}, time.Second)
	processor := messagingsrv.NewGenesysProcessor(resolver, mediaRelay, queue, config.MimeConvertToDocument)

	app := fiber.New(fiber.Config{
		ErrorHandler: errxfiber.FiberErrorHandler(),
	})
	RegisterRoutes(app, NewWebhookHandler(config.GenesysConfig{Region: "us-east-1"}, resolver, processor))
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signatureHeader string) (int, messaging.WebhookAckResponse) {
	t.Helper()

	req := httptest.NewRequest("POST", "/webhook/genesys", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signatureHeader != "" {
		req.Header.Set("X-Hub-Signature-256", signatureHeader)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var ack messaging.WebhookAckResponse
	if resp.StatusCode == fiber.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &ack); err != nil {
			t.Fatalf("ack not parseable: %v", err)
		}
	}
	return resp.StatusCode, ack
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func agentMessageBody(t *testing.T, messageID string) []byte {
	t.Helper()
	body, err := json.Marshal(messaging.GenesysEvent{
		ID:             "evt-1",
		ConversationID: "conv-1",
		Type:           "Text",
		Direction:      "Outbound",
		Text:           "buenas tardes",
		Channel: messaging.GenesysChannel{
			MessageID: messageID,
			To:        &messaging.GenesysParty{ID: "5215512345678"},
		},
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return body
}

// ----------------------------------------------------------------------------
// Tests
// ----------------------------------------------------------------------------

func TestHandleWebhookHealthCheck(t *testing.T) {
	queue := newPublishRecorder()
	app := newTestApp(queue)

	// La sonda de Genesys no lleva firma ni tenant: se responde sin tocar nada
	status, ack := postWebhook(t, app, []byte(`{"id":"hc-1","type":"HealthCheck"}`), "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if ack.Status != "healthy" {
		t.Errorf("expected healthy ack, got %q", ack.Status)
	}
	if queue.total() != 0 {
		t.Error("health check must not enqueue anything")
	}
}

func TestHandleWebhookFiltersEcho(t *testing.T) {
	queue := newPublishRecorder()
	app := newTestApp(queue)

	// Genesys reenvía nuestras propias inyecciones con el wamid como messageId
	status, ack := postWebhook(t, app, agentMessageBody(t, "wamid.ABC123"), "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if ack.Status != "filtered" {
		t.Errorf("expected filtered ack, got %q", ack.Status)
	}
	if queue.total() != 0 {
		t.Error("echo must not re-enter the pipeline")
	}
}

func TestHandleWebhookRejectsInvalidSignature(t *testing.T) {
	queue := newPublishRecorder()
	app := newTestApp(queue)

	body := agentMessageBody(t, "g-msg-1")
	mac := hmac.New(sha256.New, []byte("wrong-secret"))
	mac.Write(body)
	forged := "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	status, _ := postWebhook(t, app, body, forged)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if queue.total() != 0 {
		t.Error("unverified webhook must not enqueue anything")
	}
}

func TestHandleWebhookRejectsMissingSignature(t *testing.T) {
	queue := newPublishRecorder()
	app := newTestApp(queue)

	status, _ := postWebhook(t, app, agentMessageBody(t, "g-msg-1"), "")
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if queue.total() != 0 {
		t.Error("unsigned webhook must not enqueue anything")
	}
}

func TestHandleWebhookAcceptsValidSignature(t *testing.T) {
	queue := newPublishRecorder()
	app := newTestApp(queue)

	body := agentMessageBody(t, "g-msg-1")
	status, ack := postWebhook(t, app, body, sign(body))
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if ack.Status != "received" {
		t.Errorf("expected received ack, got %q", ack.Status)
	}
}

func TestHandleWebhookRejectsMalformedPayload(t *testing.T) {
	queue := newPublishRecorder()
	app := newTestApp(queue)

	status, _ := postWebhook(t, app, []byte("{not json"), "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if queue.total() != 0 {
		t.Error("malformed payload must not enqueue anything")
	}
}

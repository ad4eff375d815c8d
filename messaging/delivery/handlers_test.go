package delivery

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// ============================================================================
// Stubs
// ============================================================================

type stubGenesysSender struct {
	injectCalls  int
	receiptCalls int
	injectResp   *messaging.GenesysInjectResponse
	err          error
	lastReceipt  messaging.GenesysReceiptRequest
}

func (s *stubGenesysSender) InjectMessage(ctx context.Context, tenantID kernel.TenantID, integrationID kernel.IntegrationID, msg messaging.GenesysInboundMessage) (*messaging.GenesysInjectResponse, error) {
	s.injectCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.injectResp, nil
}

func (s *stubGenesysSender) SendReceipt(ctx context.Context, tenantID kernel.TenantID, integrationID kernel.IntegrationID, receipt messaging.GenesysReceiptRequest) error {
	s.receiptCalls++
	s.lastReceipt = receipt
	return s.err
}

type stubWhatsAppSender struct {
	sendCalls     int
	markReadCalls int
	lastTyping    bool
	wamid         kernel.MessageID
	err           error
}

func (s *stubWhatsAppSender) SendMessage(ctx context.Context, tenantID kernel.TenantID, phoneNumberID kernel.PhoneNumberID, payload messaging.WabaPayload) (kernel.MessageID, error) {
	s.sendCalls++
	if s.err != nil {
		return "", s.err
	}
	return s.wamid, nil
}

func (s *stubWhatsAppSender) MarkMessageRead(ctx context.Context, tenantID kernel.TenantID, phoneNumberID kernel.PhoneNumberID, messageID kernel.MessageID, typing bool) error {
	s.markReadCalls++
	s.lastTyping = typing
	return s.err
}

type stubDedupe struct {
	delivered map[string]bool
	marked    []string
}

func newStubDedupe() *stubDedupe {
	return &stubDedupe{delivered: make(map[string]bool)}
}

func (s *stubDedupe) IsDelivered(ctx context.Context, tenantID kernel.TenantID, messageID kernel.MessageID) (bool, error) {
	return s.delivered[messageID.String()], nil
}

func (s *stubDedupe) MarkDelivered(ctx context.Context, tenantID kernel.TenantID, messageID kernel.MessageID) error {
	s.delivered[messageID.String()] = true
	s.marked = append(s.marked, messageID.String())
	return nil
}

type stubConversations struct {
	mappings map[string]string // waId -> conversationId
	lastMsgs map[string]string // conversationId -> messageId
	deleted  []string
}

func newStubConversations() *stubConversations {
	return &stubConversations{
		mappings: make(map[string]string),
		lastMsgs: make(map[string]string),
	}
}

func (s *stubConversations) GetConversation(ctx context.Context, tenantID kernel.TenantID, waID string) (kernel.ConversationID, error) {
	return kernel.NewConversationID(s.mappings[waID]), nil
}

func (s *stubConversations) GetTenantByConversation(ctx context.Context, conversationID kernel.ConversationID) (kernel.TenantID, error) {
	return "", messaging.ErrTenantNotResolved()
}

func (s *stubConversations) SaveMapping(ctx context.Context, tenantID kernel.TenantID, waID string, conversationID kernel.ConversationID) error {
	s.mappings[waID] = conversationID.String()
	return nil
}

func (s *stubConversations) DeleteByConversation(ctx context.Context, conversationID kernel.ConversationID) error {
	s.deleted = append(s.deleted, conversationID.String())
	return nil
}

func (s *stubConversations) SaveLastCustomerMessage(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID, messageID kernel.MessageID) error {
	s.lastMsgs[conversationID.String()] = messageID.String()
	return nil
}

func (s *stubConversations) GetLastCustomerMessage(ctx context.Context, tenantID kernel.TenantID, conversationID kernel.ConversationID) (kernel.MessageID, error) {
	return kernel.NewMessageID(s.lastMsgs[conversationID.String()]), nil
}

func (s *stubConversations) SweepOrphans(ctx context.Context) (int, error) { return 0, nil }

// ============================================================================
// Inbound handler (hacia Genesys)
// ============================================================================

func inboundDispatchBody(t *testing.T) []byte {
	t.Helper()
	dispatch := messaging.InboundDispatch{
		TenantID:      "t1",
		IntegrationID: "int-1",
		WaID:          "5215512345678",
		Message: messaging.GenesysInboundMessage{
			Channel: messaging.GenesysInboundChannel{MessageID: "wamid.M1"},
			Type:    "Text",
			Text:    "hola",
		},
	}
	body, err := json.Marshal(dispatch)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestGenesysInboundHandlerSuccess(t *testing.T) {
	sender := &stubGenesysSender{
		injectResp: &messaging.GenesysInjectResponse{
			ID: "g-1",
			Conversation: &struct {
				ID string `json:"id"`
			}{ID: "conv-1"},
		},
	}
	dedupe := newStubDedupe()
	conversations := newStubConversations()
	handler := NewGenesysInboundHandler(sender, dedupe, conversations)

	if err := handler(context.Background(), inboundDispatchBody(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.injectCalls != 1 {
		t.Errorf("expected 1 inject call, got %d", sender.injectCalls)
	}
	if conversations.mappings["5215512345678"] != "conv-1" {
		t.Error("conversation mapping not saved after successful injection")
	}
	if conversations.lastMsgs["conv-1"] != "wamid.M1" {
		t.Error("last customer message not tracked")
	}
	if !dedupe.delivered["wamid.M1"] {
		t.Error("delivery not marked in dedupe window")
	}
}

func TestGenesysInboundHandlerSkipsDuplicates(t *testing.T) {
	sender := &stubGenesysSender{injectResp: &messaging.GenesysInjectResponse{ID: "g-1"}}
	dedupe := newStubDedupe()
	dedupe.delivered["wamid.M1"] = true
	handler := NewGenesysInboundHandler(sender, dedupe, newStubConversations())

	if err := handler(context.Background(), inboundDispatchBody(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.injectCalls != 0 {
		t.Error("duplicate delivery must not reach the sender")
	}
}

func TestGenesysInboundHandlerPropagatesClassification(t *testing.T) {
	senderErr := messaging.NewDeliveryError(messaging.FailurePermanent, messaging.ErrDeliveryFailed())
	sender := &stubGenesysSender{err: senderErr}
	handler := NewGenesysInboundHandler(sender, newStubDedupe(), newStubConversations())

	err := handler(context.Background(), inboundDispatchBody(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if messaging.ClassifyDelivery(err) != messaging.FailurePermanent {
		t.Errorf("classification lost: %v", messaging.ClassifyDelivery(err))
	}
}

func TestGenesysInboundHandlerUnparseable(t *testing.T) {
	handler := NewGenesysInboundHandler(&stubGenesysSender{}, newStubDedupe(), newStubConversations())

	err := handler(context.Background(), []byte("{broken"))
	if messaging.ClassifyDelivery(err) != messaging.FailureUnparseable {
		t.Errorf("expected unparseable classification, got %v", messaging.ClassifyDelivery(err))
	}
}

// ============================================================================
// Outbound handler (hacia WhatsApp)
// ============================================================================

func outboundDispatchBody(t *testing.T) []byte {
	t.Helper()
	dispatch := messaging.OutboundDispatch{
		TenantID:          "t1",
		PhoneNumberID:     "phone-1",
		CorrelationID:     "g-msg-1_att0",
		InternalMessageID: "g-msg-1",
		ConversationID:    "conv-1",
		Payload: messaging.WabaPayload{
			MessagingProduct: "whatsapp",
			To:               "5215512345678",
			Type:             "text",
			Text:             &messaging.WabaText{Body: "hola"},
		},
	}
	body, err := json.Marshal(dispatch)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestWhatsAppOutboundHandlerPublishesAck(t *testing.T) {
	sender := &stubWhatsAppSender{wamid: "wamid.NEW1"}
	dedupe := newStubDedupe()
	queue := newStubQueue()
	handler := NewWhatsAppOutboundHandler(sender, dedupe, queue)

	if err := handler(context.Background(), outboundDispatchBody(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acks := queue.published[messaging.QueueOutboundAck]
	if len(acks) != 1 {
		t.Fatalf("expected 1 ack, got %d", len(acks))
	}

	var record messaging.CorrelationRecord
	if err := json.Unmarshal(acks[0], &record); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if record.ExternalMessageID.String() != "wamid.NEW1" {
		t.Errorf("ack must carry the assigned wamid: %s", record.ExternalMessageID)
	}
	if record.InternalMessageID.String() != "g-msg-1" {
		t.Errorf("ack must carry the source message id: %s", record.InternalMessageID)
	}
	if !dedupe.delivered["g-msg-1"] {
		t.Error("delivery not marked in dedupe window")
	}
}

func TestWhatsAppOutboundHandlerSkipsDuplicates(t *testing.T) {
	sender := &stubWhatsAppSender{wamid: "wamid.NEW1"}
	dedupe := newStubDedupe()
	dedupe.delivered["g-msg-1"] = true
	handler := NewWhatsAppOutboundHandler(sender, dedupe, newStubQueue())

	if err := handler(context.Background(), outboundDispatchBody(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.sendCalls != 0 {
		t.Error("duplicate delivery must not reach the sender")
	}
}

func TestWhatsAppOutboundHandlerFailureDoesNotMark(t *testing.T) {
	senderErr := messaging.NewDeliveryError(messaging.FailureTransient, messaging.ErrDeliveryFailed())
	sender := &stubWhatsAppSender{err: senderErr}
	dedupe := newStubDedupe()
	queue := newStubQueue()
	handler := NewWhatsAppOutboundHandler(sender, dedupe, queue)

	if err := handler(context.Background(), outboundDispatchBody(t)); err == nil {
		t.Fatal("expected error")
	}
	if len(dedupe.marked) != 0 {
		t.Error("failed delivery must not enter the dedupe window")
	}
	if len(queue.published[messaging.QueueOutboundAck]) != 0 {
		t.Error("failed delivery must not publish an ack")
	}
}

// ============================================================================
// Status handler (hacia WhatsApp)
// ============================================================================

func statusDispatchBody(t *testing.T, status messaging.Status) []byte {
	t.Helper()
	dispatch := messaging.StatusDispatch{
		TenantID:      "t1",
		PhoneNumberID: "phone-1",
		MessageID:     "wamid.M1",
		Status:        status,
	}
	body, err := json.Marshal(dispatch)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestWhatsAppStatusHandler(t *testing.T) {
	tests := []struct {
		status       messaging.Status
		expectCalls  int
		expectTyping bool
	}{
		{messaging.StatusRead, 1, false},
		{messaging.StatusTyping, 1, true},
		{messaging.StatusDelivered, 0, false},
		{messaging.StatusSent, 0, false},
	}

	for _, tt := range tests {
		sender := &stubWhatsAppSender{}
		handler := NewWhatsAppStatusHandler(sender)

		if err := handler(context.Background(), statusDispatchBody(t, tt.status)); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.status, err)
		}
		if sender.markReadCalls != tt.expectCalls {
			t.Errorf("%s: expected %d mark-read calls, got %d", tt.status, tt.expectCalls, sender.markReadCalls)
		}
		if tt.expectCalls > 0 && sender.lastTyping != tt.expectTyping {
			t.Errorf("%s: typing flag = %v, expected %v", tt.status, sender.lastTyping, tt.expectTyping)
		}
	}
}

// ============================================================================
// Receipt handler (hacia Genesys)
// ============================================================================

func TestGenesysReceiptHandler(t *testing.T) {
	sender := &stubGenesysSender{}
	handler := NewGenesysReceiptHandler(sender)

	dispatch := messaging.ReceiptDispatch{
		TenantID:      "t1",
		IntegrationID: "int-1",
		Receipt: messaging.GenesysReceiptRequest{
			Channel:   messaging.GenesysInboundChannel{MessageID: "g-msg-1"},
			Status:    "Delivered",
			Direction: "Outbound",
		},
	}
	body, err := json.Marshal(dispatch)
	if err != nil {
		t.Fatal(err)
	}

	if err := handler(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.receiptCalls != 1 {
		t.Fatalf("expected 1 receipt call, got %d", sender.receiptCalls)
	}
	if sender.lastReceipt.Status != "Delivered" {
		t.Errorf("receipt status not propagated: %+v", sender.lastReceipt)
	}
}

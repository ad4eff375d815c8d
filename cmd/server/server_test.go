package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/craftable/errx/errxfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/config"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

// ----------------------------------------------------------------------------
// Stubs
// ----------------------------------------------------------------------------

type recordingResolver struct {
	invalidated []kernel.TenantID
}

func (r *recordingResolver) ResolveByConversation(ctx context.Context, id kernel.ConversationID) (kernel.TenantID, error) {
	return "", messaging.ErrTenantNotResolved()
}

func (r *recordingResolver) ResolveByIntegration(ctx context.Context, id kernel.IntegrationID) (kernel.TenantID, error) {
	return "", messaging.ErrTenantNotResolved()
}

func (r *recordingResolver) ResolveByPhoneNumber(ctx context.Context, id kernel.PhoneNumberID) (kernel.TenantID, error) {
	return "", messaging.ErrTenantNotResolved()
}

func (r *recordingResolver) GetRouting(ctx context.Context, tenantID kernel.TenantID) (*messaging.TenantRouting, error) {
	return nil, messaging.ErrTenantNotFound()
}

func (r *recordingResolver) Invalidate(ctx context.Context, tenantID kernel.TenantID) error {
	r.invalidated = append(r.invalidated, tenantID)
	return nil
}

type recordingDirectory struct {
	lastList messaging.ListTenantsRequest
	routings []messaging.TenantRouting
}

func (d *recordingDirectory) GetByTenantID(ctx context.Context, tenantID kernel.TenantID) (*messaging.TenantRouting, error) {
	return nil, messaging.ErrTenantNotFound()
}

func (d *recordingDirectory) GetByIntegrationID(ctx context.Context, integrationID kernel.IntegrationID) (*messaging.TenantRouting, error) {
	return nil, messaging.ErrTenantNotFound()
}

func (d *recordingDirectory) GetByPhoneNumberID(ctx context.Context, phoneNumberID kernel.PhoneNumberID) (*messaging.TenantRouting, error) {
	return nil, messaging.ErrTenantNotFound()
}

func (d *recordingDirectory) List(ctx context.Context, req messaging.ListTenantsRequest) (messaging.TenantRoutingListResponse, error) {
	d.lastList = req
	return messaging.TenantRoutingListResponse{Data: d.routings}, nil
}

func newInternalTestApp(resolver *recordingResolver, directory *recordingDirectory) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errxfiber.FiberErrorHandler(),
	})
	registerInternalRoutes(app, resolver, directory)
	return app
}

// ----------------------------------------------------------------------------
// Internal routes
// ----------------------------------------------------------------------------

func TestInternalInvalidateRoute(t *testing.T) {
	resolver := &recordingResolver{}
	app := newInternalTestApp(resolver, &recordingDirectory{})

	req := httptest.NewRequest("POST", "/internal/tenants/t1/invalidate", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(resolver.invalidated) != 1 || resolver.invalidated[0].String() != "t1" {
		t.Errorf("cache not invalidated: %v", resolver.invalidated)
	}
}

func TestInternalTenantsListPassesFilters(t *testing.T) {
	directory := &recordingDirectory{
		routings: []messaging.TenantRouting{{
			TenantID:      kernel.NewTenantID("t1"),
			PhoneNumberID: kernel.NewPhoneNumberID("phone-1"),
			IntegrationID: kernel.NewIntegrationID("int-1"),
			IsActive:      true,
		}},
	}
	app := newInternalTestApp(&recordingResolver{}, directory)

	req := httptest.NewRequest("GET", "/internal/tenants?page=2&page_size=10&is_active=true", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if directory.lastList.Page != 2 || directory.lastList.PageSize != 10 {
		t.Errorf("pagination not propagated: %+v", directory.lastList.PaginationOptions)
	}
	if directory.lastList.IsActive == nil || !*directory.lastList.IsActive {
		t.Errorf("is_active filter not propagated: %v", directory.lastList.IsActive)
	}

	var list messaging.TenantRoutingListResponse
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("response not parseable: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].TenantID.String() != "t1" {
		t.Errorf("routing list malformed: %+v", list.Data)
	}
}

func TestInternalTenantsListDefaults(t *testing.T) {
	directory := &recordingDirectory{}
	app := newInternalTestApp(&recordingResolver{}, directory)

	req := httptest.NewRequest("GET", "/internal/tenants", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if directory.lastList.Page != 1 || directory.lastList.PageSize != 20 {
		t.Errorf("unexpected pagination defaults: %+v", directory.lastList.PaginationOptions)
	}
	if directory.lastList.IsActive != nil {
		t.Errorf("is_active must default to unfiltered, got %v", *directory.lastList.IsActive)
	}
}

// ----------------------------------------------------------------------------
// Middleware
// ----------------------------------------------------------------------------

func newMiddlewareTestApp() *fiber.App {
	app := fiber.New()
	setupMiddleware(app, &config.Config{
		Server: config.ServerConfig{Environment: "test"},
	})
	app.Get("/payload", func(ctx *fiber.Ctx) error {
		return ctx.SendString(strings.Repeat("tenant routing entry\n", 200))
	})
	return app
}

func TestMiddlewareCompressesResponses(t *testing.T) {
	app := newMiddlewareTestApp()

	req := httptest.NewRequest("GET", "/payload", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Errorf("expected gzip response, got %q", resp.Header.Get("Content-Encoding"))
	}
}

func TestMiddlewareAllowsCrossOriginRequests(t *testing.T) {
	app := newMiddlewareTestApp()

	req := httptest.NewRequest("OPTIONS", "/payload", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight response missing Access-Control-Allow-Origin")
	}
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	app := newMiddlewareTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/payload", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("response missing X-Request-Id")
	}
}

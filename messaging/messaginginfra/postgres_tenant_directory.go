package messaginginfra

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/jmoiron/sqlx"
	"github.com/shabibmr/waba-xypr-sub002/messaging"
	"github.com/shabibmr/waba-xypr-sub002/pkg/kernel"
)

const routingColumns = `
	tenant_id, phone_number_id, integration_id,
	webhook_secret, app_secret, genesys_region, is_active`

// PostgresTenantDirectory implementación de PostgreSQL para TenantDirectory
type PostgresTenantDirectory struct {
	db *sqlx.DB
}

// NewPostgresTenantDirectory crea una nueva instancia del directorio de tenants
func NewPostgresTenantDirectory(db *sqlx.DB) messaging.TenantDirectory {
	return &PostgresTenantDirectory{
		db: db,
	}
}

// GetByTenantID busca el enrutamiento de un tenant por su ID
func (r *PostgresTenantDirectory) GetByTenantID(ctx context.Context, tenantID kernel.TenantID) (*messaging.TenantRouting, error) {
	query := `
		SELECT ` + routingColumns + `
		FROM tenant_routing
		WHERE tenant_id = $1`

	var routing messaging.TenantRouting
	err := r.db.GetContext(ctx, &routing, query, tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, messaging.ErrTenantNotFound().WithDetail("tenant_id", tenantID.String())
		}
		return nil, errx.Wrap(err, "failed to find tenant routing", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	return &routing, nil
}

// GetByIntegrationID busca el enrutamiento por el integration ID de Genesys
func (r *PostgresTenantDirectory) GetByIntegrationID(ctx context.Context, integrationID kernel.IntegrationID) (*messaging.TenantRouting, error) {
	query := `
		SELECT ` + routingColumns + `
		FROM tenant_routing
		WHERE integration_id = $1`

	var routing messaging.TenantRouting
	err := r.db.GetContext(ctx, &routing, query, integrationID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, messaging.ErrTenantNotFound().WithDetail("integration_id", integrationID.String())
		}
		return nil, errx.Wrap(err, "failed to find tenant by integration", errx.TypeInternal).
			WithDetail("integration_id", integrationID.String())
	}

	return &routing, nil
}

// GetByPhoneNumberID busca el enrutamiento por el phone number ID de WhatsApp
func (r *PostgresTenantDirectory) GetByPhoneNumberID(ctx context.Context, phoneNumberID kernel.PhoneNumberID) (*messaging.TenantRouting, error) {
	query := `
		SELECT ` + routingColumns + `
		FROM tenant_routing
		WHERE phone_number_id = $1`

	var routing messaging.TenantRouting
	err := r.db.GetContext(ctx, &routing, query, phoneNumberID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, messaging.ErrTenantNotFound().WithDetail("phone_number_id", phoneNumberID.String())
		}
		return nil, errx.Wrap(err, "failed to find tenant by phone number", errx.TypeInternal).
			WithDetail("phone_number_id", phoneNumberID.String())
	}

	return &routing, nil
}

// List lista los enrutamientos con paginación
func (r *PostgresTenantDirectory) List(ctx context.Context, req messaging.ListTenantsRequest) (messaging.TenantRoutingListResponse, error) {
	where := ""
	args := []any{}
	if req.IsActive != nil {
		where = "WHERE is_active = $1"
		args = append(args, *req.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM tenant_routing ` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return messaging.TenantRoutingListResponse{}, errx.Wrap(err, "failed to count tenant routings", errx.TypeInternal)
	}

	query := fmt.Sprintf(`
		SELECT `+routingColumns+`
		FROM tenant_routing %s
		ORDER BY tenant_id ASC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, req.PageSize, req.GetOffset())

	var routings []messaging.TenantRouting
	if err := r.db.SelectContext(ctx, &routings, query, args...); err != nil {
		return messaging.TenantRoutingListResponse{}, errx.Wrap(err, "failed to list tenant routings", errx.TypeInternal)
	}

	return storex.NewPaginated(routings, req.Page, req.PageSize, total), nil
}

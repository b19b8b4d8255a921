package repositories

import (
	"context"
	"errors"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LimitOverrideRepository stores per-tenant ceilings that take precedence
// over the plan values, for negotiated enterprise contracts.
type LimitOverrideRepository interface {
	Get(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.TenantLimitOverride, error)
	Upsert(ctx context.Context, override *models.TenantLimitOverride) error
	Delete(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error
}

type limitOverrideRepo struct {
	db Querier
}

func NewLimitOverrideRepo(db Querier) LimitOverrideRepository {
	return &limitOverrideRepo{db: db}
}

// Get returns nil, nil when no override exists for the pair.
func (r *limitOverrideRepo) Get(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.TenantLimitOverride, error) {
	query := `
		SELECT tenant_id, resource_kind, limit_value, created_at, updated_at
		FROM tenant_limit_overrides
		WHERE tenant_id = $1 AND resource_kind = $2
	`
	override := &models.TenantLimitOverride{}
	err := r.db.QueryRow(ctx, query, tenantID, kind).Scan(&override.TenantID, &override.ResourceKind, &override.LimitValue, &override.CreatedAt, &override.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return override, nil
}

func (r *limitOverrideRepo) Upsert(ctx context.Context, override *models.TenantLimitOverride) error {
	query := `
		INSERT INTO tenant_limit_overrides (tenant_id, resource_kind, limit_value, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (tenant_id, resource_kind)
		DO UPDATE SET limit_value = EXCLUDED.limit_value, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, override.TenantID, override.ResourceKind, override.LimitValue)
	return err
}

func (r *limitOverrideRepo) Delete(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error {
	query := `DELETE FROM tenant_limit_overrides WHERE tenant_id = $1 AND resource_kind = $2`
	_, err := r.db.Exec(ctx, query, tenantID, kind)
	return err
}

package repositories

import (
	"context"
	"errors"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UsageCounterRepository maintains per-tenant resource counters. TryReserveN
// is the single atomic primitive that closes the check-then-act window: two
// concurrent inserts at the ceiling cannot both claim the last slot.
type UsageCounterRepository interface {
	TryReserve(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, limit *int) (bool, error)
	TryReserveN(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, n int, limit *int) (bool, error)
	Release(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error
	ReleaseN(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, n int) error
	Get(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (int, error)
	Set(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, used int) error
	WithTx(tx pgx.Tx) UsageCounterRepository
}

type usageCounterRepo struct {
	db Querier
}

func NewUsageCounterRepo(db Querier) UsageCounterRepository {
	return &usageCounterRepo{db: db}
}

func (r *usageCounterRepo) WithTx(tx pgx.Tx) UsageCounterRepository {
	return &usageCounterRepo{db: tx}
}

func (r *usageCounterRepo) TryReserve(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, limit *int) (bool, error) {
	return r.TryReserveN(ctx, tenantID, kind, 1, limit)
}

// TryReserveN adds n to the counter iff the result stays within limit. A nil
// limit reserves unconditionally. Returns false when the slots were not
// granted.
func (r *usageCounterRepo) TryReserveN(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, n int, limit *int) (bool, error) {
	if n <= 0 {
		return false, nil
	}
	if limit == nil {
		query := `
			INSERT INTO tenant_usage AS tu (tenant_id, resource_kind, used, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (tenant_id, resource_kind)
			DO UPDATE SET used = tu.used + $3, updated_at = NOW()
		`
		_, err := r.db.Exec(ctx, query, tenantID, kind, n)
		return err == nil, err
	}
	// The insert arm covers the first reservation for the pair, so it must
	// respect the ceiling too.
	if n > *limit {
		return false, nil
	}
	query := `
		INSERT INTO tenant_usage AS tu (tenant_id, resource_kind, used, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, resource_kind)
		DO UPDATE SET used = tu.used + $3, updated_at = NOW()
		WHERE tu.used + $3 <= $4
	`
	tag, err := r.db.Exec(ctx, query, tenantID, kind, n, *limit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns one slot. The counter never goes below zero.
func (r *usageCounterRepo) Release(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error {
	return r.ReleaseN(ctx, tenantID, kind, 1)
}

func (r *usageCounterRepo) ReleaseN(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, n int) error {
	if n <= 0 {
		return nil
	}
	query := `
		UPDATE tenant_usage
		SET used = GREATEST(used - $3, 0), updated_at = NOW()
		WHERE tenant_id = $1 AND resource_kind = $2
	`
	_, err := r.db.Exec(ctx, query, tenantID, kind, n)
	return err
}

func (r *usageCounterRepo) Get(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (int, error) {
	query := `SELECT used FROM tenant_usage WHERE tenant_id = $1 AND resource_kind = $2`
	var used int
	err := r.db.QueryRow(ctx, query, tenantID, kind).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return used, err
}

// Set overwrites the counter with a freshly computed live count. Used by the
// reconciliation job to heal drift from crashed requests.
func (r *usageCounterRepo) Set(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, used int) error {
	query := `
		INSERT INTO tenant_usage (tenant_id, resource_kind, used, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, resource_kind)
		DO UPDATE SET used = EXCLUDED.used, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, tenantID, kind, used)
	return err
}

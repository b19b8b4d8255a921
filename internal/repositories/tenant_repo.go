package repositories

import (
	"context"
	"errors"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	ListActive(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	WithTx(tx pgx.Tx) TenantRepository
}

type tenantRepo struct {
	db Querier
}

func NewTenantRepo(db Querier) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) WithTx(tx pgx.Tx) TenantRepository {
	return &tenantRepo{db: tx}
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Subdomain, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTenantNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, subdomain, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.Subdomain, tenant.Status)
	return err
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT id, name, subdomain, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `
		SELECT id, name, subdomain, status, created_at, updated_at
		FROM tenants
		WHERE subdomain = $1
	`
	return scanTenant(r.db.QueryRow(ctx, query, subdomain))
}

func (r *tenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $1, subdomain = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, tenant.Name, tenant.Subdomain, tenant.Status, tenant.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTenantNotFound
	}
	return nil
}

func (r *tenantRepo) ListActive(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT id, name, subdomain, status, created_at, updated_at
		FROM tenants
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.Subdomain, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

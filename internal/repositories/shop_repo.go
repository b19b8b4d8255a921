package repositories

import (
	"context"
	"errors"
	"fmt"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ShopRepository interface {
	Create(ctx context.Context, shop *models.Shop) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Shop, error)
	GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*models.Shop, error)
	Update(ctx context.Context, shop *models.Shop) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Shop, error)
	CountActive(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error)
	SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error)
	RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error)
	WithTx(tx pgx.Tx) ShopRepository
}

type shopRepo struct {
	db Querier
}

func NewShopRepo(db Querier) ShopRepository {
	return &shopRepo{db: db}
}

func (r *shopRepo) WithTx(tx pgx.Tx) ShopRepository {
	return &shopRepo{db: tx}
}

const shopColumns = `id, tenant_id, name, slug, status, suspended_at, created_at, updated_at`

func scanShop(row pgx.Row) (*models.Shop, error) {
	shop := &models.Shop{}
	err := row.Scan(&shop.ID, &shop.TenantID, &shop.Name, &shop.Slug, &shop.Status, &shop.SuspendedAt, &shop.CreatedAt, &shop.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrShopNotFound
		}
		return nil, err
	}
	return shop, nil
}

func (r *shopRepo) Create(ctx context.Context, shop *models.Shop) error {
	var count int
	slugCheckQuery := `SELECT COUNT(*) FROM shops WHERE tenant_id = $1 AND slug = $2`
	err := r.db.QueryRow(ctx, slugCheckQuery, shop.TenantID, shop.Slug).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check slug uniqueness: %w", err)
	}
	if count > 0 {
		return models.ErrSlugTaken
	}

	if shop.ID == uuid.Nil {
		shop.ID = uuid.New()
	}
	query := `
		INSERT INTO shops (id, tenant_id, name, slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, shop.ID, shop.TenantID, shop.Name, shop.Slug, shop.Status)
	return err
}

func (r *shopRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Shop, error) {
	query := `
		SELECT ` + shopColumns + `
		FROM shops
		WHERE tenant_id = $1 AND id = $2
	`
	return scanShop(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *shopRepo) GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*models.Shop, error) {
	query := `
		SELECT ` + shopColumns + `
		FROM shops
		WHERE tenant_id = $1 AND slug = $2
	`
	return scanShop(r.db.QueryRow(ctx, query, tenantID, slug))
}

func (r *shopRepo) Update(ctx context.Context, shop *models.Shop) error {
	query := `
		UPDATE shops
		SET name = $1, slug = $2, updated_at = NOW()
		WHERE tenant_id = $3 AND id = $4
	`
	tag, err := r.db.Exec(ctx, query, shop.Name, shop.Slug, shop.TenantID, shop.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrShopNotFound
	}
	return nil
}

func (r *shopRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `DELETE FROM shops WHERE tenant_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrShopNotFound
	}
	return nil
}

func (r *shopRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Shop, error) {
	query := `
		SELECT ` + shopColumns + `
		FROM shops
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shops []*models.Shop
	for rows.Next() {
		shop := &models.Shop{}
		if err := rows.Scan(&shop.ID, &shop.TenantID, &shop.Name, &shop.Slug, &shop.Status, &shop.SuspendedAt, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func (r *shopRepo) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM shops WHERE tenant_id = $1 AND status = 'active'`
	var count int
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&count)
	return count, err
}

func (r *shopRepo) CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM shops WHERE tenant_id = $1 AND status = 'suspended'`
	var count int
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&count)
	return count, err
}

// SuspendNewest suspends up to n active shops, most recently created first.
// The ordering is total (id breaks created_at ties) so a rerun of the same
// downgrade picks the same shops.
func (r *shopRepo) SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	query := `
		UPDATE shops
		SET status = 'suspended', suspended_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM shops
			WHERE tenant_id = $1 AND status = 'active'
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`
	tag, err := r.db.Exec(ctx, query, tenantID, n)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// RestoreOldestSuspended reactivates up to n suspended shops in suspension
// order. Restoring an already active shop is a no-op by construction.
func (r *shopRepo) RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	query := `
		UPDATE shops
		SET status = 'active', suspended_at = NULL, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM shops
			WHERE tenant_id = $1 AND status = 'suspended'
			ORDER BY suspended_at ASC, id ASC
			LIMIT $2
		)
	`
	tag, err := r.db.Exec(ctx, query, tenantID, n)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role models.Role) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error)
	CountActive(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error)
	SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error)
	RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error)
	WithTx(tx pgx.Tx) UserRepository
}

type userRepo struct {
	db Querier
}

func NewUserRepo(db Querier) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx pgx.Tx) UserRepository {
	return &userRepo{db: tx}
}

const userColumns = `id, tenant_id, email, password_hash, first_name, last_name, role, status, suspended_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role, &user.Status, &user.SuspendedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	// Emails are unique across all tenants
	var count int
	emailCheckQuery := `SELECT COUNT(*) FROM users WHERE email = $1`
	err := r.db.QueryRow(ctx, emailCheckQuery, user.Email).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if count > 0 {
		return models.ErrEmailTaken
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, tenant_id, email, password_hash, first_name, last_name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, user.ID, user.TenantID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.Status)
	return err
}

func (r *userRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE tenant_id = $1 AND id = $2
	`
	return scanUser(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, status = $3, updated_at = NOW()
		WHERE tenant_id = $4 AND id = $5
	`
	_, err := r.db.Exec(ctx, query, user.FirstName, user.LastName, user.Status, user.TenantID, user.ID)
	return err
}

func (r *userRepo) UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role models.Role) error {
	query := `
		UPDATE users
		SET role = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	tag, err := r.db.Exec(ctx, query, role, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	query := `
		UPDATE users
		SET status = $1,
		    suspended_at = CASE WHEN $1 = 'suspended' THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	tag, err := r.db.Exec(ctx, query, status, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `DELETE FROM users WHERE tenant_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role, &user.Status, &user.SuspendedAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepo) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND status = 'active'`
	var count int
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&count)
	return count, err
}

func (r *userRepo) CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND role = 'owner' AND status = 'active'`
	var count int
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&count)
	return count, err
}

func (r *userRepo) CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND status = 'suspended'`
	var count int
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&count)
	return count, err
}

// SuspendNewest suspends up to n active users, most recently created first.
// Owners are never candidates, which keeps the last-active-owner invariant.
func (r *userRepo) SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	query := `
		UPDATE users
		SET status = 'suspended', suspended_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM users
			WHERE tenant_id = $1 AND status = 'active' AND role <> 'owner'
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

// RestoreOldestSuspended reactivates up to n suspended users in suspension
// order, so repeated upgrades bring people back the way they left.
func (r *userRepo) RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	query := `
		UPDATE users
		SET status = 'active', suspended_at = NULL, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM users
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

package repositories

import (
	"context"
	"errors"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PlanRepository interface {
	Create(ctx context.Context, plan *models.SubscriptionPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
	GetByCode(ctx context.Context, code string) (*models.SubscriptionPlan, error)
	ListActive(ctx context.Context) ([]*models.SubscriptionPlan, error)
}

type planRepo struct {
	db Querier
}

func NewPlanRepo(db Querier) PlanRepository {
	return &planRepo{db: db}
}

const planColumns = `id, code, name, max_users, max_shops, monthly_email_limit, allow_users_management, allow_roles_management, price_monthly, price_yearly, currency, is_active, created_at`

func scanPlan(row pgx.Row) (*models.SubscriptionPlan, error) {
	plan := &models.SubscriptionPlan{}
	err := row.Scan(&plan.ID, &plan.Code, &plan.Name, &plan.MaxUsers, &plan.MaxShops, &plan.MonthlyEmailLimit, &plan.AllowUsersManagement, &plan.AllowRolesManagement, &plan.PriceMonthly, &plan.PriceYearly, &plan.Currency, &plan.IsActive, &plan.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// Create inserts a catalog row. Existing codes are left untouched so the
// startup seed never rewrites a plan a subscription may already reference.
func (r *planRepo) Create(ctx context.Context, plan *models.SubscriptionPlan) error {
	query := `
		INSERT INTO subscription_plans (id, code, name, max_users, max_shops, monthly_email_limit, allow_users_management, allow_roles_management, price_monthly, price_yearly, currency, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (code) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, plan.ID, plan.Code, plan.Name, plan.MaxUsers, plan.MaxShops, plan.MonthlyEmailLimit, plan.AllowUsersManagement, plan.AllowRolesManagement, plan.PriceMonthly, plan.PriceYearly, plan.Currency, plan.IsActive)
	return err
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE id = $1
	`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

func (r *planRepo) GetByCode(ctx context.Context, code string) (*models.SubscriptionPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE code = $1
	`
	return scanPlan(r.db.QueryRow(ctx, query, code))
}

func (r *planRepo) ListActive(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE is_active = TRUE
		ORDER BY price_monthly ASC, code ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.SubscriptionPlan
	for rows.Next() {
		plan := &models.SubscriptionPlan{}
		if err := rows.Scan(&plan.ID, &plan.Code, &plan.Name, &plan.MaxUsers, &plan.MaxShops, &plan.MonthlyEmailLimit, &plan.AllowUsersManagement, &plan.AllowRolesManagement, &plan.PriceMonthly, &plan.PriceYearly, &plan.Currency, &plan.IsActive, &plan.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

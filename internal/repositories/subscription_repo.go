package repositories

import (
	"context"
	"errors"
	"time"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Subscription, error)
	GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	GetCurrentByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	ListDueScheduledDowngrades(ctx context.Context, asOf time.Time, limit int) ([]*models.Subscription, error)
	ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*models.Subscription, error)
	WithTx(tx pgx.Tx) SubscriptionRepository
}

type subscriptionRepo struct {
	db Querier
}

func NewSubscriptionRepo(db Querier) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) WithTx(tx pgx.Tx) SubscriptionRepository {
	return &subscriptionRepo{db: tx}
}

const subscriptionColumns = `id, tenant_id, plan_id, stripe_subscription_id, status, is_yearly, current_period_start, current_period_end, cancel_at_period_end, previous_plan_id, downgrade_target_plan_id, downgrade_scheduled_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.StripeSubscriptionID, &s.Status, &s.IsYearly, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.PreviousPlanID, &s.DowngradeTargetPlanID, &s.DowngradeScheduledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s, nil
}

// Create inserts the row and scans back the database-stamped timestamps.
// Update fences on updated_at, so the struct must carry the stored value.
func (r *subscriptionRepo) Create(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, tenant_id, plan_id, stripe_subscription_id, status, is_yearly, current_period_start, current_period_end, cancel_at_period_end, previous_plan_id, downgrade_target_plan_id, downgrade_scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		subscription.ID, subscription.TenantID, subscription.PlanID, subscription.StripeSubscriptionID,
		subscription.Status, subscription.IsYearly, subscription.CurrentPeriodStart, subscription.CurrentPeriodEnd,
		subscription.CancelAtPeriodEnd, subscription.PreviousPlanID, subscription.DowngradeTargetPlanID, subscription.DowngradeScheduledAt,
	).Scan(&subscription.CreatedAt, &subscription.UpdatedAt)
}

func (r *subscriptionRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1 AND id = $2
	`
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *subscriptionRepo) GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID))
}

// GetCurrentByTenant returns the newest non-cancelled row, so a
// pending_payment upgrade is visible next to the still-active plan.
func (r *subscriptionRepo) GetCurrentByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1 AND status IN ('active', 'pending_payment')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID))
}

func (r *subscriptionRepo) GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE stripe_subscription_id = $1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, stripeID))
}

// Update persists every mutable column, guarded by the row's previous
// updated_at. A zero row count means another writer got there first.
func (r *subscriptionRepo) Update(ctx context.Context, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, stripe_subscription_id = $2, status = $3, is_yearly = $4,
		    current_period_start = $5, current_period_end = $6, cancel_at_period_end = $7,
		    previous_plan_id = $8, downgrade_target_plan_id = $9, downgrade_scheduled_at = $10,
		    updated_at = NOW()
		WHERE tenant_id = $11 AND id = $12 AND updated_at = $13
	`
	tag, err := r.db.Exec(ctx, query,
		subscription.PlanID, subscription.StripeSubscriptionID, subscription.Status, subscription.IsYearly,
		subscription.CurrentPeriodStart, subscription.CurrentPeriodEnd, subscription.CancelAtPeriodEnd,
		subscription.PreviousPlanID, subscription.DowngradeTargetPlanID, subscription.DowngradeScheduledAt,
		subscription.TenantID, subscription.ID, subscription.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSubscriptionModified
	}
	return nil
}

func (r *subscriptionRepo) ListDueScheduledDowngrades(ctx context.Context, asOf time.Time, limit int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND downgrade_target_plan_id IS NOT NULL AND downgrade_scheduled_at <= $1
		ORDER BY downgrade_scheduled_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, asOf, limit)
}

func (r *subscriptionRepo) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'pending_payment' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, olderThan, limit)
}

func (r *subscriptionRepo) list(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		s := &models.Subscription{}
		if err := rows.Scan(&s.ID, &s.TenantID, &s.PlanID, &s.StripeSubscriptionID, &s.Status, &s.IsYearly, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.PreviousPlanID, &s.DowngradeTargetPlanID, &s.DowngradeScheduledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

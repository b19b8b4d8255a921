package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription status values. At most one non-cancelled row exists per
// tenant; pending_payment rows activate only through payment confirmation.
const (
	SubscriptionStatusActive         = "active"
	SubscriptionStatusPendingPayment = "pending_payment"
	SubscriptionStatusCancelled      = "cancelled"
)

type Subscription struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	TenantID              uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	PlanID                uuid.UUID  `json:"plan_id" db:"plan_id"`
	StripeSubscriptionID  *string    `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	Status                string     `json:"status" db:"status"`
	IsYearly              bool       `json:"is_yearly" db:"is_yearly"`
	CurrentPeriodStart    time.Time  `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd      time.Time  `json:"current_period_end" db:"current_period_end"`
	CancelAtPeriodEnd     bool       `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	PreviousPlanID        *uuid.UUID `json:"previous_plan_id" db:"previous_plan_id"`
	DowngradeTargetPlanID *uuid.UUID `json:"downgrade_target_plan_id" db:"downgrade_target_plan_id"`
	DowngradeScheduledAt  *time.Time `json:"downgrade_scheduled_at" db:"downgrade_scheduled_at"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

type TransitionPlanRequest struct {
	PlanID   uuid.UUID `json:"plan_id"`
	IsYearly bool      `json:"is_yearly"`
}

type ScheduleDowngradeRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
}

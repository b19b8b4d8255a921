package models

import (
	"time"

	"github.com/google/uuid"
)

// PlanCodeFree is the zero-price tier a tenant falls back to when no
// subscription row exists.
const PlanCodeFree = "free"

// SubscriptionPlan is a catalog row. A nil limit means the plan does not cap
// that resource. Prices are minor currency units (cents); rows are immutable
// once a subscription references them.
type SubscriptionPlan struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	Code                 string    `json:"code" db:"code"`
	Name                 string    `json:"name" db:"name"`
	MaxUsers             *int      `json:"max_users" db:"max_users"`
	MaxShops             *int      `json:"max_shops" db:"max_shops"`
	MonthlyEmailLimit    *int      `json:"monthly_email_limit" db:"monthly_email_limit"`
	AllowUsersManagement bool      `json:"allow_users_management" db:"allow_users_management"`
	AllowRolesManagement bool      `json:"allow_roles_management" db:"allow_roles_management"`
	PriceMonthly         int64     `json:"price_monthly" db:"price_monthly"`
	PriceYearly          int64     `json:"price_yearly" db:"price_yearly"`
	Currency             string    `json:"currency" db:"currency"`
	IsActive             bool      `json:"is_active" db:"is_active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// IsFree reports whether the plan costs nothing on either interval.
func (p *SubscriptionPlan) IsFree() bool {
	return p.PriceMonthly == 0 && p.PriceYearly == 0
}

// Price returns the charge for the chosen billing interval.
func (p *SubscriptionPlan) Price(yearly bool) int64 {
	if yearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

// LimitFor returns the plan ceiling for a resource kind. Callers validate the
// kind before consulting the plan.
func (p *SubscriptionPlan) LimitFor(kind ResourceKind) *int {
	switch kind {
	case ResourceUsers:
		return p.MaxUsers
	case ResourceShops:
		return p.MaxShops
	case ResourceEmails:
		return p.MonthlyEmailLimit
	}
	return nil
}

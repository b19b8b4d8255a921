package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies a plan-limited resource class.
type ResourceKind string

const (
	ResourceUsers  ResourceKind = "users"
	ResourceShops  ResourceKind = "shops"
	ResourceEmails ResourceKind = "emails"
)

// AllResourceKinds returns the resource classes subject to plan limits.
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{ResourceUsers, ResourceShops, ResourceEmails}
}

// IsValid reports whether k names a known resource class.
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceUsers, ResourceShops, ResourceEmails:
		return true
	}
	return false
}

// LimitStatus answers "can this tenant add one more of X?". A nil Limit means
// the effective plan does not cap the resource.
type LimitStatus struct {
	Resource      ResourceKind `json:"resource"`
	Current       int          `json:"current"`
	Limit         *int         `json:"limit"`
	CanAdd        bool         `json:"can_add"`
	IsCustomLimit bool         `json:"is_custom_limit"`
}

// TenantLimitOverride raises or lowers one resource ceiling for one tenant,
// taking precedence over the plan value. A nil LimitValue grants unlimited.
type TenantLimitOverride struct {
	TenantID     uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	ResourceKind ResourceKind `json:"resource_kind" db:"resource_kind"`
	LimitValue   *int         `json:"limit_value" db:"limit_value"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// TenantUsage is the per-tenant, per-resource counter row backing atomic slot
// reservation at insert time.
type TenantUsage struct {
	TenantID     uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	ResourceKind ResourceKind `json:"resource_kind" db:"resource_kind"`
	Used         int          `json:"used" db:"used"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Transition directions.
const (
	TransitionInitial   = "initial"
	TransitionUpgrade   = "upgrade"
	TransitionDowngrade = "downgrade"
	TransitionLateral   = "lateral"
)

// TransitionOutcome reports what a completed plan change did, including the
// exact number of resources suspended or restored. Payment-gated changes do
// not produce an outcome; they surface as *PaymentRequiredError instead.
type TransitionOutcome struct {
	Subscription   *Subscription `json:"subscription,omitempty"`
	PlanID         uuid.UUID     `json:"plan_id"`
	PlanCode       string        `json:"plan_code"`
	Direction      string        `json:"direction"`
	SuspendedShops int           `json:"suspended_shops"`
	SuspendedUsers int           `json:"suspended_users"`
	RestoredShops  int           `json:"restored_shops"`
	RestoredUsers  int           `json:"restored_users"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB represents a PostgreSQL JSONB column as a Go map.
type JSONB map[string]interface{}

// AuditEvent is an append-only record of a governance-relevant action: role
// changes, limit denials, suspensions, plan transitions. Rows are never
// updated or deleted, only archived.
type AuditEvent struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	ActorID      *uuid.UUID `json:"actor_id" db:"actor_id"`
	EventKind    string     `json:"event_kind" db:"event_kind"`
	ResourceKind string     `json:"resource_kind" db:"resource_kind"`
	BeforeCount  *int       `json:"before_count" db:"before_count"`
	AfterCount   *int       `json:"after_count" db:"after_count"`
	PlanCode     *string    `json:"plan_code" db:"plan_code"`
	Metadata     JSONB      `json:"metadata" db:"metadata"`
	Archived     bool       `json:"archived" db:"archived"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Event kinds recorded by the platform.
const (
	EventLimitDenied           = "LIMIT_DENIED"
	EventLimitReached          = "LIMIT_REACHED"
	EventPlanTransition        = "PLAN_TRANSITION"
	EventDowngradeScheduled    = "DOWNGRADE_SCHEDULED"
	EventResourceSuspended     = "RESOURCE_SUSPENDED"
	EventResourceRestored      = "RESOURCE_RESTORED"
	EventRoleChanged           = "ROLE_CHANGED"
	EventUserDeactivated       = "USER_DEACTIVATED"
	EventUserDeleted           = "USER_DELETED"
	EventPaymentConfirmed      = "PAYMENT_CONFIRMED"
	EventSubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
)

// AuditEventFilters narrows audit queries.
type AuditEventFilters struct {
	EventKind    *string    `json:"event_kind"`
	ResourceKind *string    `json:"resource_kind"`
	ActorID      *uuid.UUID `json:"actor_id"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Shop status values. Suspended shops stay visible but are excluded from
// limit counts and cannot serve traffic until restored.
const (
	ShopStatusActive    = "active"
	ShopStatusSuspended = "suspended"
)

type Shop struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	TenantID    uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name        string     `json:"name" db:"name"`
	Slug        string     `json:"slug" db:"slug"`
	Status      string     `json:"status" db:"status"`
	SuspendedAt *time.Time `json:"suspended_at" db:"suspended_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateShopRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type UpdateShopRequest struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

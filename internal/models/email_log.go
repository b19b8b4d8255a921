package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailSend records one campaign dispatch for quota accounting. Usage is the
// sum of RecipientCount over the current billing period; rows are never
// mutated after insert.
type EmailSend struct {
	ID             uuid.UUID `json:"id" db:"id"`
	TenantID       uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CampaignRef    string    `json:"campaign_ref" db:"campaign_ref"`
	RecipientCount int       `json:"recipient_count" db:"recipient_count"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
}

type ConsumeEmailQuotaRequest struct {
	CampaignRef    string `json:"campaign_ref"`
	RecipientCount int    `json:"recipient_count"`
}

package repositories

import (
	"context"
	"time"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EmailLogRepository interface {
	Create(ctx context.Context, send *models.EmailSend) error
	// SumRecipientsInWindow totals recipients over [from, to).
	SumRecipientsInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.EmailSend, error)
	WithTx(tx pgx.Tx) EmailLogRepository
}

type emailLogRepo struct {
	db Querier
}

func NewEmailLogRepo(db Querier) EmailLogRepository {
	return &emailLogRepo{db: db}
}

func (r *emailLogRepo) WithTx(tx pgx.Tx) EmailLogRepository {
	return &emailLogRepo{db: tx}
}

func (r *emailLogRepo) Create(ctx context.Context, send *models.EmailSend) error {
	if send.ID == uuid.Nil {
		send.ID = uuid.New()
	}
	query := `
		INSERT INTO email_sends (id, tenant_id, campaign_ref, recipient_count, sent_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.Exec(ctx, query, send.ID, send.TenantID, send.CampaignRef, send.RecipientCount)
	return err
}

func (r *emailLogRepo) SumRecipientsInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(recipient_count), 0)
		FROM email_sends
		WHERE tenant_id = $1 AND sent_at >= $2 AND sent_at < $3
	`
	var total int
	err := r.db.QueryRow(ctx, query, tenantID, from, to).Scan(&total)
	return total, err
}

func (r *emailLogRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.EmailSend, error) {
	query := `
		SELECT id, tenant_id, campaign_ref, recipient_count, sent_at
		FROM email_sends
		WHERE tenant_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sends []*models.EmailSend
	for rows.Next() {
		send := &models.EmailSend{}
		if err := rows.Scan(&send.ID, &send.TenantID, &send.CampaignRef, &send.RecipientCount, &send.SentAt); err != nil {
			return nil, err
		}
		sends = append(sends, send)
	}
	return sends, rows.Err()
}

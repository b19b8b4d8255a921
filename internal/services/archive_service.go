package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const archiveBatchSize = 1000

// ArchiveService exports aged audit events to object storage as JSONL and
// flags them archived. The table stays append-only; archival only marks rows.
type ArchiveService interface {
	ArchiveAuditEvents(ctx context.Context, olderThan time.Duration) (int, error)
	EnsureBucket(ctx context.Context) error
}

type archiveService struct {
	client    *minio.Client
	bucket    string
	auditRepo repositories.AuditEventRepository
}

func NewArchiveService(endpoint, accessKey, secretKey string, useSSL bool, bucket string, auditRepo repositories.AuditEventRepository) (ArchiveService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &archiveService{client: client, bucket: bucket, auditRepo: auditRepo}, nil
}

func (s *archiveService) EnsureBucket(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !found {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// ArchiveAuditEvents exports events older than the retention window, one
// object per tenant per run. Rows are marked archived only after their
// object is stored, so a failed upload retries next run.
func (s *archiveService) ArchiveAuditEvents(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	events, err := s.auditRepo.ListUnarchivedBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	byTenant := make(map[uuid.UUID][]*models.AuditEvent)
	for _, event := range events {
		byTenant[event.TenantID] = append(byTenant[event.TenantID], event)
	}

	archived := 0
	for tenantID, tenantEvents := range byTenant {
		var buf bytes.Buffer
		ids := make([]uuid.UUID, 0, len(tenantEvents))
		for _, event := range tenantEvents {
			line, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to encode audit event for archive")
				continue
			}
			buf.Write(line)
			buf.WriteByte('\n')
			ids = append(ids, event.ID)
		}
		if len(ids) == 0 {
			continue
		}

		now := time.Now().UTC()
		objectName := fmt.Sprintf("audit/%s/%s/%d.jsonl", tenantID, now.Format("2006/01"), now.UnixNano())
		_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
			ContentType: "application/x-ndjson",
		})
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("audit archive upload failed")
			continue
		}

		if err := s.auditRepo.MarkArchived(ctx, ids); err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to mark audit events archived")
			continue
		}
		archived += len(ids)
	}
	return archived, nil
}

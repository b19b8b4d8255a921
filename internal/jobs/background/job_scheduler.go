package background

import (
	"context"
	"sync"
	"time"

	"shopsuite/internal/config"
	"shopsuite/internal/repositories"
	"shopsuite/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const reconcileBatchSize = 500

// JobScheduler runs the periodic maintenance loops: scheduled downgrades,
// usage counter reconciliation, audit archival and stale checkout expiry.
// Every job is a singleton so overlapping runs reschedule instead of piling
// up.
type JobScheduler struct {
	scheduler       gocron.Scheduler
	subscriptionSvc services.SubscriptionService
	limitSvc        services.LimitService
	archiveSvc      services.ArchiveService
	tenantRepo      repositories.TenantRepository
	cfg             config.JobsConfig

	jobs map[string]gocron.Job
	mu   sync.RWMutex
}

func NewJobScheduler(
	subscriptionSvc services.SubscriptionService,
	limitSvc services.LimitService,
	archiveSvc services.ArchiveService,
	tenantRepo repositories.TenantRepository,
	cfg config.JobsConfig,
) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:       scheduler,
		subscriptionSvc: subscriptionSvc,
		limitSvc:        limitSvc,
		archiveSvc:      archiveSvc,
		tenantRepo:      tenantRepo,
		cfg:             cfg,
		jobs:            make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	log.Info().Int("jobs", len(js.jobs)).Msg("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	log.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	specs := []struct {
		name     string
		interval time.Duration
		task     func(context.Context)
	}{
		{"apply-scheduled-downgrades", js.cfg.DowngradeInterval, js.applyScheduledDowngrades},
		{"reconcile-usage-counters", js.cfg.ReconcileInterval, js.reconcileUsageCounters},
		{"archive-audit-events", js.cfg.ArchiveInterval, js.archiveAuditEvents},
		{"expire-stale-pending-payments", js.cfg.PendingPaymentInterval, js.expireStalePendingPayments},
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	for _, spec := range specs {
		job, err := js.scheduler.NewJob(
			gocron.DurationJob(spec.interval),
			gocron.NewTask(spec.task, context.Background()),
			gocron.WithName(spec.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
		js.jobs[spec.name] = job
	}
	return nil
}

// applyScheduledDowngrades moves tenants whose downgrade date has passed onto
// their scheduled plan.
func (js *JobScheduler) applyScheduledDowngrades(ctx context.Context) {
	applied, err := js.subscriptionSvc.ApplyDueDowngrades(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled downgrade run failed")
		return
	}
	if applied > 0 {
		log.Info().Int("applied", applied).Msg("scheduled downgrades applied")
	}
}

// reconcileUsageCounters overwrites every active tenant's reservation
// counters with live counts. The counters are maintained inline on each
// create and delete; this run repairs any drift left by crashes between the
// reservation and the insert.
func (js *JobScheduler) reconcileUsageCounters(ctx context.Context) {
	offset := 0
	reconciled := 0

	for {
		tenants, err := js.tenantRepo.ListActive(ctx, reconcileBatchSize, offset)
		if err != nil {
			log.Error().Err(err).Msg("usage reconciliation: tenant listing failed")
			return
		}
		if len(tenants) == 0 {
			break
		}

		semaphore := make(chan struct{}, 5)
		var wg sync.WaitGroup
		for _, tenant := range tenants {
			wg.Add(1)
			go func(tenantID uuid.UUID) {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				if err := js.limitSvc.ReconcileTenant(ctx, tenantID); err != nil {
					log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("usage reconciliation failed for tenant")
				}
			}(tenant.ID)
		}
		wg.Wait()

		reconciled += len(tenants)
		offset += reconcileBatchSize
	}

	log.Debug().Int("tenants", reconciled).Msg("usage counters reconciled")
}

// archiveAuditEvents moves aged audit events into object storage.
func (js *JobScheduler) archiveAuditEvents(ctx context.Context) {
	archived, err := js.archiveSvc.ArchiveAuditEvents(ctx, js.cfg.AuditRetention)
	if err != nil {
		log.Error().Err(err).Msg("audit archival run failed")
		return
	}
	if archived > 0 {
		log.Info().Int("archived", archived).Msg("audit events archived")
	}
}

// expireStalePendingPayments voids checkouts that were never completed so
// tenants can start a fresh transition.
func (js *JobScheduler) expireStalePendingPayments(ctx context.Context) {
	expired, err := js.subscriptionSvc.ExpireStalePendingPayments(ctx, js.cfg.PendingPaymentExpiry)
	if err != nil {
		log.Error().Err(err).Msg("pending payment expiry run failed")
		return
	}
	if expired > 0 {
		log.Info().Int("expired", expired).Msg("stale pending payments expired")
	}
}

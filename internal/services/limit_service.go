package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopsuite/internal/caching"
	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const limitStatusTTL = 30 * time.Second

// LimitService answers capacity questions and hands out slots. The advisory
// CheckLimit is for dashboards and pre-flight checks; ReserveSlot is the
// authoritative gate creation paths go through.
type LimitService interface {
	CheckLimit(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.LimitStatus, error)
	CheckAllLimits(ctx context.Context, tenantID uuid.UUID) ([]*models.LimitStatus, error)

	// ReserveSlot atomically claims one slot or returns *models.LimitError.
	ReserveSlot(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, kind models.ResourceKind) error
	// ReleaseSlot refunds a slot after a delete or a failed insert.
	ReleaseSlot(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error

	// ConsumeEmailQuota reserves capacity for one campaign dispatch and
	// records it. Returns the post-consumption snapshot.
	ConsumeEmailQuota(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, req *models.ConsumeEmailQuotaRequest) (*models.LimitStatus, error)

	// EffectivePlan resolves the tenant's plan; tenants without a
	// subscription run on the free tier.
	EffectivePlan(ctx context.Context, tenantID uuid.UUID) (*models.SubscriptionPlan, *models.Subscription, error)

	// ReconcileTenant overwrites the reservation counters with live counts.
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID) error
}

type limitService struct {
	planRepo     repositories.PlanRepository
	subRepo      repositories.SubscriptionRepository
	userRepo     repositories.UserRepository
	shopRepo     repositories.ShopRepository
	emailRepo    repositories.EmailLogRepository
	usageRepo    repositories.UsageCounterRepository
	overrideRepo repositories.LimitOverrideRepository
	cache        caching.CacheService
	auditSvc     AuditService
}

func NewLimitService(
	planRepo repositories.PlanRepository,
	subRepo repositories.SubscriptionRepository,
	userRepo repositories.UserRepository,
	shopRepo repositories.ShopRepository,
	emailRepo repositories.EmailLogRepository,
	usageRepo repositories.UsageCounterRepository,
	overrideRepo repositories.LimitOverrideRepository,
	cache caching.CacheService,
	auditSvc AuditService,
) LimitService {
	return &limitService{
		planRepo:     planRepo,
		subRepo:      subRepo,
		userRepo:     userRepo,
		shopRepo:     shopRepo,
		emailRepo:    emailRepo,
		usageRepo:    usageRepo,
		overrideRepo: overrideRepo,
		cache:        cache,
		auditSvc:     auditSvc,
	}
}

func (s *limitService) EffectivePlan(ctx context.Context, tenantID uuid.UUID) (*models.SubscriptionPlan, *models.Subscription, error) {
	sub, err := s.subRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, models.ErrSubscriptionNotFound) {
			return nil, nil, fmt.Errorf("failed to load subscription: %w", err)
		}
		sub = nil
	}

	if sub == nil {
		plan, err := s.getPlanByCode(ctx, models.PlanCodeFree)
		if err != nil {
			return nil, nil, err
		}
		return plan, nil, nil
	}

	plan, err := s.getPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return plan, sub, nil
}

func (s *limitService) getPlan(ctx context.Context, planID uuid.UUID) (*models.SubscriptionPlan, error) {
	if cached, err := s.cache.GetPlan(ctx, planID); err == nil && cached != nil {
		return cached, nil
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetPlan(ctx, plan, time.Hour); err != nil {
		log.Debug().Err(err).Msg("plan cache write failed")
	}
	return plan, nil
}

func (s *limitService) getPlanByCode(ctx context.Context, code string) (*models.SubscriptionPlan, error) {
	return s.planRepo.GetByCode(ctx, code)
}

// billingWindow returns [start, end) for email accounting. Tenants without a
// subscription are measured over the calendar month.
func billingWindow(sub *models.Subscription, now time.Time) (time.Time, time.Time) {
	if sub != nil {
		return sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// effectiveLimit resolves the ceiling for a resource: a tenant override wins
// over the plan value. Returns the plan code for audit context.
func (s *limitService) effectiveLimit(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*int, bool, *models.Subscription, string, error) {
	plan, sub, err := s.EffectivePlan(ctx, tenantID)
	if err != nil {
		return nil, false, nil, "", err
	}

	override, err := s.overrideRepo.Get(ctx, tenantID, kind)
	if err != nil {
		return nil, false, nil, "", fmt.Errorf("failed to load limit override: %w", err)
	}
	if override != nil {
		return override.LimitValue, true, sub, plan.Code, nil
	}
	return plan.LimitFor(kind), false, sub, plan.Code, nil
}

func (s *limitService) currentCount(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, sub *models.Subscription) (int, error) {
	switch kind {
	case models.ResourceUsers:
		return s.userRepo.CountActive(ctx, tenantID)
	case models.ResourceShops:
		return s.shopRepo.CountActive(ctx, tenantID)
	case models.ResourceEmails:
		from, to := billingWindow(sub, time.Now().UTC())
		return s.emailRepo.SumRecipientsInWindow(ctx, tenantID, from, to)
	}
	return 0, models.ErrUnknownResourceKind
}

func (s *limitService) CheckLimit(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.LimitStatus, error) {
	if !kind.IsValid() {
		return nil, models.ErrUnknownResourceKind
	}

	if cached, err := s.cache.GetLimitStatus(ctx, tenantID, kind); err == nil && cached != nil {
		return cached, nil
	}

	limit, isCustom, sub, _, err := s.effectiveLimit(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}

	current, err := s.currentCount(ctx, tenantID, kind, sub)
	if err != nil {
		return nil, err
	}

	status := &models.LimitStatus{
		Resource:      kind,
		Current:       current,
		Limit:         limit,
		CanAdd:        limit == nil || current < *limit,
		IsCustomLimit: isCustom,
	}

	if err := s.cache.SetLimitStatus(ctx, tenantID, status, limitStatusTTL); err != nil {
		log.Debug().Err(err).Msg("limit status cache write failed")
	}
	return status, nil
}

func (s *limitService) CheckAllLimits(ctx context.Context, tenantID uuid.UUID) ([]*models.LimitStatus, error) {
	kinds := models.AllResourceKinds()
	statuses := make([]*models.LimitStatus, 0, len(kinds))
	for _, kind := range kinds {
		status, err := s.CheckLimit(ctx, tenantID, kind)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *limitService) ReserveSlot(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, kind models.ResourceKind) error {
	if kind != models.ResourceUsers && kind != models.ResourceShops {
		return models.ErrUnknownResourceKind
	}

	limit, _, _, planCode, err := s.effectiveLimit(ctx, tenantID, kind)
	if err != nil {
		return err
	}

	granted, err := s.usageRepo.TryReserve(ctx, tenantID, kind, limit)
	if err != nil {
		return fmt.Errorf("failed to reserve %s slot: %w", kind, err)
	}
	if !granted {
		current, countErr := s.usageRepo.Get(ctx, tenantID, kind)
		if countErr != nil {
			current = 0
		}
		lim := 0
		if limit != nil {
			lim = *limit
		}
		s.auditSvc.RecordLimitDenied(ctx, tenantID, actorID, kind, current, lim, planCode)
		log.Info().
			Str("tenant_id", tenantID.String()).
			Str("resource", string(kind)).
			Int("current", current).
			Int("limit", lim).
			Msg("slot reservation denied")
		return &models.LimitError{Resource: kind, Current: current, Limit: lim}
	}

	if err := s.cache.InvalidateTenantLimits(ctx, tenantID); err != nil {
		log.Debug().Err(err).Msg("limit cache invalidation failed")
	}
	return nil
}

func (s *limitService) ReleaseSlot(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error {
	if err := s.usageRepo.Release(ctx, tenantID, kind); err != nil {
		return fmt.Errorf("failed to release %s slot: %w", kind, err)
	}
	if err := s.cache.InvalidateTenantLimits(ctx, tenantID); err != nil {
		log.Debug().Err(err).Msg("limit cache invalidation failed")
	}
	return nil
}

func (s *limitService) ConsumeEmailQuota(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, req *models.ConsumeEmailQuotaRequest) (*models.LimitStatus, error) {
	if req.RecipientCount <= 0 {
		return nil, fmt.Errorf("recipient_count must be positive")
	}

	limit, isCustom, sub, planCode, err := s.effectiveLimit(ctx, tenantID, models.ResourceEmails)
	if err != nil {
		return nil, err
	}

	granted, err := s.usageRepo.TryReserveN(ctx, tenantID, models.ResourceEmails, req.RecipientCount, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve email quota: %w", err)
	}
	if !granted {
		from, to := billingWindow(sub, time.Now().UTC())
		used, sumErr := s.emailRepo.SumRecipientsInWindow(ctx, tenantID, from, to)
		if sumErr != nil {
			used = 0
		}
		lim := 0
		if limit != nil {
			lim = *limit
		}
		s.auditSvc.RecordLimitDenied(ctx, tenantID, actorID, models.ResourceEmails, used, lim, planCode)
		return nil, &models.LimitError{Resource: models.ResourceEmails, Current: used, Limit: lim}
	}

	send := &models.EmailSend{
		TenantID:       tenantID,
		CampaignRef:    req.CampaignRef,
		RecipientCount: req.RecipientCount,
	}
	if err := s.emailRepo.Create(ctx, send); err != nil {
		// Refund the reservation so the counter does not drift upward.
		if relErr := s.usageRepo.ReleaseN(ctx, tenantID, models.ResourceEmails, req.RecipientCount); relErr != nil {
			log.Error().Err(relErr).Str("tenant_id", tenantID.String()).Msg("email quota refund failed")
		}
		return nil, fmt.Errorf("failed to record email send: %w", err)
	}

	used, err := s.usageRepo.Get(ctx, tenantID, models.ResourceEmails)
	if err != nil {
		return nil, err
	}

	if limit != nil && used >= *limit {
		s.auditSvc.Record(ctx, &models.AuditEvent{
			TenantID:     tenantID,
			ActorID:      actorID,
			EventKind:    models.EventLimitReached,
			ResourceKind: string(models.ResourceEmails),
			BeforeCount:  &used,
			AfterCount:   &used,
			PlanCode:     &planCode,
			Metadata:     models.JSONB{"limit": *limit},
		})
	}

	if err := s.cache.InvalidateTenantLimits(ctx, tenantID); err != nil {
		log.Debug().Err(err).Msg("limit cache invalidation failed")
	}

	return &models.LimitStatus{
		Resource:      models.ResourceEmails,
		Current:       used,
		Limit:         limit,
		CanAdd:        limit == nil || used < *limit,
		IsCustomLimit: isCustom,
	}, nil
}

// ReconcileTenant recomputes counters from source-of-truth counts. Heals
// drift left by crashed requests between reserve and insert.
func (s *limitService) ReconcileTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, sub, err := s.EffectivePlan(ctx, tenantID)
	if err != nil {
		return err
	}

	users, err := s.userRepo.CountActive(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.usageRepo.Set(ctx, tenantID, models.ResourceUsers, users); err != nil {
		return err
	}

	shops, err := s.shopRepo.CountActive(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to count shops: %w", err)
	}
	if err := s.usageRepo.Set(ctx, tenantID, models.ResourceShops, shops); err != nil {
		return err
	}

	from, to := billingWindow(sub, time.Now().UTC())
	emails, err := s.emailRepo.SumRecipientsInWindow(ctx, tenantID, from, to)
	if err != nil {
		return fmt.Errorf("failed to sum email sends: %w", err)
	}
	if err := s.usageRepo.Set(ctx, tenantID, models.ResourceEmails, emails); err != nil {
		return err
	}

	if err := s.cache.InvalidateTenantLimits(ctx, tenantID); err != nil {
		log.Debug().Err(err).Msg("limit cache invalidation failed")
	}
	return nil
}

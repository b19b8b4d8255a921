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

const transitionBatchSize = 100

// SubscriptionService runs the plan state machine. Paid activations always
// pass through a checkout session and only become active when the payment
// webhook confirms; downgrades apply immediately and suspend whatever exceeds
// the new ceilings. Suspend/restore and the subscription write share one
// transaction so a crash cannot leave the tenant half-transitioned.
type SubscriptionService interface {
	GetCurrent(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, *models.SubscriptionPlan, error)
	TransitionPlan(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, req *models.TransitionPlanRequest) (*models.TransitionOutcome, error)

	// ConfirmPayment activates a pending subscription after the provider
	// reports a completed checkout. Safe to replay.
	ConfirmPayment(ctx context.Context, tenantID, subscriptionID uuid.UUID, stripeSubscriptionID string) error

	// HandleProviderCancellation reverts a tenant to the free tier after the
	// provider reports its subscription deleted (the paid period ran out).
	HandleProviderCancellation(ctx context.Context, stripeSubscriptionID string) error

	CancelSubscription(ctx context.Context, tenantID, actorID uuid.UUID) (*models.Subscription, error)
	ReactivateSubscription(ctx context.Context, tenantID, actorID uuid.UUID) (*models.Subscription, error)

	ScheduleDowngrade(ctx context.Context, tenantID, actorID uuid.UUID, req *models.ScheduleDowngradeRequest) (*models.Subscription, error)
	ApplyDueDowngrades(ctx context.Context) (int, error)
	ExpireStalePendingPayments(ctx context.Context, olderThan time.Duration) (int, error)
}

type subscriptionService struct {
	db           repositories.Database
	subRepo      repositories.SubscriptionRepository
	planRepo     repositories.PlanRepository
	userRepo     repositories.UserRepository
	shopRepo     repositories.ShopRepository
	usageRepo    repositories.UsageCounterRepository
	overrideRepo repositories.LimitOverrideRepository
	cache        caching.CacheService
	stripeSvc    StripeService
	auditSvc     AuditService
}

func NewSubscriptionService(
	db repositories.Database,
	subRepo repositories.SubscriptionRepository,
	planRepo repositories.PlanRepository,
	userRepo repositories.UserRepository,
	shopRepo repositories.ShopRepository,
	usageRepo repositories.UsageCounterRepository,
	overrideRepo repositories.LimitOverrideRepository,
	cache caching.CacheService,
	stripeSvc StripeService,
	auditSvc AuditService,
) SubscriptionService {
	return &subscriptionService{
		db:           db,
		subRepo:      subRepo,
		planRepo:     planRepo,
		userRepo:     userRepo,
		shopRepo:     shopRepo,
		usageRepo:    usageRepo,
		overrideRepo: overrideRepo,
		cache:        cache,
		stripeSvc:    stripeSvc,
		auditSvc:     auditSvc,
	}
}

func (s *subscriptionService) GetCurrent(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, *models.SubscriptionPlan, error) {
	sub, err := s.subRepo.GetCurrentByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			plan, planErr := s.planRepo.GetByCode(ctx, models.PlanCodeFree)
			return nil, plan, planErr
		}
		return nil, nil, err
	}
	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return sub, plan, nil
}

func (s *subscriptionService) TransitionPlan(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, req *models.TransitionPlanRequest) (*models.TransitionOutcome, error) {
	target, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, models.ErrPlanInactive
	}

	current, err := s.subRepo.GetCurrentByTenant(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, models.ErrSubscriptionNotFound) {
			return nil, err
		}
		current = nil
	}
	if current != nil && current.Status == models.SubscriptionStatusPendingPayment {
		return nil, models.ErrPendingPaymentExists
	}

	var fromPlan *models.SubscriptionPlan
	if current != nil {
		fromPlan, err = s.planRepo.GetByID(ctx, current.PlanID)
		if err != nil {
			return nil, err
		}
		if current.PlanID == target.ID && current.IsYearly == req.IsYearly {
			return &models.TransitionOutcome{
				Subscription: current,
				PlanID:       target.ID,
				PlanCode:     target.Code,
				Direction:    models.TransitionLateral,
			}, nil
		}
	}

	// Monthly price is the canonical comparator between plans regardless of
	// the requested billing interval.
	currentPrice := int64(0)
	if fromPlan != nil {
		currentPrice = fromPlan.PriceMonthly
	}
	if target.PriceMonthly > currentPrice {
		// Checkout needs someone to complete it. Unattended callers (jobs,
		// webhook fallbacks) must never open a session.
		if actorID == nil {
			return nil, models.ErrPaymentRequired
		}
		return nil, s.startCheckout(ctx, tenantID, actorID, current, target, req.IsYearly)
	}

	direction := models.TransitionDowngrade
	switch {
	case current == nil:
		direction = models.TransitionInitial
	case target.PriceMonthly == currentPrice:
		direction = models.TransitionLateral
	}
	return s.applyTransition(ctx, tenantID, actorID, current, fromPlan, target, req.IsYearly, direction)
}

// startCheckout persists a pending_payment row, opens a provider checkout
// session and reports the gate as a PaymentRequiredError carrying the
// session URL. The tenant keeps its current entitlements until
// ConfirmPayment.
func (s *subscriptionService) startCheckout(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, current *models.Subscription, target *models.SubscriptionPlan, isYearly bool) error {
	now := time.Now().UTC()
	pending := &models.Subscription{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		PlanID:             target.ID,
		Status:             models.SubscriptionStatusPendingPayment,
		IsYearly:           isYearly,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd(now, isYearly),
	}
	if current != nil {
		prev := current.PlanID
		pending.PreviousPlanID = &prev
	}
	if err := s.subRepo.Create(ctx, pending); err != nil {
		return err
	}

	var email string
	if actorID != nil {
		if actor, err := s.userRepo.GetByID(ctx, tenantID, *actorID); err == nil {
			email = actor.Email
		}
	}

	session, err := s.stripeSvc.CreateCheckoutSession(ctx, &CheckoutParams{
		TenantID:       tenantID,
		SubscriptionID: pending.ID,
		PlanCode:       target.Code,
		AmountMinor:    target.Price(isYearly),
		Currency:       target.Currency,
		IsYearly:       isYearly,
		CustomerEmail:  email,
	})
	if err != nil {
		pending.Status = models.SubscriptionStatusCancelled
		if updErr := s.subRepo.Update(ctx, pending); updErr != nil {
			log.Error().Err(updErr).Str("tenant_id", tenantID.String()).Msg("failed to void pending subscription after checkout error")
		}
		return fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &models.PaymentRequiredError{
		PlanCode:    target.Code,
		CheckoutURL: session.URL,
	}
}

// suspendable is satisfied by the user and shop repositories; the rebalance
// step treats both resource classes identically.
type suspendable interface {
	CountActive(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error)
	SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error)
	RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error)
}

// rebalance brings a resource class in line with the new ceiling: suspends
// the newest resources above it, or restores the oldest suspended ones into
// remaining headroom. A nil limit restores everything. Returns suspended
// count, restored count and the resulting active count.
func rebalance(ctx context.Context, repo suspendable, tenantID uuid.UUID, limit *int) (int, int, int, error) {
	active, err := repo.CountActive(ctx, tenantID)
	if err != nil {
		return 0, 0, 0, err
	}

	if limit != nil && active > *limit {
		suspended, err := repo.SuspendNewest(ctx, tenantID, active-*limit)
		if err != nil {
			return 0, 0, 0, err
		}
		return suspended, 0, active - suspended, nil
	}

	idle, err := repo.CountSuspended(ctx, tenantID)
	if err != nil {
		return 0, 0, 0, err
	}
	if idle == 0 {
		return 0, 0, active, nil
	}
	headroom := idle
	if limit != nil && *limit-active < headroom {
		headroom = *limit - active
	}
	if headroom <= 0 {
		return 0, 0, active, nil
	}
	restored, err := repo.RestoreOldestSuspended(ctx, tenantID, headroom)
	if err != nil {
		return 0, 0, 0, err
	}
	return 0, restored, active + restored, nil
}

// effectiveCeiling mirrors the limit checker's precedence: a tenant override
// beats the plan value.
func (s *subscriptionService) effectiveCeiling(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, plan *models.SubscriptionPlan) (*int, error) {
	override, err := s.overrideRepo.Get(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	if override != nil {
		return override.LimitValue, nil
	}
	return plan.LimitFor(kind), nil
}

// applyTransition performs an immediate (non-payment) plan change: suspend or
// restore resources against the target ceilings, rewrite the subscription row
// and sync the reservation counters, all in one transaction.
func (s *subscriptionService) applyTransition(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, current *models.Subscription, fromPlan, target *models.SubscriptionPlan, isYearly bool, direction string) (*models.TransitionOutcome, error) {
	userLimit, err := s.effectiveCeiling(ctx, tenantID, models.ResourceUsers, target)
	if err != nil {
		return nil, err
	}
	shopLimit, err := s.effectiveCeiling(ctx, tenantID, models.ResourceShops, target)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txUsers := s.userRepo.WithTx(tx)
	txShops := s.shopRepo.WithTx(tx)
	txSubs := s.subRepo.WithTx(tx)
	txUsage := s.usageRepo.WithTx(tx)

	suspendedUsers, restoredUsers, activeUsers, err := rebalance(ctx, txUsers, tenantID, userLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rebalance users: %w", err)
	}
	suspendedShops, restoredShops, activeShops, err := rebalance(ctx, txShops, tenantID, shopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rebalance shops: %w", err)
	}

	now := time.Now().UTC()
	var sub *models.Subscription
	if current == nil {
		sub = &models.Subscription{
			ID:                 uuid.New(),
			TenantID:           tenantID,
			PlanID:             target.ID,
			Status:             models.SubscriptionStatusActive,
			IsYearly:           isYearly,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   periodEnd(now, isYearly),
		}
		if err := txSubs.Create(ctx, sub); err != nil {
			return nil, err
		}
	} else {
		sub = current
		prev := current.PlanID
		sub.PreviousPlanID = &prev
		sub.PlanID = target.ID
		sub.IsYearly = isYearly
		sub.DowngradeTargetPlanID = nil
		sub.DowngradeScheduledAt = nil
		sub.CancelAtPeriodEnd = false
		if target.IsFree() {
			// Free tier has no billing anchor; restart the usage window.
			sub.CurrentPeriodStart = now
			sub.CurrentPeriodEnd = periodEnd(now, isYearly)
		}
		if err := txSubs.Update(ctx, sub); err != nil {
			return nil, err
		}
	}

	if err := txUsage.Set(ctx, tenantID, models.ResourceUsers, activeUsers); err != nil {
		return nil, err
	}
	if err := txUsage.Set(ctx, tenantID, models.ResourceShops, activeShops); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit plan transition: %w", err)
	}

	if target.IsFree() && current != nil && current.StripeSubscriptionID != nil {
		if err := s.stripeSvc.CancelSubscription(ctx, *current.StripeSubscriptionID, true); err != nil {
			log.Error().Err(err).
				Str("tenant_id", tenantID.String()).
				Str("stripe_subscription_id", *current.StripeSubscriptionID).
				Msg("provider cancellation failed, needs manual follow-up")
		}
	}

	outcome := &models.TransitionOutcome{
		Subscription:   sub,
		PlanID:         target.ID,
		PlanCode:       target.Code,
		Direction:      direction,
		SuspendedUsers: suspendedUsers,
		SuspendedShops: suspendedShops,
		RestoredUsers:  restoredUsers,
		RestoredShops:  restoredShops,
	}

	fromCode := ""
	if fromPlan != nil {
		fromCode = fromPlan.Code
	}
	s.auditSvc.RecordTransition(ctx, tenantID, actorID, outcome, fromCode)
	s.recordRebalanceEvents(ctx, tenantID, actorID, target.Code, models.ResourceUsers, suspendedUsers, restoredUsers, activeUsers)
	s.recordRebalanceEvents(ctx, tenantID, actorID, target.Code, models.ResourceShops, suspendedShops, restoredShops, activeShops)

	if err := s.cache.InvalidateTenantLimits(ctx, tenantID); err != nil {
		log.Debug().Err(err).Msg("limit cache invalidation failed")
	}
	return outcome, nil
}

func (s *subscriptionService) recordRebalanceEvents(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, planCode string, kind models.ResourceKind, suspended, restored, active int) {
	if suspended > 0 {
		before := active + suspended
		s.auditSvc.Record(ctx, &models.AuditEvent{
			TenantID:     tenantID,
			ActorID:      actorID,
			EventKind:    models.EventResourceSuspended,
			ResourceKind: string(kind),
			BeforeCount:  &before,
			AfterCount:   &active,
			PlanCode:     &planCode,
		})
	}
	if restored > 0 {
		before := active - restored
		s.auditSvc.Record(ctx, &models.AuditEvent{
			TenantID:     tenantID,
			ActorID:      actorID,
			EventKind:    models.EventResourceRestored,
			ResourceKind: string(kind),
			BeforeCount:  &before,
			AfterCount:   &active,
			PlanCode:     &planCode,
		})
	}
}

func (s *subscriptionService) ConfirmPayment(ctx context.Context, tenantID, subscriptionID uuid.UUID, stripeSubscriptionID string) error {
	pending, err := s.subRepo.GetByID(ctx, tenantID, subscriptionID)
	if err != nil {
		return err
	}
	if pending.Status == models.SubscriptionStatusActive {
		return nil // replayed webhook
	}
	if pending.Status != models.SubscriptionStatusPendingPayment {
		return models.ErrCheckoutExpired
	}

	target, err := s.planRepo.GetByID(ctx, pending.PlanID)
	if err != nil {
		return err
	}
	userLimit, err := s.effectiveCeiling(ctx, tenantID, models.ResourceUsers, target)
	if err != nil {
		return err
	}
	shopLimit, err := s.effectiveCeiling(ctx, tenantID, models.ResourceShops, target)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txUsers := s.userRepo.WithTx(tx)
	txShops := s.shopRepo.WithTx(tx)
	txSubs := s.subRepo.WithTx(tx)
	txUsage := s.usageRepo.WithTx(tx)

	direction := models.TransitionInitial
	fromCode := ""
	prevActive, err := txSubs.GetActiveByTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, models.ErrSubscriptionNotFound) {
		return err
	}
	if err == nil {
		direction = models.TransitionUpgrade
		if fromPlan, planErr := s.planRepo.GetByID(ctx, prevActive.PlanID); planErr == nil {
			fromCode = fromPlan.Code
		}
		prev := prevActive.PlanID
		pending.PreviousPlanID = &prev
		prevActive.Status = models.SubscriptionStatusCancelled
		if err := txSubs.Update(ctx, prevActive); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	pending.Status = models.SubscriptionStatusActive
	if stripeSubscriptionID != "" {
		pending.StripeSubscriptionID = &stripeSubscriptionID
	}
	pending.CurrentPeriodStart = now
	pending.CurrentPeriodEnd = periodEnd(now, pending.IsYearly)
	pending.DowngradeTargetPlanID = nil
	pending.DowngradeScheduledAt = nil
	pending.CancelAtPeriodEnd = false
	if err := txSubs.Update(ctx, pending); err != nil {
		return err
	}

	_, restoredUsers, activeUsers, err := rebalance(ctx, txUsers, tenantID, userLimit)
	if err != nil {
		return fmt.Errorf("failed to rebalance users: %w", err)
	}
	_, restoredShops, activeShops, err := rebalance(ctx, txShops, tenantID, shopLimit)
	if err != nil {
		return fmt.Errorf("failed to rebalance shops: %w", err)
	}
	if err := txUsage.Set(ctx, tenantID, models.ResourceUsers, activeUsers); err != nil {
		return err
	}
	if err := txUsage.Set(ctx, tenantID, models.ResourceShops, activeShops); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment confirmation: %w", err)
	}

	outcome := &models.TransitionOutcome{
		Subscription:  pending,
		PlanID:        target.ID,
		PlanCode:      target.Code,
		Direction:     direction,
		RestoredUsers: restoredUsers,
		RestoredShops: restoredShops,
	}
	s.auditSvc.Record(ctx, &models.AuditEvent{
		TenantID:  tenantID,
		EventKind: models.EventPaymentConfirmed,
		PlanCode:  &target.Code,
		Metadata:  models.JSONB{"stripe_subscription_id": stripeSubscriptionID, "subscription_id": subscriptionID.String()},
	})
	s.auditSvc.RecordTransition(ctx, tenantID, nil, outcome, fromCode)
	s.recordRebalanceEvents(ctx, tenantID, nil, target.Code, models.ResourceUsers, 0, restoredUsers, activeUsers)
	s.recordRebalanceEvents(ctx, tenantID, nil, target.Code, models.ResourceShops, 0, restoredShops, activeShops)

	if err := s.cache.InvalidateTenantLimits(ctx, tenantID); err != nil {
		log.Debug().Err(err).Msg("limit cache invalidation failed")
	}
	return nil
}

// HandleProviderCancellation lands when a cancelled paid period actually runs
// out on the provider side. The tenant falls back to the free tier through
// the normal downgrade path, so over-ceiling resources get suspended.
// Unknown references are dropped: the row may belong to a checkout that was
// expired locally, or the event may be a replay.
func (s *subscriptionService) HandleProviderCancellation(ctx context.Context, stripeSubscriptionID string) error {
	sub, err := s.subRepo.GetByStripeID(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			log.Debug().
				Str("stripe_subscription_id", stripeSubscriptionID).
				Msg("provider cancellation for unknown subscription")
			return nil
		}
		return err
	}
	if sub.Status != models.SubscriptionStatusActive {
		return nil
	}

	// The provider side is already gone; drop the reference so the free
	// transition does not issue a second cancel against it.
	sub.StripeSubscriptionID = nil
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return err
	}

	free, err := s.planRepo.GetByCode(ctx, models.PlanCodeFree)
	if err != nil {
		return err
	}

	s.auditSvc.Record(ctx, &models.AuditEvent{
		TenantID:  sub.TenantID,
		EventKind: models.EventSubscriptionCancelled,
		Metadata: models.JSONB{
			"reason":                 "provider_cancelled",
			"stripe_subscription_id": stripeSubscriptionID,
		},
	})

	if sub.PlanID == free.ID {
		return nil
	}
	_, err = s.TransitionPlan(ctx, sub.TenantID, nil, &models.TransitionPlanRequest{PlanID: free.ID})
	return err
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, tenantID, actorID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.subRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			return nil, models.ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}

	sub.CancelAtPeriodEnd = true
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if sub.StripeSubscriptionID != nil {
		if err := s.stripeSvc.CancelSubscription(ctx, *sub.StripeSubscriptionID, true); err != nil {
			log.Error().Err(err).
				Str("tenant_id", tenantID.String()).
				Msg("provider cancellation failed, needs manual follow-up")
		}
	}

	s.auditSvc.Record(ctx, &models.AuditEvent{
		TenantID:  tenantID,
		ActorID:   &actorID,
		EventKind: models.EventSubscriptionCancelled,
		Metadata:  models.JSONB{"at_period_end": true},
	})
	return sub, nil
}

func (s *subscriptionService) ReactivateSubscription(ctx context.Context, tenantID, actorID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.subRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			return nil, models.ErrNoActiveSubscription
		}
		return nil, err
	}
	if !sub.CancelAtPeriodEnd {
		return sub, nil
	}

	sub.CancelAtPeriodEnd = false
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if sub.StripeSubscriptionID != nil {
		if err := s.stripeSvc.ResumeSubscription(ctx, *sub.StripeSubscriptionID); err != nil {
			log.Error().Err(err).
				Str("tenant_id", tenantID.String()).
				Msg("provider resume failed, needs manual follow-up")
		}
	}
	return sub, nil
}

func (s *subscriptionService) ScheduleDowngrade(ctx context.Context, tenantID, actorID uuid.UUID, req *models.ScheduleDowngradeRequest) (*models.Subscription, error) {
	target, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive {
		return nil, models.ErrPlanInactive
	}

	sub, err := s.subRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			return nil, models.ErrNoActiveSubscription
		}
		return nil, err
	}
	fromPlan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if target.PriceMonthly >= fromPlan.PriceMonthly {
		return nil, models.ErrNotADowngrade
	}

	applyAt := sub.CurrentPeriodEnd
	sub.DowngradeTargetPlanID = &target.ID
	sub.DowngradeScheduledAt = &applyAt
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, &models.AuditEvent{
		TenantID:  tenantID,
		ActorID:   &actorID,
		EventKind: models.EventDowngradeScheduled,
		PlanCode:  &fromPlan.Code,
		Metadata:  models.JSONB{"target_plan_code": target.Code, "apply_at": applyAt},
	})
	return sub, nil
}

// ApplyDueDowngrades runs scheduled downgrades whose period has ended. Each
// tenant is handled independently; one failure does not stop the batch.
//
// The job runs with no user attached, so a target that stopped being cheaper
// since it was scheduled (or was retired) is abandoned rather than applied:
// routing it through TransitionPlan would open a checkout session nobody can
// complete.
func (s *subscriptionService) ApplyDueDowngrades(ctx context.Context) (int, error) {
	due, err := s.subRepo.ListDueScheduledDowngrades(ctx, time.Now().UTC(), transitionBatchSize)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, sub := range due {
		if sub.DowngradeTargetPlanID == nil {
			continue
		}
		target, err := s.planRepo.GetByID(ctx, *sub.DowngradeTargetPlanID)
		if err != nil {
			log.Error().Err(err).
				Str("tenant_id", sub.TenantID.String()).
				Str("target_plan_id", sub.DowngradeTargetPlanID.String()).
				Msg("scheduled downgrade target lookup failed")
			continue
		}
		fromPlan, err := s.planRepo.GetByID(ctx, sub.PlanID)
		if err != nil {
			log.Error().Err(err).
				Str("tenant_id", sub.TenantID.String()).
				Str("plan_id", sub.PlanID.String()).
				Msg("scheduled downgrade current plan lookup failed")
			continue
		}
		if !target.IsActive || target.PriceMonthly > fromPlan.PriceMonthly {
			s.abandonScheduledDowngrade(ctx, sub, target)
			continue
		}
		req := &models.TransitionPlanRequest{PlanID: target.ID, IsYearly: sub.IsYearly}
		if _, err := s.TransitionPlan(ctx, sub.TenantID, nil, req); err != nil {
			log.Error().Err(err).
				Str("tenant_id", sub.TenantID.String()).
				Str("target_plan_id", target.ID.String()).
				Msg("scheduled downgrade failed")
			continue
		}
		applied++
	}
	return applied, nil
}

// abandonScheduledDowngrade clears the downgrade markers of a scheduled
// transition that can no longer be applied unattended.
func (s *subscriptionService) abandonScheduledDowngrade(ctx context.Context, sub *models.Subscription, target *models.SubscriptionPlan) {
	sub.DowngradeTargetPlanID = nil
	sub.DowngradeScheduledAt = nil
	if err := s.subRepo.Update(ctx, sub); err != nil {
		log.Error().Err(err).
			Str("tenant_id", sub.TenantID.String()).
			Str("target_plan_code", target.Code).
			Msg("failed to clear abandoned scheduled downgrade")
		return
	}
	log.Warn().
		Str("tenant_id", sub.TenantID.String()).
		Str("target_plan_code", target.Code).
		Bool("target_active", target.IsActive).
		Int64("target_price_monthly", target.PriceMonthly).
		Msg("scheduled downgrade abandoned: target no longer applies without payment")
}

// ExpireStalePendingPayments voids checkout rows that never completed so the
// tenant can start a fresh plan change.
func (s *subscriptionService) ExpireStalePendingPayments(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.subRepo.ListStalePendingPayments(ctx, cutoff, transitionBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range stale {
		sub.Status = models.SubscriptionStatusCancelled
		if err := s.subRepo.Update(ctx, sub); err != nil {
			log.Error().Err(err).
				Str("tenant_id", sub.TenantID.String()).
				Str("subscription_id", sub.ID.String()).
				Msg("failed to expire stale pending payment")
			continue
		}
		s.auditSvc.Record(ctx, &models.AuditEvent{
			TenantID:  sub.TenantID,
			EventKind: models.EventSubscriptionCancelled,
			Metadata:  models.JSONB{"reason": "checkout_timeout", "subscription_id": sub.ID.String()},
		})
		expired++
	}
	return expired, nil
}

func periodEnd(start time.Time, yearly bool) time.Time {
	if yearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

package services

import (
	"context"
	"time"

	"shopsuite/internal/caching"
	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const planCatalogTTL = 10 * time.Minute

// PlanService serves the plan catalog and seeds the default tiers at boot.
type PlanService interface {
	ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
	EnsureDefaultPlans(ctx context.Context) error
}

type planService struct {
	planRepo repositories.PlanRepository
	cache    caching.CacheService
}

func NewPlanService(planRepo repositories.PlanRepository, cache caching.CacheService) PlanService {
	return &planService{planRepo: planRepo, cache: cache}
}

func (s *planService) ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	if cached, err := s.cache.GetPlanCatalog(ctx); err == nil && cached != nil {
		return cached, nil
	}
	plans, err := s.planRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetPlanCatalog(ctx, plans, planCatalogTTL); err != nil {
		log.Debug().Err(err).Msg("plan catalog cache write failed")
	}
	return plans, nil
}

func (s *planService) GetPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	if cached, err := s.cache.GetPlan(ctx, id); err == nil && cached != nil {
		return cached, nil
	}
	plan, err := s.planRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetPlan(ctx, plan, time.Hour); err != nil {
		log.Debug().Err(err).Msg("plan cache write failed")
	}
	return plan, nil
}

// EnsureDefaultPlans inserts the built-in tiers if they are missing. Existing
// rows are left untouched so operators can tune limits in place.
func (s *planService) EnsureDefaultPlans(ctx context.Context) error {
	defaults := []*models.SubscriptionPlan{
		{
			ID:                   uuid.New(),
			Code:                 models.PlanCodeFree,
			Name:                 "Free",
			MaxUsers:             intPtr(2),
			MaxShops:             intPtr(1),
			MonthlyEmailLimit:    intPtr(500),
			AllowUsersManagement: true,
			AllowRolesManagement: false,
			PriceMonthly:         0,
			PriceYearly:          0,
			Currency:             "usd",
			IsActive:             true,
		},
		{
			ID:                   uuid.New(),
			Code:                 "starter",
			Name:                 "Starter",
			MaxUsers:             intPtr(5),
			MaxShops:             intPtr(5),
			MonthlyEmailLimit:    intPtr(5000),
			AllowUsersManagement: true,
			AllowRolesManagement: true,
			PriceMonthly:         999,
			PriceYearly:          9990,
			Currency:             "usd",
			IsActive:             true,
		},
		{
			ID:                   uuid.New(),
			Code:                 "pro",
			Name:                 "Pro",
			MaxUsers:             intPtr(15),
			MaxShops:             intPtr(10),
			MonthlyEmailLimit:    intPtr(50000),
			AllowUsersManagement: true,
			AllowRolesManagement: true,
			PriceMonthly:         2999,
			PriceYearly:          29990,
			Currency:             "usd",
			IsActive:             true,
		},
		{
			ID:                   uuid.New(),
			Code:                 "enterprise",
			Name:                 "Enterprise",
			AllowUsersManagement: true,
			AllowRolesManagement: true,
			PriceMonthly:         9999,
			PriceYearly:          99990,
			Currency:             "usd",
			IsActive:             true,
		},
	}

	for _, plan := range defaults {
		if err := s.planRepo.Create(ctx, plan); err != nil {
			return err
		}
	}
	if err := s.cache.InvalidatePlanCatalog(ctx); err != nil {
		log.Debug().Err(err).Msg("plan catalog invalidation failed")
	}
	return nil
}

func intPtr(n int) *int {
	return &n
}

package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// PlanLifecycleTestSuite wires the real subscription, limit and shop services
// together over shared repository mocks and walks a tenant through a full
// grow-then-shrink cycle.
type PlanLifecycleTestSuite struct {
	suite.Suite
	mockDB           pgxmock.PgxPoolIface
	mockSubRepo      *MockSubscriptionRepository
	mockPlanRepo     *MockPlanRepository
	mockUserRepo     *MockUserRepository
	mockShopRepo     *MockShopRepository
	mockEmailRepo    *MockEmailLogRepository
	mockUsageRepo    *MockUsageCounterRepository
	mockOverrideRepo *MockLimitOverrideRepository
	mockCache        *MockCacheService
	mockStripeSvc    *MockStripeService
	mockAuditSvc     *MockAuditService

	subSvc   SubscriptionService
	limitSvc LimitService
	shopSvc  ShopService

	tenantID uuid.UUID
	ownerID  uuid.UUID
	free     *models.SubscriptionPlan
	pro      *models.SubscriptionPlan
	sub      *models.Subscription
}

func (suite *PlanLifecycleTestSuite) SetupTest() {
	db, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mockDB = db

	suite.mockSubRepo = &MockSubscriptionRepository{}
	suite.mockPlanRepo = &MockPlanRepository{}
	suite.mockUserRepo = &MockUserRepository{}
	suite.mockShopRepo = &MockShopRepository{}
	suite.mockEmailRepo = &MockEmailLogRepository{}
	suite.mockUsageRepo = &MockUsageCounterRepository{}
	suite.mockOverrideRepo = &MockLimitOverrideRepository{}
	suite.mockCache = &MockCacheService{}
	suite.mockStripeSvc = &MockStripeService{}
	suite.mockAuditSvc = &MockAuditService{}

	suite.subSvc = NewSubscriptionService(
		suite.mockDB,
		suite.mockSubRepo,
		suite.mockPlanRepo,
		suite.mockUserRepo,
		suite.mockShopRepo,
		suite.mockUsageRepo,
		suite.mockOverrideRepo,
		suite.mockCache,
		suite.mockStripeSvc,
		suite.mockAuditSvc,
	)
	suite.limitSvc = NewLimitService(
		suite.mockPlanRepo,
		suite.mockSubRepo,
		suite.mockUserRepo,
		suite.mockShopRepo,
		suite.mockEmailRepo,
		suite.mockUsageRepo,
		suite.mockOverrideRepo,
		suite.mockCache,
		suite.mockAuditSvc,
	)
	suite.shopSvc = NewShopService(suite.mockShopRepo, suite.limitSvc)

	suite.tenantID = uuid.New()
	suite.ownerID = uuid.New()

	suite.free = &models.SubscriptionPlan{
		ID: uuid.New(), Code: models.PlanCodeFree,
		MaxUsers: intPtr(1), MaxShops: intPtr(1), MonthlyEmailLimit: intPtr(100),
		PriceMonthly: 0, PriceYearly: 0, Currency: "usd", IsActive: true,
	}
	// Pro carries no price here so the move applies without a checkout;
	// payment gating has its own tests.
	suite.pro = &models.SubscriptionPlan{
		ID: uuid.New(), Code: "pro",
		MaxUsers: intPtr(5), MaxShops: intPtr(5), MonthlyEmailLimit: intPtr(5000),
		AllowUsersManagement: true,
		PriceMonthly:         0, PriceYearly: 0, Currency: "usd", IsActive: true,
	}

	start := time.Now().UTC().AddDate(0, 0, -3)
	suite.sub = &models.Subscription{
		ID:                 uuid.New(),
		TenantID:           suite.tenantID,
		PlanID:             suite.free.ID,
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}
}

func (suite *PlanLifecycleTestSuite) TearDownTest() {
	suite.mockSubRepo.AssertExpectations(suite.T())
	suite.mockPlanRepo.AssertExpectations(suite.T())
	suite.mockUserRepo.AssertExpectations(suite.T())
	suite.mockShopRepo.AssertExpectations(suite.T())
	suite.mockEmailRepo.AssertExpectations(suite.T())
	suite.mockUsageRepo.AssertExpectations(suite.T())
	suite.mockOverrideRepo.AssertExpectations(suite.T())
	suite.mockCache.AssertExpectations(suite.T())
	suite.mockStripeSvc.AssertExpectations(suite.T())
	suite.mockAuditSvc.AssertExpectations(suite.T())
	assert.NoError(suite.T(), suite.mockDB.ExpectationsWereMet())
	suite.mockDB.Close()
}

func TestPlanLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(PlanLifecycleTestSuite))
}

// The tenant starts on free (1 user, 1 shop) with one owner and one shop,
// moves to pro, fills the shop ceiling one storefront at a time, then drops
// back to free and loses everything above the free ceiling again.
func (suite *PlanLifecycleTestSuite) TestFreeToProGrowthThenDowngradeToFree() {
	ctx := context.Background()

	// Plumbing shared by every leg. The services mutate the subscription row
	// in place, so this stub follows the tenant's current plan across legs.
	suite.mockSubRepo.On("GetActiveByTenant", mock.Anything, suite.tenantID).Return(suite.sub, nil)
	suite.mockCache.On("GetPlan", mock.Anything, suite.pro.ID).Return(suite.pro, nil)
	suite.mockCache.On("GetPlan", mock.Anything, suite.free.ID).Return(suite.free, nil)
	suite.mockCache.On("GetLimitStatus", mock.Anything, suite.tenantID, models.ResourceShops).Return(nil, nil)
	suite.mockCache.On("SetLimitStatus", mock.Anything, suite.tenantID, mock.AnythingOfType("*models.LimitStatus"), limitStatusTTL).Return(nil)
	suite.mockCache.On("InvalidateTenantLimits", mock.Anything, suite.tenantID).Return(nil)
	suite.mockOverrideRepo.On("Get", mock.Anything, suite.tenantID, models.ResourceUsers).Return(nil, nil)
	suite.mockOverrideRepo.On("Get", mock.Anything, suite.tenantID, models.ResourceShops).Return(nil, nil)

	// Leg 1: free -> pro. Same price, so it applies immediately and there is
	// nothing suspended to bring back.
	suite.mockPlanRepo.On("GetByID", mock.Anything, suite.pro.ID).Return(suite.pro, nil).Once()
	suite.mockSubRepo.On("GetCurrentByTenant", mock.Anything, suite.tenantID).Return(suite.sub, nil).Once()
	suite.mockPlanRepo.On("GetByID", mock.Anything, suite.free.ID).Return(suite.free, nil).Once()

	suite.mockDB.ExpectBegin()
	suite.mockUserRepo.On("CountActive", mock.Anything, suite.tenantID).Return(1, nil).Once()
	suite.mockUserRepo.On("CountSuspended", mock.Anything, suite.tenantID).Return(0, nil).Once()
	suite.mockShopRepo.On("CountActive", mock.Anything, suite.tenantID).Return(1, nil).Once()
	suite.mockShopRepo.On("CountSuspended", mock.Anything, suite.tenantID).Return(0, nil).Once()
	suite.mockSubRepo.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
		return s.ID == suite.sub.ID && s.PlanID == suite.pro.ID
	})).Return(nil).Once()
	suite.mockUsageRepo.On("Set", mock.Anything, suite.tenantID, models.ResourceUsers, 1).Return(nil).Once()
	suite.mockUsageRepo.On("Set", mock.Anything, suite.tenantID, models.ResourceShops, 1).Return(nil).Once()
	suite.mockDB.ExpectCommit()
	suite.mockAuditSvc.On("RecordTransition", mock.Anything, suite.tenantID, &suite.ownerID, mock.AnythingOfType("*models.TransitionOutcome"), models.PlanCodeFree).Once()

	outcome, err := suite.subSvc.TransitionPlan(ctx, suite.tenantID, &suite.ownerID, &models.TransitionPlanRequest{PlanID: suite.pro.ID})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TransitionLateral, outcome.Direction)
	assert.Equal(suite.T(), "pro", outcome.PlanCode)
	assert.Zero(suite.T(), outcome.RestoredUsers)
	assert.Zero(suite.T(), outcome.RestoredShops)

	// Leg 2: fill the pro shop ceiling. Every creation reserves its slot and
	// the advisory check reports the climbing count until it hits the cap.
	for n := 2; n <= 5; n++ {
		suite.mockUsageRepo.On("TryReserve", mock.Anything, suite.tenantID, models.ResourceShops, suite.pro.MaxShops).Return(true, nil).Once()
		suite.mockShopRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Shop")).Return(nil).Once()

		shop, err := suite.shopSvc.CreateShop(ctx, suite.tenantID, suite.ownerID, &models.CreateShopRequest{
			Name: fmt.Sprintf("Storefront %d", n),
			Slug: fmt.Sprintf("storefront-%d", n),
		})
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), models.ShopStatusActive, shop.Status)

		suite.mockShopRepo.On("CountActive", mock.Anything, suite.tenantID).Return(n, nil).Once()
		status, err := suite.limitSvc.CheckLimit(ctx, suite.tenantID, models.ResourceShops)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), n, status.Current)
		assert.Equal(suite.T(), n < 5, status.CanAdd)
	}

	// Leg 3: back to free. Four of the five shops sit above the free ceiling
	// and get suspended, newest first.
	suite.mockPlanRepo.On("GetByID", mock.Anything, suite.free.ID).Return(suite.free, nil).Once()
	suite.mockSubRepo.On("GetCurrentByTenant", mock.Anything, suite.tenantID).Return(suite.sub, nil).Once()
	suite.mockPlanRepo.On("GetByID", mock.Anything, suite.pro.ID).Return(suite.pro, nil).Once()

	suite.mockDB.ExpectBegin()
	suite.mockUserRepo.On("CountActive", mock.Anything, suite.tenantID).Return(1, nil).Once()
	suite.mockUserRepo.On("CountSuspended", mock.Anything, suite.tenantID).Return(0, nil).Once()
	suite.mockShopRepo.On("CountActive", mock.Anything, suite.tenantID).Return(5, nil).Once()
	suite.mockShopRepo.On("SuspendNewest", mock.Anything, suite.tenantID, 4).Return(4, nil).Once()
	suite.mockSubRepo.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
		return s.PlanID == suite.free.ID && s.PreviousPlanID != nil && *s.PreviousPlanID == suite.pro.ID
	})).Return(nil).Once()
	suite.mockUsageRepo.On("Set", mock.Anything, suite.tenantID, models.ResourceUsers, 1).Return(nil).Once()
	suite.mockUsageRepo.On("Set", mock.Anything, suite.tenantID, models.ResourceShops, 1).Return(nil).Once()
	suite.mockDB.ExpectCommit()
	suite.mockAuditSvc.On("RecordTransition", mock.Anything, suite.tenantID, &suite.ownerID, mock.AnythingOfType("*models.TransitionOutcome"), "pro").Once()
	suite.mockAuditSvc.On("Record", mock.Anything, mock.MatchedBy(func(e *models.AuditEvent) bool {
		return e.EventKind == models.EventResourceSuspended && e.ResourceKind == string(models.ResourceShops) &&
			*e.BeforeCount == 5 && *e.AfterCount == 1
	})).Once()

	outcome, err = suite.subSvc.TransitionPlan(ctx, suite.tenantID, &suite.ownerID, &models.TransitionPlanRequest{PlanID: suite.free.ID})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, outcome.SuspendedShops)
	assert.Zero(suite.T(), outcome.SuspendedUsers)
	assert.Equal(suite.T(), models.PlanCodeFree, outcome.PlanCode)

	// Leg 4: the advisory check now reflects the free ceiling again.
	suite.mockShopRepo.On("CountActive", mock.Anything, suite.tenantID).Return(1, nil).Once()
	status, err := suite.limitSvc.CheckLimit(ctx, suite.tenantID, models.ResourceShops)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, status.Current)
	require.NotNil(suite.T(), status.Limit)
	assert.Equal(suite.T(), 1, *status.Limit)
	assert.False(suite.T(), status.CanAdd)
}

package services

import (
	"context"
	"time"

	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// Shared mocks for the service suites in this package. WithTx returns the
// mock itself so expectations set on a repository also cover calls made
// through a transaction.

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role models.Role) error {
	args := m.Called(ctx, tenantID, id, role)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	args := m.Called(ctx, tenantID, id, status)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	args := m.Called(ctx, tenantID, n)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	args := m.Called(ctx, tenantID, n)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) WithTx(tx pgx.Tx) repositories.UserRepository {
	return m
}

type MockShopRepository struct {
	mock.Mock
}

func (m *MockShopRepository) Create(ctx context.Context, shop *models.Shop) error {
	args := m.Called(ctx, shop)
	return args.Error(0)
}

func (m *MockShopRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Shop, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}

func (m *MockShopRepository) GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*models.Shop, error) {
	args := m.Called(ctx, tenantID, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}

func (m *MockShopRepository) Update(ctx context.Context, shop *models.Shop) error {
	args := m.Called(ctx, shop)
	return args.Error(0)
}

func (m *MockShopRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockShopRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Shop, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]*models.Shop), args.Error(1)
}

func (m *MockShopRepository) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockShopRepository) CountSuspended(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockShopRepository) SuspendNewest(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	args := m.Called(ctx, tenantID, n)
	return args.Int(0), args.Error(1)
}

func (m *MockShopRepository) RestoreOldestSuspended(ctx context.Context, tenantID uuid.UUID, n int) (int, error) {
	args := m.Called(ctx, tenantID, n)
	return args.Int(0), args.Error(1)
}

func (m *MockShopRepository) WithTx(tx pgx.Tx) repositories.ShopRepository {
	return m
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Create(ctx context.Context, plan *models.SubscriptionPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanRepository) GetByCode(ctx context.Context, code string) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanRepository) ListActive(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.SubscriptionPlan), args.Error(1)
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetCurrentByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	args := m.Called(ctx, stripeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ListDueScheduledDowngrades(ctx context.Context, asOf time.Time, limit int) ([]*models.Subscription, error) {
	args := m.Called(ctx, asOf, limit)
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*models.Subscription, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) WithTx(tx pgx.Tx) repositories.SubscriptionRepository {
	return m
}

type MockUsageCounterRepository struct {
	mock.Mock
}

func (m *MockUsageCounterRepository) TryReserve(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, limit *int) (bool, error) {
	args := m.Called(ctx, tenantID, kind, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsageCounterRepository) TryReserveN(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, n int, limit *int) (bool, error) {
	args := m.Called(ctx, tenantID, kind, n, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsageCounterRepository) Release(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error {
	args := m.Called(ctx, tenantID, kind)
	return args.Error(0)
}

func (m *MockUsageCounterRepository) ReleaseN(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, n int) error {
	args := m.Called(ctx, tenantID, kind, n)
	return args.Error(0)
}

func (m *MockUsageCounterRepository) Get(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (int, error) {
	args := m.Called(ctx, tenantID, kind)
	return args.Int(0), args.Error(1)
}

func (m *MockUsageCounterRepository) Set(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind, used int) error {
	args := m.Called(ctx, tenantID, kind, used)
	return args.Error(0)
}

func (m *MockUsageCounterRepository) WithTx(tx pgx.Tx) repositories.UsageCounterRepository {
	return m
}

type MockLimitOverrideRepository struct {
	mock.Mock
}

func (m *MockLimitOverrideRepository) Get(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.TenantLimitOverride, error) {
	args := m.Called(ctx, tenantID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantLimitOverride), args.Error(1)
}

func (m *MockLimitOverrideRepository) Upsert(ctx context.Context, override *models.TenantLimitOverride) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

func (m *MockLimitOverrideRepository) Delete(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error {
	args := m.Called(ctx, tenantID, kind)
	return args.Error(0)
}

type MockEmailLogRepository struct {
	mock.Mock
}

func (m *MockEmailLogRepository) Create(ctx context.Context, send *models.EmailSend) error {
	args := m.Called(ctx, send)
	return args.Error(0)
}

func (m *MockEmailLogRepository) SumRecipientsInWindow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockEmailLogRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.EmailSend, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]*models.EmailSend), args.Error(1)
}

func (m *MockEmailLogRepository) WithTx(tx pgx.Tx) repositories.EmailLogRepository {
	return m
}

type MockAuditEventRepository struct {
	mock.Mock
}

func (m *MockAuditEventRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditEventRepository) List(ctx context.Context, tenantID uuid.UUID, filters *models.AuditEventFilters) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, tenantID, filters)
	return args.Get(0).([]*models.AuditEvent), args.Error(1)
}

func (m *MockAuditEventRepository) ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]*models.AuditEvent), args.Error(1)
}

func (m *MockAuditEventRepository) MarkArchived(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) WithTx(tx pgx.Tx) repositories.TenantRepository {
	return m
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetPlan(ctx context.Context, planID uuid.UUID) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockCacheService) SetPlan(ctx context.Context, plan *models.SubscriptionPlan, ttl time.Duration) error {
	args := m.Called(ctx, plan, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetPlanCatalog(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionPlan), args.Error(1)
}

func (m *MockCacheService) SetPlanCatalog(ctx context.Context, plans []*models.SubscriptionPlan, ttl time.Duration) error {
	args := m.Called(ctx, plans, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidatePlanCatalog(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) GetLimitStatus(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.LimitStatus, error) {
	args := m.Called(ctx, tenantID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LimitStatus), args.Error(1)
}

func (m *MockCacheService) SetLimitStatus(ctx context.Context, tenantID uuid.UUID, status *models.LimitStatus, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, status, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateTenantLimits(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockCacheService) RecordFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error) {
	args := m.Called(ctx, email, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) FailedLoginCount(ctx context.Context, email string) (int64, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) ClearFailedLogins(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockStripeService struct {
	mock.Mock
}

func (m *MockStripeService) CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

func (m *MockStripeService) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	args := m.Called(ctx, subscriptionID, atPeriodEnd)
	return args.Error(0)
}

func (m *MockStripeService) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockStripeService) VerifyWebhookSignature(payload []byte, sigHeader string) (*StripeEvent, error) {
	args := m.Called(payload, sigHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StripeEvent), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, event *models.AuditEvent) {
	m.Called(ctx, event)
}

func (m *MockAuditService) ListEvents(ctx context.Context, tenantID uuid.UUID, filters *models.AuditEventFilters) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, tenantID, filters)
	return args.Get(0).([]*models.AuditEvent), args.Error(1)
}

func (m *MockAuditService) RecordLimitDenied(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, kind models.ResourceKind, current, limit int, planCode string) {
	m.Called(ctx, tenantID, actorID, kind, current, limit, planCode)
}

func (m *MockAuditService) RecordRoleChange(ctx context.Context, tenantID, actorID, targetUserID uuid.UUID, oldRole, newRole models.Role) {
	m.Called(ctx, tenantID, actorID, targetUserID, oldRole, newRole)
}

func (m *MockAuditService) RecordUserLifecycle(ctx context.Context, eventKind string, tenantID, actorID, targetUserID uuid.UUID) {
	m.Called(ctx, eventKind, tenantID, actorID, targetUserID)
}

func (m *MockAuditService) RecordTransition(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, outcome *models.TransitionOutcome, fromPlanCode string) {
	m.Called(ctx, tenantID, actorID, outcome, fromPlanCode)
}

type MockLimitService struct {
	mock.Mock
}

func (m *MockLimitService) CheckLimit(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.LimitStatus, error) {
	args := m.Called(ctx, tenantID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LimitStatus), args.Error(1)
}

func (m *MockLimitService) CheckAllLimits(ctx context.Context, tenantID uuid.UUID) ([]*models.LimitStatus, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*models.LimitStatus), args.Error(1)
}

func (m *MockLimitService) ReserveSlot(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, kind models.ResourceKind) error {
	args := m.Called(ctx, tenantID, actorID, kind)
	return args.Error(0)
}

func (m *MockLimitService) ReleaseSlot(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) error {
	args := m.Called(ctx, tenantID, kind)
	return args.Error(0)
}

func (m *MockLimitService) ConsumeEmailQuota(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, req *models.ConsumeEmailQuotaRequest) (*models.LimitStatus, error) {
	args := m.Called(ctx, tenantID, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LimitStatus), args.Error(1)
}

func (m *MockLimitService) EffectivePlan(ctx context.Context, tenantID uuid.UUID) (*models.SubscriptionPlan, *models.Subscription, error) {
	args := m.Called(ctx, tenantID)
	var plan *models.SubscriptionPlan
	if args.Get(0) != nil {
		plan = args.Get(0).(*models.SubscriptionPlan)
	}
	var sub *models.Subscription
	if args.Get(1) != nil {
		sub = args.Get(1).(*models.Subscription)
	}
	return plan, sub, args.Error(2)
}

func (m *MockLimitService) ReconcileTenant(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

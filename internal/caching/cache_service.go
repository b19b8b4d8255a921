package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type CacheService interface {
	// Plan catalog caching
	GetPlan(ctx context.Context, planID uuid.UUID) (*models.SubscriptionPlan, error)
	SetPlan(ctx context.Context, plan *models.SubscriptionPlan, ttl time.Duration) error
	GetPlanCatalog(ctx context.Context) ([]*models.SubscriptionPlan, error)
	SetPlanCatalog(ctx context.Context, plans []*models.SubscriptionPlan, ttl time.Duration) error
	InvalidatePlanCatalog(ctx context.Context) error

	// Limit snapshot caching
	GetLimitStatus(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.LimitStatus, error)
	SetLimitStatus(ctx context.Context, tenantID uuid.UUID, status *models.LimitStatus, ttl time.Duration) error
	InvalidateTenantLimits(ctx context.Context, tenantID uuid.UUID) error

	// Login lockout counters. The count lives in Redis so every instance of
	// the service sees the same tally and entries expire on their own.
	RecordFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error)
	FailedLoginCount(ctx context.Context, email string) (int64, error)
	ClearFailedLogins(ctx context.Context, email string) error

	// Generic string operations for token management
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// Ping reports store liveness for health checks.
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Parse Redis URL to extract host:port if protocol is included
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Warn().Err(pingErr).Str("addr", parsedAddr).Msg("redis ping failed on initialization")
	} else {
		log.Debug().Str("addr", parsedAddr).Msg("redis connection established")
	}

	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetPlan(ctx context.Context, planID uuid.UUID) (*models.SubscriptionPlan, error) {
	key := fmt.Sprintf("shopsuite:plan:%s", planID.String())
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var plan models.SubscriptionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *redisCacheService) SetPlan(ctx context.Context, plan *models.SubscriptionPlan, ttl time.Duration) error {
	key := fmt.Sprintf("shopsuite:plan:%s", plan.ID.String())
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) GetPlanCatalog(ctx context.Context) ([]*models.SubscriptionPlan, error) {
	data, err := r.client.Get(ctx, "shopsuite:plans:catalog").Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var plans []*models.SubscriptionPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *redisCacheService) SetPlanCatalog(ctx context.Context, plans []*models.SubscriptionPlan, ttl time.Duration) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, "shopsuite:plans:catalog", data, ttl).Err()
}

func (r *redisCacheService) InvalidatePlanCatalog(ctx context.Context) error {
	return r.client.Del(ctx, "shopsuite:plans:catalog").Err()
}

func (r *redisCacheService) GetLimitStatus(ctx context.Context, tenantID uuid.UUID, kind models.ResourceKind) (*models.LimitStatus, error) {
	key := fmt.Sprintf("shopsuite:limits:%s:%s", tenantID.String(), kind)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var status models.LimitStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *redisCacheService) SetLimitStatus(ctx context.Context, tenantID uuid.UUID, status *models.LimitStatus, ttl time.Duration) error {
	key := fmt.Sprintf("shopsuite:limits:%s:%s", tenantID.String(), status.Resource)
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) InvalidateTenantLimits(ctx context.Context, tenantID uuid.UUID) error {
	pattern := fmt.Sprintf("shopsuite:limits:%s:*", tenantID.String())
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) RecordFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("shopsuite:lockout:%s", strings.ToLower(email))
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// Set expiry on first failure
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count, nil
}

func (r *redisCacheService) FailedLoginCount(ctx context.Context, email string) (int64, error) {
	key := fmt.Sprintf("shopsuite:lockout:%s", strings.ToLower(email))
	val, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

func (r *redisCacheService) ClearFailedLogins(ctx context.Context, email string) error {
	key := fmt.Sprintf("shopsuite:lockout:%s", strings.ToLower(email))
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

package services

import (
	"context"
	"strings"

	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ShopService manages storefronts. Creation reserves a slot against the plan
// ceiling before the insert so two requests racing at the limit cannot both
// succeed.
type ShopService interface {
	CreateShop(ctx context.Context, tenantID, actorID uuid.UUID, req *models.CreateShopRequest) (*models.Shop, error)
	GetShop(ctx context.Context, tenantID, shopID uuid.UUID) (*models.Shop, error)
	ListShops(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Shop, error)
	UpdateShop(ctx context.Context, tenantID, shopID uuid.UUID, req *models.UpdateShopRequest) (*models.Shop, error)
	DeleteShop(ctx context.Context, tenantID, actorID, shopID uuid.UUID) error
}

type shopService struct {
	shopRepo repositories.ShopRepository
	limitSvc LimitService
}

func NewShopService(shopRepo repositories.ShopRepository, limitSvc LimitService) ShopService {
	return &shopService{shopRepo: shopRepo, limitSvc: limitSvc}
}

func (s *shopService) CreateShop(ctx context.Context, tenantID, actorID uuid.UUID, req *models.CreateShopRequest) (*models.Shop, error) {
	if err := s.limitSvc.ReserveSlot(ctx, tenantID, &actorID, models.ResourceShops); err != nil {
		return nil, err
	}

	shop := &models.Shop{
		TenantID: tenantID,
		Name:     strings.TrimSpace(req.Name),
		Slug:     strings.ToLower(strings.TrimSpace(req.Slug)),
		Status:   models.ShopStatusActive,
	}
	if err := s.shopRepo.Create(ctx, shop); err != nil {
		if relErr := s.limitSvc.ReleaseSlot(ctx, tenantID, models.ResourceShops); relErr != nil {
			log.Error().Err(relErr).Str("tenant_id", tenantID.String()).Msg("shop slot refund failed after create error")
		}
		return nil, err
	}
	return shop, nil
}

func (s *shopService) GetShop(ctx context.Context, tenantID, shopID uuid.UUID) (*models.Shop, error) {
	return s.shopRepo.GetByID(ctx, tenantID, shopID)
}

func (s *shopService) ListShops(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Shop, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.shopRepo.List(ctx, tenantID, limit, offset)
}

func (s *shopService) UpdateShop(ctx context.Context, tenantID, shopID uuid.UUID, req *models.UpdateShopRequest) (*models.Shop, error) {
	shop, err := s.shopRepo.GetByID(ctx, tenantID, shopID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		shop.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		shop.Slug = strings.ToLower(strings.TrimSpace(*req.Slug))
	}
	if err := s.shopRepo.Update(ctx, shop); err != nil {
		return nil, err
	}
	return shop, nil
}

func (s *shopService) DeleteShop(ctx context.Context, tenantID, actorID, shopID uuid.UUID) error {
	shop, err := s.shopRepo.GetByID(ctx, tenantID, shopID)
	if err != nil {
		return err
	}

	wasActive := shop.Status == models.ShopStatusActive
	if err := s.shopRepo.Delete(ctx, tenantID, shopID); err != nil {
		return err
	}
	if wasActive {
		if err := s.limitSvc.ReleaseSlot(ctx, tenantID, models.ResourceShops); err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("shop slot release failed after deletion")
		}
	}
	return nil
}

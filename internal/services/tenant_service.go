package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TenantService provisions workspaces. Signup creates the tenant and its
// first owner atomically so no tenant ever exists without an active owner.
type TenantService interface {
	Signup(ctx context.Context, req *SignupRequest) (*models.Tenant, *models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	Update(ctx context.Context, req *UpdateTenantRequest) (*models.Tenant, error)
}

type SignupRequest struct {
	CompanyName string `json:"company_name"`
	Subdomain   string `json:"subdomain"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type UpdateTenantRequest struct {
	ID   uuid.UUID
	Name string `json:"name"`
}

type tenantService struct {
	db         repositories.Database
	tenantRepo repositories.TenantRepository
	userRepo   repositories.UserRepository
	usageRepo  repositories.UsageCounterRepository
}

func NewTenantService(db repositories.Database, tenantRepo repositories.TenantRepository, userRepo repositories.UserRepository, usageRepo repositories.UsageCounterRepository) TenantService {
	return &tenantService{
		db:         db,
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		usageRepo:  usageRepo,
	}
}

func (s *tenantService) Signup(ctx context.Context, req *SignupRequest) (*models.Tenant, *models.User, error) {
	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if _, err := s.tenantRepo.GetBySubdomain(ctx, subdomain); err == nil {
		return nil, nil, models.ErrSubdomainTaken
	} else if !errors.Is(err, models.ErrTenantNotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tenant := &models.Tenant{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.CompanyName),
		Subdomain: subdomain,
		Status:    models.TenantStatusActive,
	}
	owner := &models.User{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleOwner,
		Status:       models.UserStatusActive,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.tenantRepo.WithTx(tx).Create(ctx, tenant); err != nil {
		return nil, nil, err
	}
	if err := s.userRepo.WithTx(tx).Create(ctx, owner); err != nil {
		return nil, nil, err
	}
	if err := s.usageRepo.WithTx(tx).Set(ctx, tenant.ID, models.ResourceUsers, 1); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit signup: %w", err)
	}
	return tenant, owner, nil
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *tenantService) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	return s.tenantRepo.GetBySubdomain(ctx, subdomain)
}

func (s *tenantService) Update(ctx context.Context, req *UpdateTenantRequest) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	tenant.Name = strings.TrimSpace(req.Name)
	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

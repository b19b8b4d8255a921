package services

import (
	"context"
	"fmt"
	"strings"

	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UserService manages team members within a tenant. Role changes,
// deactivation and deletion run through ordered precondition guards; the
// first failing check decides the error so callers see deterministic
// behavior.
type UserService interface {
	CreateUser(ctx context.Context, tenantID, actorID uuid.UUID, req *models.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error)
	UpdateUser(ctx context.Context, tenantID, userID uuid.UUID, req *models.UpdateUserRequest) (*models.User, error)

	// ChangeRole applies the role-assignment guard and persists the new
	// role. A user can never change their own role; the last active owner
	// can never be demoted.
	ChangeRole(ctx context.Context, tenantID, actorID, targetID uuid.UUID, newRole models.Role) (*models.User, error)

	// DeactivateUser marks the target inactive and frees their seat.
	DeactivateUser(ctx context.Context, tenantID, actorID, targetID uuid.UUID) error
	// ActivateUser re-enables an inactive or suspended user, subject to
	// seat availability on the current plan.
	ActivateUser(ctx context.Context, tenantID, actorID, targetID uuid.UUID) error
	// DeleteUser removes the target. Owner accounts are never deletable;
	// demote them first.
	DeleteUser(ctx context.Context, tenantID, actorID, targetID uuid.UUID) error
}

type userService struct {
	userRepo repositories.UserRepository
	limitSvc LimitService
	auditSvc AuditService
}

func NewUserService(userRepo repositories.UserRepository, limitSvc LimitService, auditSvc AuditService) UserService {
	return &userService{
		userRepo: userRepo,
		limitSvc: limitSvc,
		auditSvc: auditSvc,
	}
}

func (s *userService) CreateUser(ctx context.Context, tenantID, actorID uuid.UUID, req *models.CreateUserRequest) (*models.User, error) {
	if !req.Role.IsValid() {
		return nil, models.ErrInvalidRole
	}

	plan, _, err := s.limitSvc.EffectivePlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !plan.AllowUsersManagement {
		return nil, models.ErrFeatureNotInPlan
	}

	if req.Role == models.RoleOwner {
		actor, err := s.userRepo.GetByID(ctx, tenantID, actorID)
		if err != nil {
			return nil, err
		}
		if actor.Role != models.RoleOwner {
			return nil, models.ErrInsufficientPrivilege
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.limitSvc.ReserveSlot(ctx, tenantID, &actorID, models.ResourceUsers); err != nil {
		return nil, err
	}

	user := &models.User{
		TenantID:     tenantID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		Status:       models.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if relErr := s.limitSvc.ReleaseSlot(ctx, tenantID, models.ResourceUsers); relErr != nil {
			log.Error().Err(relErr).Str("tenant_id", tenantID.String()).Msg("seat refund failed after create error")
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, tenantID, userID)
}

func (s *userService) ListUsers(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, tenantID, limit, offset)
}

func (s *userService) UpdateUser(ctx context.Context, tenantID, userID uuid.UUID, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) ChangeRole(ctx context.Context, tenantID, actorID, targetID uuid.UUID, newRole models.Role) (*models.User, error) {
	if !newRole.IsValid() {
		return nil, models.ErrInvalidRole
	}

	actor, err := s.userRepo.GetByID(ctx, tenantID, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, tenantID, targetID)
	if err != nil {
		return nil, err
	}

	if actor.ID == target.ID {
		return nil, models.ErrSelfRoleChange
	}
	if target.Role == models.RoleOwner && actor.Role != models.RoleOwner {
		return nil, models.ErrInsufficientPrivilege
	}
	if target.Role == models.RoleOwner && newRole != models.RoleOwner {
		owners, err := s.userRepo.CountActiveOwners(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, models.ErrSoleOwnerProtection
		}
	}
	if newRole == models.RoleOwner && actor.Role != models.RoleOwner {
		return nil, models.ErrInsufficientPrivilege
	}

	if target.Role == newRole {
		return target, nil
	}

	if err := s.userRepo.UpdateRole(ctx, tenantID, targetID, newRole); err != nil {
		return nil, err
	}
	s.auditSvc.RecordRoleChange(ctx, tenantID, actorID, targetID, target.Role, newRole)

	target.Role = newRole
	return target, nil
}

func (s *userService) DeactivateUser(ctx context.Context, tenantID, actorID, targetID uuid.UUID) error {
	actor, err := s.userRepo.GetByID(ctx, tenantID, actorID)
	if err != nil {
		return err
	}
	target, err := s.userRepo.GetByID(ctx, tenantID, targetID)
	if err != nil {
		return err
	}

	if actor.ID == target.ID {
		return models.ErrSelfDeactivation
	}
	if target.Role == models.RoleOwner && actor.Role != models.RoleOwner {
		return models.ErrInsufficientPrivilege
	}

	// An already-inactive target is a no-op before the sole-owner count:
	// inactive owners are not counted, so the guard would misfire on them.
	if !target.IsActive() {
		return nil
	}

	if target.Role == models.RoleOwner {
		owners, err := s.userRepo.CountActiveOwners(ctx, tenantID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return models.ErrSoleOwnerProtection
		}
	}

	if err := s.userRepo.UpdateStatus(ctx, tenantID, targetID, models.UserStatusInactive); err != nil {
		return err
	}
	if err := s.limitSvc.ReleaseSlot(ctx, tenantID, models.ResourceUsers); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("seat release failed after deactivation")
	}
	s.auditSvc.RecordUserLifecycle(ctx, models.EventUserDeactivated, tenantID, actorID, targetID)
	return nil
}

func (s *userService) ActivateUser(ctx context.Context, tenantID, actorID, targetID uuid.UUID) error {
	target, err := s.userRepo.GetByID(ctx, tenantID, targetID)
	if err != nil {
		return err
	}
	if target.IsActive() {
		return nil
	}

	if err := s.limitSvc.ReserveSlot(ctx, tenantID, &actorID, models.ResourceUsers); err != nil {
		return err
	}
	if err := s.userRepo.UpdateStatus(ctx, tenantID, targetID, models.UserStatusActive); err != nil {
		if relErr := s.limitSvc.ReleaseSlot(ctx, tenantID, models.ResourceUsers); relErr != nil {
			log.Error().Err(relErr).Str("tenant_id", tenantID.String()).Msg("seat refund failed after activation error")
		}
		return err
	}
	return nil
}

func (s *userService) DeleteUser(ctx context.Context, tenantID, actorID, targetID uuid.UUID) error {
	actor, err := s.userRepo.GetByID(ctx, tenantID, actorID)
	if err != nil {
		return err
	}
	target, err := s.userRepo.GetByID(ctx, tenantID, targetID)
	if err != nil {
		return err
	}

	if actor.ID == target.ID {
		return models.ErrSelfDeletion
	}
	if target.Role == models.RoleOwner && actor.Role != models.RoleOwner {
		return models.ErrInsufficientPrivilege
	}
	if target.Role == models.RoleOwner {
		return models.ErrOwnerNotDeletable
	}

	wasActive := target.IsActive()
	if err := s.userRepo.Delete(ctx, tenantID, targetID); err != nil {
		return err
	}
	if wasActive {
		if err := s.limitSvc.ReleaseSlot(ctx, tenantID, models.ResourceUsers); err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("seat release failed after deletion")
		}
	}
	s.auditSvc.RecordUserLifecycle(ctx, models.EventUserDeleted, tenantID, actorID, targetID)
	return nil
}

package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopsuite/internal/caching"
	"shopsuite/internal/metrics"
	"shopsuite/internal/models"
	"shopsuite/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const refreshTokenKeyPrefix = "shopsuite:refresh:"

// AuthService issues and validates credentials. Failed logins are counted in
// a shared expiring store so lockout works across instances.
type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(token string) (*TokenClaims, error)
	GenerateTokens(ctx context.Context, user *models.User) (*models.TokenResponse, error)
}

// TokenClaims is the JWT payload. Role rides in the token so the permission
// middleware can gate without a user lookup per request.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo      repositories.UserRepository
	cacheSvc      caching.CacheService
	jwtSecret     []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	maxAttempts   int64
	lockoutWindow time.Duration
}

func NewAuthService(userRepo repositories.UserRepository, cacheSvc caching.CacheService, jwtSecret string, accessTTL, refreshTTL time.Duration, maxAttempts int, lockoutWindow time.Duration) AuthService {
	return &authService{
		userRepo:      userRepo,
		cacheSvc:      cacheSvc,
		jwtSecret:     []byte(jwtSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		maxAttempts:   int64(maxAttempts),
		lockoutWindow: lockoutWindow,
	}
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	count, err := s.cacheSvc.FailedLoginCount(ctx, email)
	if err != nil {
		log.Error().Err(err).Msg("failed to read lockout counter")
	}
	if count >= s.maxAttempts {
		return nil, models.ErrAccountLocked
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// Burn an attempt anyway so probing unknown emails locks too.
			s.recordFailure(ctx, email)
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailure(ctx, email)
		return nil, models.ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, models.ErrAccountDisabled
	}

	if err := s.cacheSvc.ClearFailedLogins(ctx, email); err != nil {
		log.Error().Err(err).Msg("failed to clear lockout counter")
	}
	return s.GenerateTokens(ctx, user)
}

func (s *authService) recordFailure(ctx context.Context, email string) {
	metrics.LoginFailuresTotal.Inc()
	count, err := s.cacheSvc.RecordFailedLogin(ctx, email, s.lockoutWindow)
	if err != nil {
		log.Error().Err(err).Msg("failed to record login failure")
		return
	}
	if count >= s.maxAttempts {
		metrics.AccountLockoutsTotal.Inc()
		log.Warn().Str("email", email).Int64("attempts", count).Msg("account locked after repeated login failures")
	}
}

// GenerateTokens mints an access/refresh pair. The refresh token is stored
// hashed; the raw value never touches persistent storage.
func (s *authService) GenerateTokens(ctx context.Context, user *models.User) (*models.TokenResponse, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID:   user.ID.String(),
		TenantID: user.TenantID.String(),
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "shopsuite-auth",
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{"shopsuite-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	refreshToken := generateSecureToken()
	refreshKey := refreshTokenKeyPrefix + hashToken(refreshToken)
	refreshValue := user.ID.String() + ":" + user.TenantID.String()
	if err := s.cacheSvc.SetString(ctx, refreshKey, refreshValue, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		UserID:       user.ID.String(),
		TenantID:     user.TenantID.String(),
		Role:         user.Role,
	}, nil
}

// RefreshToken rotates the pair. The user is re-read so role changes and
// suspensions take effect at most one access-token lifetime late.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	key := refreshTokenKeyPrefix + hashToken(refreshToken)
	value, err := s.cacheSvc.GetString(ctx, key)
	if err != nil || value == "" {
		return nil, models.ErrInvalidCredentials
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return nil, models.ErrInvalidCredentials
	}
	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}
	tenantID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}
	if !user.IsActive() {
		if delErr := s.cacheSvc.Delete(ctx, key); delErr != nil {
			log.Error().Err(delErr).Msg("failed to revoke refresh token")
		}
		return nil, models.ErrAccountDisabled
	}

	if err := s.cacheSvc.Delete(ctx, key); err != nil {
		log.Error().Err(err).Msg("failed to rotate refresh token")
	}
	return s.GenerateTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.cacheSvc.Delete(ctx, refreshTokenKeyPrefix+hashToken(refreshToken))
}

func (s *authService) ValidateToken(token string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func generateSecureToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return base64.URLEncoding.EncodeToString(bytes)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

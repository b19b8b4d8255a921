package services

import (
	"context"
	"testing"
	"time"

	"shopsuite/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const (
	testJWTSecret   = "unit-test-signing-secret"
	testMaxAttempts = 5
)

type AuthServiceTestSuite struct {
	suite.Suite
	mockUserRepo *MockUserRepository
	mockCache    *MockCacheService
	service      AuthService
	tenantID     uuid.UUID
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.mockUserRepo = &MockUserRepository{}
	suite.mockCache = &MockCacheService{}
	suite.service = NewAuthService(suite.mockUserRepo, suite.mockCache, testJWTSecret, 15*time.Minute, 720*time.Hour, testMaxAttempts, 15*time.Minute)
	suite.tenantID = uuid.New()
}

func (suite *AuthServiceTestSuite) TearDownTest() {
	suite.mockUserRepo.AssertExpectations(suite.T())
	suite.mockCache.AssertExpectations(suite.T())
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func (suite *AuthServiceTestSuite) activeUser(email, password string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(suite.T(), err)
	return &models.User{
		ID:           uuid.New(),
		TenantID:     suite.tenantID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleManager,
		Status:       models.UserStatusActive,
	}
}

func (suite *AuthServiceTestSuite) TestLogin_Success() {
	user := suite.activeUser("owner@example.com", "correct-horse")

	suite.mockCache.On("FailedLoginCount", mock.Anything, "owner@example.com").Return(int64(0), nil).Once()
	suite.mockUserRepo.On("GetByEmail", mock.Anything, "owner@example.com").Return(user, nil).Once()
	suite.mockCache.On("ClearFailedLogins", mock.Anything, "owner@example.com").Return(nil).Once()
	suite.mockCache.On("SetString", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > len(refreshTokenKeyPrefix) && key[:len(refreshTokenKeyPrefix)] == refreshTokenKeyPrefix
	}), user.ID.String()+":"+suite.tenantID.String(), 720*time.Hour).Return(nil).Once()

	// Mixed case and padding in the request must hit the same lockout
	// counter and user row as the canonical form.
	resp, err := suite.service.Login(context.Background(), &models.LoginRequest{Email: "  Owner@Example.COM ", Password: "correct-horse"})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Bearer", resp.TokenType)
	assert.Equal(suite.T(), int((15 * time.Minute).Seconds()), resp.ExpiresIn)
	assert.Equal(suite.T(), user.ID.String(), resp.UserID)
	assert.Equal(suite.T(), suite.tenantID.String(), resp.TenantID)
	assert.Equal(suite.T(), models.RoleManager, resp.Role)
	assert.NotEmpty(suite.T(), resp.AccessToken)
	assert.NotEmpty(suite.T(), resp.RefreshToken)
}

func (suite *AuthServiceTestSuite) TestLogin_LockedAccountShortCircuits() {
	suite.mockCache.On("FailedLoginCount", mock.Anything, "victim@example.com").Return(int64(testMaxAttempts), nil).Once()

	_, err := suite.service.Login(context.Background(), &models.LoginRequest{Email: "victim@example.com", Password: "whatever"})
	assert.ErrorIs(suite.T(), err, models.ErrAccountLocked)
	suite.mockUserRepo.AssertNotCalled(suite.T(), "GetByEmail", mock.Anything, mock.Anything)
}

// Unknown emails burn an attempt and return the same error as a wrong
// password, so callers cannot probe which addresses exist.
func (suite *AuthServiceTestSuite) TestLogin_UnknownEmailBurnsAttempt() {
	suite.mockCache.On("FailedLoginCount", mock.Anything, "ghost@example.com").Return(int64(0), nil).Once()
	suite.mockUserRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, models.ErrUserNotFound).Once()
	suite.mockCache.On("RecordFailedLogin", mock.Anything, "ghost@example.com", 15*time.Minute).Return(int64(1), nil).Once()

	_, err := suite.service.Login(context.Background(), &models.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	assert.ErrorIs(suite.T(), err, models.ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestLogin_WrongPasswordBurnsAttempt() {
	user := suite.activeUser("owner@example.com", "correct-horse")

	suite.mockCache.On("FailedLoginCount", mock.Anything, "owner@example.com").Return(int64(2), nil).Once()
	suite.mockUserRepo.On("GetByEmail", mock.Anything, "owner@example.com").Return(user, nil).Once()
	suite.mockCache.On("RecordFailedLogin", mock.Anything, "owner@example.com", 15*time.Minute).Return(int64(3), nil).Once()

	_, err := suite.service.Login(context.Background(), &models.LoginRequest{Email: "owner@example.com", Password: "battery-staple"})
	assert.ErrorIs(suite.T(), err, models.ErrInvalidCredentials)
	suite.mockCache.AssertNotCalled(suite.T(), "SetString", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestLogin_DisabledAccountRejected() {
	user := suite.activeUser("former@example.com", "correct-horse")
	user.Status = models.UserStatusInactive

	suite.mockCache.On("FailedLoginCount", mock.Anything, "former@example.com").Return(int64(0), nil).Once()
	suite.mockUserRepo.On("GetByEmail", mock.Anything, "former@example.com").Return(user, nil).Once()

	_, err := suite.service.Login(context.Background(), &models.LoginRequest{Email: "former@example.com", Password: "correct-horse"})
	assert.ErrorIs(suite.T(), err, models.ErrAccountDisabled)
	// The password was right, so no attempt is burned.
	suite.mockCache.AssertNotCalled(suite.T(), "RecordFailedLogin", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestLogin_FailsClosedWhenRefreshStoreDown() {
	user := suite.activeUser("owner@example.com", "correct-horse")

	suite.mockCache.On("FailedLoginCount", mock.Anything, "owner@example.com").Return(int64(0), nil).Once()
	suite.mockUserRepo.On("GetByEmail", mock.Anything, "owner@example.com").Return(user, nil).Once()
	suite.mockCache.On("ClearFailedLogins", mock.Anything, "owner@example.com").Return(nil).Once()
	suite.mockCache.On("SetString", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := suite.service.Login(context.Background(), &models.LoginRequest{Email: "owner@example.com", Password: "correct-horse"})
	assert.Error(suite.T(), err)
}

func (suite *AuthServiceTestSuite) TestValidateToken_RoundTrip() {
	user := suite.activeUser("owner@example.com", "correct-horse")
	suite.mockCache.On("SetString", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	tokens, err := suite.service.GenerateTokens(context.Background(), user)
	require.NoError(suite.T(), err)

	claims, err := suite.service.ValidateToken(tokens.AccessToken)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), user.ID.String(), claims.UserID)
	assert.Equal(suite.T(), suite.tenantID.String(), claims.TenantID)
	assert.Equal(suite.T(), string(models.RoleManager), claims.Role)
	assert.Equal(suite.T(), "shopsuite-auth", claims.Issuer)
	assert.Contains(suite.T(), claims.Audience, "shopsuite-api")
}

func (suite *AuthServiceTestSuite) TestValidateToken_RejectsForeignSignature() {
	claims := TokenClaims{
		UserID:   uuid.NewString(),
		TenantID: suite.tenantID.String(),
		Role:     string(models.RoleOwner),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("attacker-secret"))
	require.NoError(suite.T(), err)

	_, err = suite.service.ValidateToken(forged)
	assert.Error(suite.T(), err)
}

func (suite *AuthServiceTestSuite) TestValidateToken_RejectsExpired() {
	expiredIssuer := NewAuthService(suite.mockUserRepo, suite.mockCache, testJWTSecret, -time.Minute, 720*time.Hour, testMaxAttempts, 15*time.Minute)
	user := suite.activeUser("owner@example.com", "correct-horse")
	suite.mockCache.On("SetString", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	tokens, err := expiredIssuer.GenerateTokens(context.Background(), user)
	require.NoError(suite.T(), err)

	_, err = suite.service.ValidateToken(tokens.AccessToken)
	assert.Error(suite.T(), err)
}

func (suite *AuthServiceTestSuite) TestRefreshToken_RotatesPair() {
	user := suite.activeUser("owner@example.com", "correct-horse")
	raw := "raw-refresh-token"
	key := refreshTokenKeyPrefix + hashToken(raw)

	suite.mockCache.On("GetString", mock.Anything, key).Return(user.ID.String()+":"+suite.tenantID.String(), nil).Once()
	suite.mockUserRepo.On("GetByID", mock.Anything, suite.tenantID, user.ID).Return(user, nil).Once()
	suite.mockCache.On("Delete", mock.Anything, key).Return(nil).Once()
	suite.mockCache.On("SetString", mock.Anything, mock.MatchedBy(func(newKey string) bool {
		return newKey != key
	}), mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := suite.service.RefreshToken(context.Background(), raw)
	assert.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), resp.AccessToken)
	assert.NotEqual(suite.T(), raw, resp.RefreshToken)
}

func (suite *AuthServiceTestSuite) TestRefreshToken_UnknownTokenRejected() {
	suite.mockCache.On("GetString", mock.Anything, mock.Anything).Return("", nil).Once()

	_, err := suite.service.RefreshToken(context.Background(), "never-issued")
	assert.ErrorIs(suite.T(), err, models.ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestRefreshToken_MalformedStoredValueRejected() {
	suite.mockCache.On("GetString", mock.Anything, mock.Anything).Return("not-a-uuid-pair", nil).Once()

	_, err := suite.service.RefreshToken(context.Background(), "raw-refresh-token")
	assert.ErrorIs(suite.T(), err, models.ErrInvalidCredentials)
}

// A user suspended by a downgrade keeps their access token until it expires,
// but the refresh token dies the moment they try to use it.
func (suite *AuthServiceTestSuite) TestRefreshToken_SuspendedUserRevoked() {
	user := suite.activeUser("demoted@example.com", "correct-horse")
	user.Status = models.UserStatusSuspended
	raw := "raw-refresh-token"
	key := refreshTokenKeyPrefix + hashToken(raw)

	suite.mockCache.On("GetString", mock.Anything, key).Return(user.ID.String()+":"+suite.tenantID.String(), nil).Once()
	suite.mockUserRepo.On("GetByID", mock.Anything, suite.tenantID, user.ID).Return(user, nil).Once()
	suite.mockCache.On("Delete", mock.Anything, key).Return(nil).Once()

	_, err := suite.service.RefreshToken(context.Background(), raw)
	assert.ErrorIs(suite.T(), err, models.ErrAccountDisabled)
	suite.mockCache.AssertNotCalled(suite.T(), "SetString", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestLogout_RevokesRefreshToken() {
	raw := "raw-refresh-token"
	suite.mockCache.On("Delete", mock.Anything, refreshTokenKeyPrefix+hashToken(raw)).Return(nil).Once()

	err := suite.service.Logout(context.Background(), raw)
	assert.NoError(suite.T(), err)
}

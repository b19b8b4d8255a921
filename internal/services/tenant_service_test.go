package services

import (
	"context"
	"testing"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type TenantServiceTestSuite struct {
	suite.Suite
	mockDB         pgxmock.PgxPoolIface
	mockTenantRepo *MockTenantRepository
	mockUserRepo   *MockUserRepository
	mockUsageRepo  *MockUsageCounterRepository
	service        TenantService
}

func (suite *TenantServiceTestSuite) SetupTest() {
	db, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mockDB = db
	suite.mockTenantRepo = &MockTenantRepository{}
	suite.mockUserRepo = &MockUserRepository{}
	suite.mockUsageRepo = &MockUsageCounterRepository{}
	suite.service = NewTenantService(suite.mockDB, suite.mockTenantRepo, suite.mockUserRepo, suite.mockUsageRepo)
}

func (suite *TenantServiceTestSuite) TearDownTest() {
	suite.mockTenantRepo.AssertExpectations(suite.T())
	suite.mockUserRepo.AssertExpectations(suite.T())
	suite.mockUsageRepo.AssertExpectations(suite.T())
	assert.NoError(suite.T(), suite.mockDB.ExpectationsWereMet())
	suite.mockDB.Close()
}

func TestTenantServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceTestSuite))
}

// Signup provisions the workspace, its first owner and the seat counter in
// one transaction, so a failed owner insert leaves no orphaned tenant.
func (suite *TenantServiceTestSuite) TestSignup_CreatesTenantOwnerAndSeatCounter() {
	suite.mockTenantRepo.On("GetBySubdomain", mock.Anything, "acme").Return(nil, models.ErrTenantNotFound).Once()

	suite.mockDB.ExpectBegin()
	suite.mockTenantRepo.On("Create", mock.Anything, mock.MatchedBy(func(tn *models.Tenant) bool {
		return tn.Name == "Acme Stores" && tn.Subdomain == "acme" && tn.Status == models.TenantStatusActive
	})).Return(nil).Once()
	suite.mockUserRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "founder@acme.test" &&
			u.Role == models.RoleOwner &&
			u.Status == models.UserStatusActive &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter2hunter2")) == nil
	})).Return(nil).Once()
	suite.mockUsageRepo.On("Set", mock.Anything, mock.AnythingOfType("uuid.UUID"), models.ResourceUsers, 1).Return(nil).Once()
	suite.mockDB.ExpectCommit()

	tenant, owner, err := suite.service.Signup(context.Background(), &SignupRequest{
		CompanyName: "  Acme Stores ",
		Subdomain:   " ACME ",
		Email:       "Founder@Acme.test",
		Password:    "hunter2hunter2",
		FirstName:   "Ada",
		LastName:    "Founder",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "acme", tenant.Subdomain)
	assert.Equal(suite.T(), tenant.ID, owner.TenantID)
	assert.Equal(suite.T(), models.RoleOwner, owner.Role)
}

func (suite *TenantServiceTestSuite) TestSignup_SubdomainTaken() {
	existing := &models.Tenant{ID: uuid.New(), Subdomain: "acme"}
	suite.mockTenantRepo.On("GetBySubdomain", mock.Anything, "acme").Return(existing, nil).Once()

	_, _, err := suite.service.Signup(context.Background(), &SignupRequest{Subdomain: "acme", Email: "x@y.test", Password: "hunter2hunter2"})
	assert.ErrorIs(suite.T(), err, models.ErrSubdomainTaken)
	suite.mockTenantRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *TenantServiceTestSuite) TestSignup_OwnerInsertFailureAbortsSignup() {
	suite.mockTenantRepo.On("GetBySubdomain", mock.Anything, "acme").Return(nil, models.ErrTenantNotFound).Once()

	suite.mockDB.ExpectBegin()
	suite.mockTenantRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Tenant")).Return(nil).Once()
	suite.mockUserRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(assert.AnError).Once()
	suite.mockDB.ExpectRollback()

	_, _, err := suite.service.Signup(context.Background(), &SignupRequest{
		CompanyName: "Acme Stores",
		Subdomain:   "acme",
		Email:       "founder@acme.test",
		Password:    "hunter2hunter2",
	})
	assert.Error(suite.T(), err)
	suite.mockUsageRepo.AssertNotCalled(suite.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *TenantServiceTestSuite) TestUpdate_RenamesTenant() {
	tenant := &models.Tenant{ID: uuid.New(), Name: "Old Name", Subdomain: "acme", Status: models.TenantStatusActive}
	suite.mockTenantRepo.On("GetByID", mock.Anything, tenant.ID).Return(tenant, nil).Once()
	suite.mockTenantRepo.On("Update", mock.Anything, mock.MatchedBy(func(tn *models.Tenant) bool {
		return tn.ID == tenant.ID && tn.Name == "New Name"
	})).Return(nil).Once()

	got, err := suite.service.Update(context.Background(), &UpdateTenantRequest{ID: tenant.ID, Name: " New Name "})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "New Name", got.Name)
}

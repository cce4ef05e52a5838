package services

import (
	"context"
	"testing"
	"time"

	"vendora/internal/models"
	"vendora/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type CheckoutServiceTestSuite struct {
	suite.Suite
	mockSubRepo  *MockSubscriptionRepository
	mockProvider *MockPaymentProviderService
	service      CheckoutService
	userID       uuid.UUID
	ctx          context.Context
}

func (suite *CheckoutServiceTestSuite) SetupTest() {
	suite.mockSubRepo = &MockSubscriptionRepository{}
	suite.mockProvider = &MockPaymentProviderService{}
	suite.service = NewCheckoutService(suite.mockSubRepo, suite.mockProvider, 24*time.Hour)
	suite.userID = uuid.New()
	suite.ctx = context.Background()

	suite.mockSubRepo.Test(suite.T())
	suite.mockProvider.Test(suite.T())
}

func (suite *CheckoutServiceTestSuite) TearDownTest() {
	suite.mockSubRepo.AssertExpectations(suite.T())
	suite.mockProvider.AssertExpectations(suite.T())
}

func TestCheckoutServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutServiceTestSuite))
}

func (suite *CheckoutServiceTestSuite) expectNoActiveSubscription() {
	suite.mockSubRepo.On("GetActiveByUserID", suite.ctx, suite.userID).
		Return(nil, repositories.ErrNotFound).Once()
}

func (suite *CheckoutServiceTestSuite) expectNoPendingSubscription() {
	suite.mockSubRepo.On("GetPendingByUserID", suite.ctx, suite.userID, "pro", mock.AnythingOfType("time.Time")).
		Return(nil, repositories.ErrNotFound).Once()
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_Success() {
	suite.expectNoActiveSubscription()
	suite.expectNoPendingSubscription()

	var createdRef string
	suite.mockSubRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Subscription")).
		Return(nil).Once().Run(func(args mock.Arguments) {
		sub := args.Get(1).(*models.Subscription)
		assert.Equal(suite.T(), models.SubscriptionPending, sub.Status)
		assert.Equal(suite.T(), suite.userID, sub.UserID)
		assert.NotEmpty(suite.T(), sub.ExternalReference)
		createdRef = sub.ExternalReference
	})
	suite.mockProvider.On("CreateCheckoutSession", suite.ctx, mock.AnythingOfType("*services.CheckoutSessionRequest")).
		Return(&CheckoutSessionResponse{ID: "cs_1", CheckoutURL: "https://pay.example.com/cs_1"}, nil).Once().
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*CheckoutSessionRequest)
			assert.Equal(suite.T(), createdRef, req.ExternalReference)
			assert.Equal(suite.T(), 29.0, req.Amount)
			assert.Equal(suite.T(), "USD", req.Currency)
		})

	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "pro", models.BillingIntervalMonth)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "https://pay.example.com/cs_1", intent.CheckoutURL)
	assert.Equal(suite.T(), models.SubscriptionPending, intent.Subscription.Status)
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_UnknownPlan() {
	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "platinum", models.BillingIntervalMonth)
	assert.ErrorIs(suite.T(), err, ErrInvalidPlan)
	assert.Nil(suite.T(), intent)
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_UnsupportedInterval() {
	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "pro", "weekly")
	assert.ErrorIs(suite.T(), err, ErrInvalidPlan)
	assert.Nil(suite.T(), intent)
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_AlreadyActive() {
	active := activeSubscription()
	active.UserID = suite.userID
	suite.mockSubRepo.On("GetActiveByUserID", suite.ctx, suite.userID).Return(active, nil).Once()

	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "pro", models.BillingIntervalMonth)
	assert.ErrorIs(suite.T(), err, ErrAlreadySubscribed)
	assert.Nil(suite.T(), intent)
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_ProviderFailureKeepsPending() {
	suite.expectNoActiveSubscription()
	suite.expectNoPendingSubscription()

	suite.mockSubRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Subscription")).Return(nil).Once()
	suite.mockProvider.On("CreateCheckoutSession", suite.ctx, mock.AnythingOfType("*services.CheckoutSessionRequest")).
		Return(nil, ErrProviderUnavailable).Once()

	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "pro", models.BillingIntervalMonth)
	assert.ErrorIs(suite.T(), err, ErrProviderUnavailable)
	assert.Nil(suite.T(), intent)
	// The pending row remains; no delete or rollback happens on provider failure
	suite.mockSubRepo.AssertNotCalled(suite.T(), "Update", mock.Anything, mock.Anything)
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_RetryReusesPendingReference() {
	pending := pendingSubscription()
	pending.UserID = suite.userID
	pending.PlanID = "pro"

	suite.expectNoActiveSubscription()
	suite.mockSubRepo.On("GetPendingByUserID", suite.ctx, suite.userID, "pro", mock.AnythingOfType("time.Time")).
		Return(pending, nil).Once()
	suite.mockProvider.On("CreateCheckoutSession", suite.ctx, mock.AnythingOfType("*services.CheckoutSessionRequest")).
		Return(&CheckoutSessionResponse{ID: "cs_2", CheckoutURL: "https://pay.example.com/cs_2"}, nil).Once().
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*CheckoutSessionRequest)
			// A retried checkout must carry the original reference so a late
			// webhook for either attempt resolves to the same record
			assert.Equal(suite.T(), pending.ExternalReference, req.ExternalReference)
		})

	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "pro", models.BillingIntervalMonth)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), pending.ID, intent.Subscription.ID)
	suite.mockSubRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *CheckoutServiceTestSuite) TestStartCheckout_ProvisionalProviderIDRecorded() {
	suite.expectNoActiveSubscription()
	suite.expectNoPendingSubscription()

	suite.mockSubRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Subscription")).Return(nil).Once()
	suite.mockProvider.On("CreateCheckoutSession", suite.ctx, mock.AnythingOfType("*services.CheckoutSessionRequest")).
		Return(&CheckoutSessionResponse{
			ID:                     "cs_3",
			CheckoutURL:            "https://pay.example.com/cs_3",
			ProviderSubscriptionID: "psub_early",
		}, nil).Once()
	suite.mockSubRepo.On("Update", suite.ctx, mock.AnythingOfType("*models.Subscription")).Return(nil).Once()

	intent, err := suite.service.StartCheckout(suite.ctx, suite.userID, "pro", models.BillingIntervalMonth)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "psub_early", *intent.Subscription.ProviderSubscriptionID)
}

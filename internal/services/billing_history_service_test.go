package services

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"vendora/internal/models"
	"vendora/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockStorageService struct {
	mock.Mock
}

func (m *MockStorageService) UploadDocument(ctx context.Context, bucketName, objectName, contentType string, reader io.Reader, objectSize int64) error {
	args := m.Called(ctx, bucketName, objectName, contentType, reader, objectSize)
	return args.Error(0)
}

func (m *MockStorageService) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucketName, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorageService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	args := m.Called(ctx, bucketName)
	return args.Error(0)
}

type BillingHistoryServiceTestSuite struct {
	suite.Suite
	mockSubRepo *MockSubscriptionRepository
	mockTxRepo  *MockTransactionRepository
	mockCache   *MockCacheService
	mockStorage *MockStorageService
	service     BillingHistoryService
	userID      uuid.UUID
	ctx         context.Context
}

func (suite *BillingHistoryServiceTestSuite) SetupTest() {
	suite.mockSubRepo = &MockSubscriptionRepository{}
	suite.mockTxRepo = &MockTransactionRepository{}
	suite.mockCache = &MockCacheService{}
	suite.mockStorage = &MockStorageService{}
	suite.service = NewBillingHistoryService(suite.mockSubRepo, suite.mockTxRepo, suite.mockCache, suite.mockStorage, "receipts")
	suite.userID = uuid.New()
	suite.ctx = context.Background()

	suite.mockSubRepo.Test(suite.T())
	suite.mockTxRepo.Test(suite.T())
	suite.mockCache.Test(suite.T())
	suite.mockStorage.Test(suite.T())
}

func (suite *BillingHistoryServiceTestSuite) TearDownTest() {
	suite.mockSubRepo.AssertExpectations(suite.T())
	suite.mockTxRepo.AssertExpectations(suite.T())
	suite.mockCache.AssertExpectations(suite.T())
	suite.mockStorage.AssertExpectations(suite.T())
}

func TestBillingHistoryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BillingHistoryServiceTestSuite))
}

func succeededTransaction(sub *models.Subscription) *models.Transaction {
	return &models.Transaction{
		ID:                uuid.New(),
		SubscriptionID:    sub.ID,
		ExternalReference: sub.ExternalReference,
		ProviderEventID:   "evt_" + uuid.NewString(),
		Amount:            29,
		Currency:          "USD",
		Status:            models.TransactionSucceeded,
		OccurredAt:        time.Now().UTC(),
	}
}

func (suite *BillingHistoryServiceTestSuite) TestHistory_CacheMiss() {
	sub := activeSubscription()
	sub.UserID = suite.userID
	tx := succeededTransaction(sub)

	suite.mockCache.On("GetBillingHistory", suite.ctx, suite.userID, 10, 0).Return(nil, nil).Once()
	suite.mockSubRepo.On("ListByUserID", suite.ctx, suite.userID, 10, 0).
		Return([]*models.Subscription{sub}, nil).Once()
	suite.mockTxRepo.On("ListBySubscriptionID", suite.ctx, sub.ID).
		Return([]*models.Transaction{tx}, nil).Once()
	suite.mockCache.On("SetBillingHistory", suite.ctx, suite.userID, 10, 0, mock.AnythingOfType("[]uint8"), billingHistoryTTL).
		Return(nil).Once()

	history, err := suite.service.History(suite.ctx, suite.userID, 10, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), history.Entries, 1)
	assert.Equal(suite.T(), "Pro Plan", history.Entries[0].PlanName)
	assert.Len(suite.T(), history.Entries[0].Transactions, 1)
}

func (suite *BillingHistoryServiceTestSuite) TestHistory_CacheHit() {
	cached := &BillingHistory{Limit: 10, Offset: 0}
	data, err := json.Marshal(cached)
	assert.NoError(suite.T(), err)

	suite.mockCache.On("GetBillingHistory", suite.ctx, suite.userID, 10, 0).Return(data, nil).Once()

	history, err := suite.service.History(suite.ctx, suite.userID, 10, 0)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 10, history.Limit)
	suite.mockSubRepo.AssertNotCalled(suite.T(), "ListByUserID", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *BillingHistoryServiceTestSuite) TestReceiptURL_Success() {
	sub := activeSubscription()
	sub.UserID = suite.userID
	tx := succeededTransaction(sub)

	suite.mockTxRepo.On("GetByID", suite.ctx, tx.ID).Return(tx, nil).Once()
	suite.mockSubRepo.On("GetByID", suite.ctx, sub.ID).Return(sub, nil).Once()
	suite.mockStorage.On("UploadDocument", suite.ctx, "receipts", mock.AnythingOfType("string"), "application/pdf", mock.Anything, mock.AnythingOfType("int64")).
		Return(nil).Once()
	suite.mockStorage.On("GetPresignedURL", suite.ctx, "receipts", mock.AnythingOfType("string"), receiptURLExpiry).
		Return("https://storage.example.com/receipts/x.pdf", nil).Once()

	url, err := suite.service.ReceiptURL(suite.ctx, suite.userID, tx.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "https://storage.example.com/receipts/x.pdf", url)
}

func (suite *BillingHistoryServiceTestSuite) TestReceiptURL_WrongOwner() {
	sub := activeSubscription()
	tx := succeededTransaction(sub)

	suite.mockTxRepo.On("GetByID", suite.ctx, tx.ID).Return(tx, nil).Once()
	suite.mockSubRepo.On("GetByID", suite.ctx, sub.ID).Return(sub, nil).Once()

	url, err := suite.service.ReceiptURL(suite.ctx, suite.userID, tx.ID)
	assert.ErrorIs(suite.T(), err, ErrNotOwner)
	assert.Empty(suite.T(), url)
	suite.mockStorage.AssertNotCalled(suite.T(), "UploadDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *BillingHistoryServiceTestSuite) TestReceiptURL_FailedTransactionHasNoReceipt() {
	sub := activeSubscription()
	sub.UserID = suite.userID
	tx := succeededTransaction(sub)
	tx.Status = models.TransactionFailed

	suite.mockTxRepo.On("GetByID", suite.ctx, tx.ID).Return(tx, nil).Once()
	suite.mockSubRepo.On("GetByID", suite.ctx, sub.ID).Return(sub, nil).Once()

	url, err := suite.service.ReceiptURL(suite.ctx, suite.userID, tx.ID)
	assert.ErrorIs(suite.T(), err, ErrTransactionNotFound)
	assert.Empty(suite.T(), url)
}

func (suite *BillingHistoryServiceTestSuite) TestReceiptURL_UnknownTransaction() {
	missing := uuid.New()
	suite.mockTxRepo.On("GetByID", suite.ctx, missing).Return(nil, repositories.ErrNotFound).Once()

	url, err := suite.service.ReceiptURL(suite.ctx, suite.userID, missing)
	assert.ErrorIs(suite.T(), err, ErrTransactionNotFound)
	assert.Empty(suite.T(), url)
}

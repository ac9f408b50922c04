package revshare_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"ms-revenue/internal/models"
	"ms-revenue/internal/revshare"
	"ms-revenue/internal/revshare/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetBookingGraph(ctx context.Context, bookingID string) (*db.BookingGraph, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.BookingGraph), args.Error(1)
}

func (m *MockDBLayer) CreateShareInCohort(ctx context.Context, p db.ShareParams) (*db.ShareResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.ShareResult), args.Error(1)
}

func (m *MockDBLayer) CountConfirmedInCohort(ctx context.Context, shareType, cohortKey, excludeBookingID string) (int, error) {
	args := m.Called(ctx, shareType, cohortKey, excludeBookingID)
	return args.Int(0), args.Error(1)
}

func (m *MockDBLayer) GetSharesByModerator(ctx context.Context, moderatorID, status string) ([]models.RevenueShare, error) {
	args := m.Called(ctx, moderatorID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RevenueShare), args.Error(1)
}

func (m *MockDBLayer) GetSharesByBooking(ctx context.Context, bookingID string) ([]models.RevenueShare, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RevenueShare), args.Error(1)
}

func (m *MockDBLayer) MarkSharePaid(ctx context.Context, shareID string) error {
	args := m.Called(ctx, shareID)
	return args.Error(0)
}

type MockCodeResolver struct {
	mock.Mock
}

func (m *MockCodeResolver) Validate(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) PublishShareCreated(share models.RevenueShare) error {
	args := m.Called(share)
	return args.Error(0)
}

func newTestService() (*revshare.Service, *MockDBLayer, *MockCodeResolver, *MockUserDirectory, *MockKafkaPublisher) {
	mockDB := new(MockDBLayer)
	mockCodes := new(MockCodeResolver)
	mockUsers := new(MockUserDirectory)
	mockKafka := new(MockKafkaPublisher)
	svc := revshare.NewService(mockDB, mockCodes, mockUsers, mockKafka, nil)
	return svc, mockDB, mockCodes, mockUsers, mockKafka
}

func TestProcessSkipsUnconfirmedBooking(t *testing.T) {
	svc, mockDB, _, _, _ := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID: "booking-1",
		Status:    models.BookingPending,
	}, nil)

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)

	assert.False(t, result.Processed)
	assert.Equal(t, revshare.SkipBookingNotConfirmed, result.SkipReason)
	assert.Empty(t, result.Outcomes)
	mockDB.AssertNotCalled(t, "CreateShareInCohort", mock.Anything, mock.Anything)
}

func TestProcessMissingBookingFails(t *testing.T) {
	svc, mockDB, _, _, _ := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	result, err := svc.Process(context.Background(), "missing")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProcessDualEligibleBookingCreatesBothShares(t *testing.T) {
	svc, mockDB, mockCodes, _, mockKafka := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID:         "booking-1",
		Status:            models.BookingConfirmed,
		TotalPrice:        1000,
		ReferralCodeUsed:  "MOD-ABCD",
		HostID:            "host-1",
		ApplicationStatus: models.ApplicationApproved,
		OnboardedByID:     "mod-onboard",
	}, nil)

	mockCodes.On("Validate", mock.Anything, "MOD-ABCD").Return(&models.User{
		ID:   "mod-referral",
		Role: models.RoleModerator,
	}, nil)

	onboardingShare := &models.RevenueShare{
		ID:               "share-1",
		ModeratorID:      "mod-onboard",
		BookingID:        "booking-1",
		ShareType:        models.ShareTypeOnboarding,
		BookingNumber:    1,
		ActualPercentage: 5.0,
		Amount:           50,
		Status:           models.ShareStatusPending,
	}
	referralShare := &models.RevenueShare{
		ID:               "share-2",
		ModeratorID:      "mod-referral",
		BookingID:        "booking-1",
		ShareType:        models.ShareTypeReferral,
		BookingNumber:    3,
		ActualPercentage: 4.8,
		Amount:           48,
		Status:           models.ShareStatusPending,
	}

	mockDB.On("CreateShareInCohort", mock.Anything, db.ShareParams{
		ModeratorID: "mod-onboard",
		BookingID:   "booking-1",
		ShareType:   models.ShareTypeOnboarding,
		CohortKey:   "host-1",
		TotalPrice:  1000,
	}).Return(&db.ShareResult{Share: onboardingShare, BookingNumber: 1, Percentage: 5.0}, nil)

	mockDB.On("CreateShareInCohort", mock.Anything, db.ShareParams{
		ModeratorID: "mod-referral",
		BookingID:   "booking-1",
		ShareType:   models.ShareTypeReferral,
		CohortKey:   "MOD-ABCD",
		TotalPrice:  1000,
	}).Return(&db.ShareResult{Share: referralShare, BookingNumber: 3, Percentage: 4.8}, nil)

	mockKafka.On("PublishShareCreated", mock.Anything).Return(nil).Twice()

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)

	assert.True(t, result.Processed)
	require.Len(t, result.Outcomes, 2)

	assert.Equal(t, models.ShareTypeOnboarding, result.Outcomes[0].ShareType)
	assert.True(t, result.Outcomes[0].Created)
	assert.Equal(t, "share-1", result.Outcomes[0].ShareID)
	assert.Equal(t, 50.0, result.Outcomes[0].Amount)

	assert.Equal(t, models.ShareTypeReferral, result.Outcomes[1].ShareType)
	assert.True(t, result.Outcomes[1].Created)
	assert.Equal(t, 3, result.Outcomes[1].BookingNumber)

	mockKafka.AssertNumberOfCalls(t, "PublishShareCreated", 2)
}

func TestProcessSkipsWhenHostNotOnboarded(t *testing.T) {
	svc, mockDB, _, _, _ := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID:  "booking-1",
		Status:     models.BookingConfirmed,
		TotalPrice: 500,
		HostID:     "host-1",
		// No approved application, no referral code.
	}, nil)

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)

	assert.True(t, result.Processed)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, revshare.SkipHostNotOnboarded, result.Outcomes[0].SkipReason)
	assert.Equal(t, revshare.SkipNoReferralCode, result.Outcomes[1].SkipReason)
	mockDB.AssertNotCalled(t, "CreateShareInCohort", mock.Anything, mock.Anything)
}

func TestProcessSkipsWhenCodeIsNotModeratorOwned(t *testing.T) {
	svc, mockDB, mockCodes, _, _ := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID:        "booking-1",
		Status:           models.BookingConfirmed,
		TotalPrice:       500,
		HostID:           "host-1",
		ReferralCodeUsed: "MOD-ZZZZ",
	}, nil)

	// Resolver answers nil for stale or non-moderator codes.
	mockCodes.On("Validate", mock.Anything, "MOD-ZZZZ").Return(nil, nil)

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, revshare.SkipCodeNotModerator, result.Outcomes[1].SkipReason)
	mockDB.AssertNotCalled(t, "CreateShareInCohort", mock.Anything, mock.Anything)
}

func TestProcessReportsDuplicateAsSkipped(t *testing.T) {
	svc, mockDB, _, _, mockKafka := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID:         "booking-1",
		Status:            models.BookingConfirmed,
		TotalPrice:        500,
		HostID:            "host-1",
		ApplicationStatus: models.ApplicationApproved,
		OnboardedByID:     "mod-1",
	}, nil)

	mockDB.On("CreateShareInCohort", mock.Anything, mock.Anything).
		Return(&db.ShareResult{AlreadyProcessed: true}, nil)

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)

	assert.True(t, result.Processed)
	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.Outcomes[0].Created)
	assert.Equal(t, revshare.SkipAlreadyProcessed, result.Outcomes[0].SkipReason)
	mockKafka.AssertNotCalled(t, "PublishShareCreated", mock.Anything)
}

func TestProcessReportsZeroAmountAsSkipped(t *testing.T) {
	svc, mockDB, _, _, mockKafka := newTestService()

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID:         "booking-1",
		Status:            models.BookingConfirmed,
		TotalPrice:        500,
		HostID:            "host-1",
		ApplicationStatus: models.ApplicationApproved,
		OnboardedByID:     "mod-1",
	}, nil)

	mockDB.On("CreateShareInCohort", mock.Anything, mock.Anything).
		Return(&db.ShareResult{BookingNumber: 60, Percentage: 0}, nil)

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.Outcomes[0].Created)
	assert.Equal(t, revshare.SkipZeroAmount, result.Outcomes[0].SkipReason)
	assert.Equal(t, 60, result.Outcomes[0].BookingNumber)
	mockKafka.AssertNotCalled(t, "PublishShareCreated", mock.Anything)
}

func TestProcessSurvivesKafkaPublishFailure(t *testing.T) {
	svc, mockDB, _, _, mockKafka := newTestService()

	share := &models.RevenueShare{
		ID:          "share-1",
		ModeratorID: "mod-1",
		BookingID:   "booking-1",
		ShareType:   models.ShareTypeOnboarding,
		Amount:      25,
	}

	mockDB.On("GetBookingGraph", mock.Anything, "booking-1").Return(&db.BookingGraph{
		BookingID:         "booking-1",
		Status:            models.BookingConfirmed,
		TotalPrice:        500,
		HostID:            "host-1",
		ApplicationStatus: models.ApplicationApproved,
		OnboardedByID:     "mod-1",
	}, nil)
	mockDB.On("CreateShareInCohort", mock.Anything, mock.Anything).
		Return(&db.ShareResult{Share: share, BookingNumber: 1, Percentage: 5.0}, nil)

	mockKafka.On("PublishShareCreated", mock.Anything).Return(errors.New("broker down"))

	result, err := svc.Process(context.Background(), "booking-1")
	require.NoError(t, err)
	assert.True(t, result.Outcomes[0].Created)
}

func TestCountConfirmedForReferralCode(t *testing.T) {
	svc, mockDB, _, mockUsers, _ := newTestService()

	mockUsers.On("GetUserByID", mock.Anything, "mod-1").Return(&models.User{
		ID:           "mod-1",
		Role:         models.RoleModerator,
		ReferralCode: "MOD-ABCD",
	}, nil)
	mockDB.On("CountConfirmedInCohort", mock.Anything, models.ShareTypeReferral, "MOD-ABCD", "").
		Return(7, nil)

	count, err := svc.CountConfirmedForReferralCode(context.Background(), "mod-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestCountConfirmedForReferralCodeWithoutCode(t *testing.T) {
	svc, mockDB, _, mockUsers, _ := newTestService()

	mockUsers.On("GetUserByID", mock.Anything, "mod-1").Return(&models.User{
		ID:   "mod-1",
		Role: models.RoleModerator,
	}, nil)

	count, err := svc.CountConfirmedForReferralCode(context.Background(), "mod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	mockDB.AssertNotCalled(t, "CountConfirmedInCohort", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCountConfirmedForHost(t *testing.T) {
	svc, mockDB, _, _, _ := newTestService()

	mockDB.On("CountConfirmedInCohort", mock.Anything, models.ShareTypeOnboarding, "host-1", "").
		Return(12, nil)

	count, err := svc.CountConfirmedForHost(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

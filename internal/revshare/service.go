package revshare

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-revenue/internal/logger"
	"ms-revenue/internal/models"
	"ms-revenue/internal/revshare/db"
)

type DBLayer interface {
	GetBookingGraph(ctx context.Context, bookingID string) (*db.BookingGraph, error)
	CreateShareInCohort(ctx context.Context, p db.ShareParams) (*db.ShareResult, error)
	CountConfirmedInCohort(ctx context.Context, shareType, cohortKey, excludeBookingID string) (int, error)
	GetSharesByModerator(ctx context.Context, moderatorID, status string) ([]models.RevenueShare, error)
	GetSharesByBooking(ctx context.Context, bookingID string) ([]models.RevenueShare, error)
	MarkSharePaid(ctx context.Context, shareID string) error
}

// CodeResolver validates booking-time referral codes.
type CodeResolver interface {
	Validate(ctx context.Context, code string) (*models.User, error)
}

// UserDirectory resolves moderator accounts for the dashboard metrics.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type KafkaPublisher interface {
	PublishShareCreated(share models.RevenueShare) error
}

// SkipReason says why a path produced no ledger row. Callers and tests
// assert on it instead of inferring from the absence of a row.
type SkipReason string

const (
	SkipBookingNotConfirmed SkipReason = "booking_not_confirmed"
	SkipHostNotOnboarded    SkipReason = "host_not_onboarded"
	SkipNoReferralCode      SkipReason = "no_referral_code"
	SkipCodeNotModerator    SkipReason = "referral_code_not_moderator"
	SkipZeroAmount          SkipReason = "zero_amount"
	SkipAlreadyProcessed    SkipReason = "already_processed"
)

// ShareOutcome reports what one attribution path did for a booking.
type ShareOutcome struct {
	ShareType     string     `json:"share_type"`
	Created       bool       `json:"created"`
	ShareID       string     `json:"share_id,omitempty"`
	BookingNumber int        `json:"booking_number,omitempty"`
	Percentage    float64    `json:"percentage,omitempty"`
	Amount        float64    `json:"amount,omitempty"`
	SkipReason    SkipReason `json:"skip_reason,omitempty"`
}

// ProcessResult is the full outcome of one confirmation delivery.
type ProcessResult struct {
	BookingID  string         `json:"booking_id"`
	Processed  bool           `json:"processed"`
	SkipReason SkipReason     `json:"skip_reason,omitempty"`
	Outcomes   []ShareOutcome `json:"outcomes,omitempty"`
}

// Service is the revenue share processor: on a confirmed booking it runs
// the onboarding and referral attribution paths and writes zero, one, or
// two ledger rows.
type Service struct {
	DB     DBLayer
	Codes  CodeResolver
	Users  UserDirectory
	Kafka  KafkaPublisher
	Logger *logger.Logger
}

func NewService(dbLayer DBLayer, codes CodeResolver, users UserDirectory, kafka KafkaPublisher, log *logger.Logger) *Service {
	return &Service{DB: dbLayer, Codes: codes, Users: users, Kafka: kafka, Logger: log}
}

// Process handles one booking-confirmation delivery. Safe to invoke on a
// booking of any status (non-CONFIRMED is a no-op) and safe to invoke
// more than once per booking (duplicates surface as Skipped outcomes).
// A missing booking is a fatal error surfaced to the caller, whose own
// retry policy applies.
func (s *Service) Process(ctx context.Context, bookingID string) (*ProcessResult, error) {
	graph, err := s.DB.GetBookingGraph(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s not found: %w", bookingID, err)
		}
		return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}

	result := &ProcessResult{BookingID: bookingID}

	if graph.Status != models.BookingConfirmed {
		result.SkipReason = SkipBookingNotConfirmed
		s.logShare("SKIP", bookingID, fmt.Sprintf("status is %s, nothing to attribute", graph.Status))
		return result, nil
	}
	result.Processed = true

	// Onboarding path: the moderator who approved this host earns a cut
	// of every booking the host confirms, decaying per host cohort.
	if graph.ApplicationStatus == models.ApplicationApproved && graph.OnboardedByID != "" {
		outcome, err := s.createShare(ctx, db.ShareParams{
			ModeratorID: graph.OnboardedByID,
			BookingID:   bookingID,
			ShareType:   models.ShareTypeOnboarding,
			CohortKey:   graph.HostID,
			TotalPrice:  graph.TotalPrice,
		})
		if err != nil {
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
	} else {
		result.Outcomes = append(result.Outcomes, ShareOutcome{
			ShareType:  models.ShareTypeOnboarding,
			SkipReason: SkipHostNotOnboarded,
		})
	}

	// Referral path: the moderator whose code was captured at booking
	// time earns a cut, decaying per referral-code cohort.
	referralOutcome, err := s.referralPath(ctx, graph)
	if err != nil {
		return nil, err
	}
	result.Outcomes = append(result.Outcomes, referralOutcome)

	return result, nil
}

func (s *Service) referralPath(ctx context.Context, graph *db.BookingGraph) (ShareOutcome, error) {
	if graph.ReferralCodeUsed == "" {
		return ShareOutcome{ShareType: models.ShareTypeReferral, SkipReason: SkipNoReferralCode}, nil
	}

	moderator, err := s.Codes.Validate(ctx, graph.ReferralCodeUsed)
	if err != nil {
		return ShareOutcome{}, fmt.Errorf("failed to validate referral code: %w", err)
	}
	if moderator == nil {
		s.logShare("SKIP", graph.BookingID, fmt.Sprintf("referral code %s does not resolve to a moderator", graph.ReferralCodeUsed))
		return ShareOutcome{ShareType: models.ShareTypeReferral, SkipReason: SkipCodeNotModerator}, nil
	}

	return s.createShare(ctx, db.ShareParams{
		ModeratorID: moderator.ID,
		BookingID:   graph.BookingID,
		ShareType:   models.ShareTypeReferral,
		CohortKey:   graph.ReferralCodeUsed,
		TotalPrice:  graph.TotalPrice,
	})
}

func (s *Service) createShare(ctx context.Context, p db.ShareParams) (ShareOutcome, error) {
	res, err := s.DB.CreateShareInCohort(ctx, p)
	if err != nil {
		return ShareOutcome{}, fmt.Errorf("failed to record %s share for booking %s: %w", p.ShareType, p.BookingID, err)
	}

	if res.AlreadyProcessed {
		s.logShare("DUPLICATE", p.BookingID, fmt.Sprintf("%s share already recorded", p.ShareType))
		return ShareOutcome{ShareType: p.ShareType, SkipReason: SkipAlreadyProcessed}, nil
	}

	if res.Share == nil {
		s.logShare("SKIP", p.BookingID, fmt.Sprintf("%s share decayed to zero at booking %d", p.ShareType, res.BookingNumber))
		return ShareOutcome{
			ShareType:     p.ShareType,
			BookingNumber: res.BookingNumber,
			Percentage:    res.Percentage,
			SkipReason:    SkipZeroAmount,
		}, nil
	}

	s.logShare("CREATED", p.BookingID, fmt.Sprintf("%s share %s: booking %d, %.1f%%, %.2f",
		p.ShareType, res.Share.ID, res.Share.BookingNumber, res.Share.ActualPercentage, res.Share.Amount))

	if s.Kafka != nil {
		if err := s.Kafka.PublishShareCreated(*res.Share); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish share created event: %v", err))
		}
	}

	return ShareOutcome{
		ShareType:     p.ShareType,
		Created:       true,
		ShareID:       res.Share.ID,
		BookingNumber: res.Share.BookingNumber,
		Percentage:    res.Share.ActualPercentage,
		Amount:        res.Share.Amount,
	}, nil
}

// CountConfirmedForHost → general per-host metric for dashboards
func (s *Service) CountConfirmedForHost(ctx context.Context, hostID string) (int, error) {
	return s.DB.CountConfirmedInCohort(ctx, models.ShareTypeOnboarding, hostID, "")
}

// CountConfirmedForReferralCode resolves the moderator's current code and
// counts the CONFIRMED bookings carrying it.
func (s *Service) CountConfirmedForReferralCode(ctx context.Context, moderatorID string) (int, error) {
	user, err := s.Users.GetUserByID(ctx, moderatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("moderator %s not found: %w", moderatorID, err)
		}
		return 0, err
	}
	if user.ReferralCode == "" {
		return 0, nil
	}
	return s.DB.CountConfirmedInCohort(ctx, models.ShareTypeReferral, user.ReferralCode, "")
}

// SharesByModerator → ledger reads for payout dashboards
func (s *Service) SharesByModerator(ctx context.Context, moderatorID, status string) ([]models.RevenueShare, error) {
	return s.DB.GetSharesByModerator(ctx, moderatorID, status)
}

// MarkPaid flips one PENDING share to PAID on behalf of the payout flow.
func (s *Service) MarkPaid(ctx context.Context, shareID string) error {
	return s.DB.MarkSharePaid(ctx, shareID)
}

func (s *Service) logShare(action, bookingID, message string) {
	if s.Logger != nil {
		s.Logger.LogShare(action, bookingID, message)
	}
}

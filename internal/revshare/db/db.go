package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-revenue/internal/database"
	"ms-revenue/internal/models"
	"ms-revenue/internal/revshare/calc"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

var errDuplicateShare = errors.New("revenue share already recorded for booking")

// ErrShareNotPayable means MarkSharePaid found no PENDING row: the share
// does not exist or was already paid. Callers map it to a client error
// rather than a server failure.
var ErrShareNotPayable = errors.New("share not found or already paid")

// BookingGraph is the one-read view the processor works from: the booking
// joined to its dinner's host and the host's approved application.
type BookingGraph struct {
	BookingID         string  `bun:"booking_id"`
	Status            string  `bun:"status"`
	TotalPrice        float64 `bun:"total_price"`
	ReferralCodeUsed  string  `bun:"referral_code_used"`
	HostID            string  `bun:"host_id"`
	ApplicationStatus string  `bun:"application_status"`
	OnboardedByID     string  `bun:"onboarded_by_id"`
}

// GetBookingGraph → fetch the booking with its host and onboarding state
func (d *DB) GetBookingGraph(ctx context.Context, bookingID string) (*BookingGraph, error) {
	var g BookingGraph
	err := d.Bun.NewSelect().
		Table("bookings").
		ColumnExpr("bookings.id AS booking_id").
		ColumnExpr("bookings.status AS status").
		ColumnExpr("bookings.total_price AS total_price").
		ColumnExpr("COALESCE(bookings.referral_code_used, '') AS referral_code_used").
		ColumnExpr("dinners.host_id AS host_id").
		ColumnExpr("COALESCE(host_applications.status, '') AS application_status").
		ColumnExpr("COALESCE(host_applications.onboarded_by_id, '') AS onboarded_by_id").
		Join("JOIN dinners ON dinners.id = bookings.dinner_id").
		Join("LEFT JOIN host_applications ON host_applications.host_id = dinners.host_id AND host_applications.status = ?", models.ApplicationApproved).
		Where("bookings.id = ?", bookingID).
		Limit(1).
		Scan(ctx, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ShareParams describes one attribution a confirmed booking may earn.
type ShareParams struct {
	ModeratorID string
	BookingID   string
	ShareType   string
	// CohortKey is the host ID for ONBOARDING, the referral code string
	// for REFERRAL.
	CohortKey  string
	TotalPrice float64
}

// ShareResult reports what one CreateShareInCohort call did.
type ShareResult struct {
	// Share is nil when no row was persisted (zero amount or duplicate).
	Share            *models.RevenueShare
	BookingNumber    int
	Percentage       float64
	AlreadyProcessed bool
}

// CreateShareInCohort assigns the booking its cohort ordinal and persists
// the ledger row, all in one transaction. The ordinal comes from an
// upsert-increment on the cohort counter row; the row lock it takes
// serializes concurrent confirmations within the cohort. A duplicate
// delivery trips the (booking_id, share_type) unique index, the whole
// transaction (counter included) rolls back, and the call reports
// AlreadyProcessed instead of an error.
func (d *DB) CreateShareInCohort(ctx context.Context, p ShareParams) (*ShareResult, error) {
	res := &ShareResult{}

	// A free booking yields a zero amount at every ordinal, so it never
	// consumes one. Re-delivering it is then a pure no-op.
	if p.TotalPrice <= 0 {
		return res, nil
	}

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.RevenueShare)(nil)).
			Where("booking_id = ?", p.BookingID).
			Where("share_type = ?", p.ShareType).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check existing share: %w", err)
		}
		if exists {
			return errDuplicateShare
		}

		counter := &models.CohortCounter{
			ShareType:   p.ShareType,
			CohortKey:   p.CohortKey,
			NextOrdinal: 1,
		}
		_, err = tx.NewInsert().
			Model(counter).
			On("CONFLICT (share_type, cohort_key) DO UPDATE").
			Set("next_ordinal = next_ordinal + 1").
			Returning("next_ordinal").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to advance cohort counter: %w", err)
		}

		res.BookingNumber = counter.NextOrdinal

		pct, err := calc.Share(counter.NextOrdinal)
		if err != nil {
			return err
		}
		res.Percentage = pct

		amount := calc.Amount(p.TotalPrice, pct)
		if amount <= 0 {
			// The booking still consumes its ordinal; nothing is owed.
			return nil
		}

		share := &models.RevenueShare{
			ID:               uuid.NewString(),
			ModeratorID:      p.ModeratorID,
			BookingID:        p.BookingID,
			ShareType:        p.ShareType,
			BasePercentage:   calc.BasePercentage,
			BookingNumber:    counter.NextOrdinal,
			ActualPercentage: pct,
			Amount:           amount,
			Status:           models.ShareStatusPending,
			CreatedAt:        time.Now(),
		}
		if _, err := tx.NewInsert().Model(share).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return errDuplicateShare
			}
			return fmt.Errorf("failed to insert revenue share: %w", err)
		}

		res.Share = share
		return nil
	})

	if errors.Is(err, errDuplicateShare) {
		return &ShareResult{AlreadyProcessed: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CountConfirmedInCohort is the single cohort-counting primitive: how many
// CONFIRMED bookings belong to the cohort, optionally excluding one
// booking ID. Both dashboard metrics parameterize it.
func (d *DB) CountConfirmedInCohort(ctx context.Context, shareType, cohortKey, excludeBookingID string) (int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("booking.status = ?", models.BookingConfirmed)

	switch shareType {
	case models.ShareTypeOnboarding:
		q = q.Join("JOIN dinners ON dinners.id = booking.dinner_id").
			Where("dinners.host_id = ?", cohortKey)
	case models.ShareTypeReferral:
		q = q.Where("booking.referral_code_used = ?", cohortKey)
	default:
		return 0, fmt.Errorf("unknown share type: %s", shareType)
	}

	if excludeBookingID != "" {
		q = q.Where("booking.id != ?", excludeBookingID)
	}

	return q.Count(ctx)
}

// GetSharesByModerator → ledger rows for payout dashboards, optionally
// filtered by status
func (d *DB) GetSharesByModerator(ctx context.Context, moderatorID, status string) ([]models.RevenueShare, error) {
	var shares []models.RevenueShare
	q := d.Bun.NewSelect().
		Model(&shares).
		Where("moderator_id = ?", moderatorID).
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return shares, nil
}

// GetSharesByBooking → all ledger rows written for one booking
func (d *DB) GetSharesByBooking(ctx context.Context, bookingID string) ([]models.RevenueShare, error) {
	var shares []models.RevenueShare
	err := d.Bun.NewSelect().
		Model(&shares).
		Where("booking_id = ?", bookingID).
		Order("share_type").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// MarkSharePaid flips a PENDING share to PAID. The status guard in the
// WHERE clause makes the flip happen exactly once.
func (d *DB) MarkSharePaid(ctx context.Context, shareID string) error {
	now := time.Now()
	result, err := d.Bun.NewUpdate().
		Model((*models.RevenueShare)(nil)).
		Set("status = ?", models.ShareStatusPaid).
		Set("paid_at = ?", now).
		Where("id = ?", shareID).
		Where("status = ?", models.ShareStatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("share %s: %w", shareID, ErrShareNotPayable)
	}
	return nil
}

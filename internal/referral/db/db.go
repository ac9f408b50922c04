package db

import (
	"context"

	"ms-revenue/internal/database"
	"ms-revenue/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetUserByID → fetch one user by its ID
func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByReferralCode → fetch the owner of a code, if any
func (d *DB) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("referral_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AssignReferralCode writes a candidate code onto a user who does not
// hold one yet. There is deliberately no pre-check: the unique index on
// users.referral_code is the only authority for cross-user collisions,
// and the IS NULL guard is the only authority for same-user races. A
// conflict means the code belongs to another user; assigned=false with
// no conflict means a concurrent call already gave this user a code.
func (d *DB) AssignReferralCode(ctx context.Context, userID, code string) (assigned bool, conflict bool, err error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("referral_code = ?", code).
		Where("id = ?", userID).
		Where("referral_code IS NULL").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, true, nil
		}
		return false, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	if affected == 0 {
		return false, false, nil
	}
	return true, false, nil
}

package referral

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"ms-revenue/internal/logger"
	"ms-revenue/internal/models"
)

// Codes look like MOD-7KXQ. The alphabet drops 0/O/I/1 so a code read
// aloud or off a QR print cannot be mistyped.
const (
	codePrefix   = "MOD-"
	codeLength   = 4
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxGenerateAttempts = 10
)

// ErrGenerationExhausted means the generator collided with existing codes
// on every attempt. With a 32^4 code space this indicates either absurd
// moderator counts or a broken random source, so it is fatal rather than
// retried forever.
var ErrGenerationExhausted = errors.New("referral code generation exhausted retry budget")

// ErrUserNotFound is returned by EnsureCode for an unknown user ID.
var ErrUserNotFound = errors.New("user not found")

type DBLayer interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	AssignReferralCode(ctx context.Context, userID, code string) (assigned bool, conflict bool, err error)
}

// ValidateCache is an optional read-through cache in front of Validate.
type ValidateCache interface {
	GetModerator(ctx context.Context, code string) (*models.User, bool)
	SetModerator(ctx context.Context, code string, user *models.User)
}

type KafkaPublisher interface {
	PublishCodeAssigned(userID, code string) error
}

// Registry issues and resolves moderator referral codes.
type Registry struct {
	DB     DBLayer
	Cache  ValidateCache
	Kafka  KafkaPublisher
	Logger *logger.Logger
}

func NewRegistry(db DBLayer, cache ValidateCache, kafka KafkaPublisher, log *logger.Logger) *Registry {
	return &Registry{DB: db, Cache: cache, Kafka: kafka, Logger: log}
}

// EnsureCode returns the user's referral code, generating and persisting
// one if the user has none yet. Idempotent: a second call returns the
// same code.
func (r *Registry) EnsureCode(ctx context.Context, userID string) (string, error) {
	user, err := r.DB.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return "", fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	if user.ReferralCode != "" {
		return user.ReferralCode, nil
	}

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to draw referral code: %w", err)
		}

		assigned, conflict, err := r.DB.AssignReferralCode(ctx, userID, code)
		if err != nil {
			return "", fmt.Errorf("failed to assign referral code: %w", err)
		}
		if conflict {
			if r.Logger != nil {
				r.Logger.Warn("REFERRAL", fmt.Sprintf("code collision on attempt %d for user %s", attempt, userID))
			}
			continue
		}
		if !assigned {
			// A concurrent ensure for the same user won; hand back the
			// code it persisted instead of overwriting it.
			winner, err := r.DB.GetUserByID(ctx, userID)
			if err != nil {
				return "", fmt.Errorf("failed to re-read user %s after lost assignment: %w", userID, err)
			}
			if winner.ReferralCode != "" {
				return winner.ReferralCode, nil
			}
			continue
		}

		if r.Logger != nil {
			r.Logger.LogReferral("ASSIGNED", code, fmt.Sprintf("assigned to user %s on attempt %d", userID, attempt))
		}
		if r.Kafka != nil {
			if err := r.Kafka.PublishCodeAssigned(userID, code); err != nil && r.Logger != nil {
				r.Logger.Error("KAFKA", fmt.Sprintf("failed to publish code assignment: %v", err))
			}
		}
		return code, nil
	}

	return "", ErrGenerationExhausted
}

// Validate resolves a code to its owning moderator. A code that does not
// exist, or that belongs to a non-moderator account, resolves to nil with
// no error: absence, not failure.
func (r *Registry) Validate(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		return nil, nil
	}

	if r.Cache != nil {
		if user, ok := r.Cache.GetModerator(ctx, code); ok {
			return user, nil
		}
	}

	user, err := r.DB.GetUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}

	if !user.IsModerator() {
		return nil, nil
	}

	if r.Cache != nil {
		r.Cache.SetModerator(ctx, code, user)
	}
	return user, nil
}

// randomCode draws one MOD-XXXX candidate from crypto/rand.
func randomCode() (string, error) {
	var b strings.Builder
	b.WriteString(codePrefix)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

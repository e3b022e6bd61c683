package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

// UpsertProfile creates the caller's profile with the free defaults. An
// existing row only has its identity columns refreshed. created reports
// whether the row was inserted by this call.
func (u *UserClient) UpsertProfile(ctx context.Context, email, fullName string) (created bool, err error) {
	const q = `
		INSERT INTO profiles (id, email, full_name, subscription_tier, search_credits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET email = COALESCE(EXCLUDED.email, profiles.email),
		    full_name = COALESCE(EXCLUDED.full_name, profiles.full_name)
		RETURNING (xmax = 0);
	`
	err = u.db.QueryRowContext(
		ctx,
		q,
		u.userID,
		nullIfEmpty(email),
		nullIfEmpty(fullName),
		models.TierFree,
		models.DefaultSearchCredits,
	).Scan(&created)
	return created, err
}

// Tier returns the caller's subscription tier, free when no profile exists.
func (u *UserClient) Tier(ctx context.Context) (models.Tier, error) {
	var tier sql.NullString
	err := u.db.QueryRowContext(ctx, `
		SELECT subscription_tier
		FROM profiles
		WHERE id = $1;
	`, u.userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !tier.Valid) {
		return models.TierFree, nil
	}
	if err != nil {
		return "", err
	}
	return models.Tier(tier.String), nil
}

// NotificationTarget reads the email and opt-in flag for userID. A missing
// profile yields an empty target.
func (s *Store) NotificationTarget(ctx context.Context, userID string) (models.NotificationTarget, error) {
	var (
		email   sql.NullString
		enabled sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT email, email_notifications
		FROM profiles
		WHERE id = $1;
	`, userID).Scan(&email, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationTarget{UserID: userID}, nil
	}
	if err != nil {
		return models.NotificationTarget{}, err
	}
	return models.NotificationTarget{
		UserID:             userID,
		Email:              email.String,
		EmailNotifications: !enabled.Valid || enabled.Bool,
	}, nil
}

// ApplyPurchase records a completed checkout on the buyer's profile. Empty
// tier and non-positive credits leave those columns unchanged.
func (s *Store) ApplyPurchase(ctx context.Context, userID string, tier models.Tier, credits int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET subscription_tier = COALESCE($1, subscription_tier),
		    search_credits = CASE WHEN $2 > 0 THEN $2 ELSE search_credits END
		WHERE id = $3;
	`, nullIfEmpty(string(tier)), credits, userID)
	return err
}

// StripeCustomerID returns the caller's processor customer id, empty when
// none has been created yet.
func (u *UserClient) StripeCustomerID(ctx context.Context) (string, error) {
	var id sql.NullString
	err := u.db.QueryRowContext(ctx, `
		SELECT stripe_customer_id
		FROM profiles
		WHERE id = $1;
	`, u.userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id.String, err
}

func (u *UserClient) SetStripeCustomerID(ctx context.Context, customerID string) error {
	_, err := u.db.ExecContext(ctx, `
		UPDATE profiles
		SET stripe_customer_id = $1
		WHERE id = $2;
	`, customerID, u.userID)
	return err
}

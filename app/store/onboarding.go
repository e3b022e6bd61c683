package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

func (u *UserClient) OnboardingProgress(ctx context.Context) (models.OnboardingProgress, error) {
	var p models.OnboardingProgress
	err := u.db.QueryRowContext(ctx, `
		SELECT has_completed_tour, has_added_property, has_verified_phone,
		       has_viewed_risk_score, has_generated_health_check
		FROM user_onboarding
		WHERE user_id = $1;
	`, u.userID).Scan(
		&p.HasCompletedTour,
		&p.HasAddedProperty,
		&p.HasVerifiedPhone,
		&p.HasViewedRiskScore,
		&p.HasGeneratedHealthCheck,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OnboardingProgress{}, nil
	}
	return p, err
}

// MarkMilestone sets one milestone flag and its timestamp for the caller.
func (u *UserClient) MarkMilestone(ctx context.Context, m models.Milestone) error {
	tsCol, ok := m.TimestampColumn()
	if !ok {
		return fmt.Errorf("unknown milestone %q", m)
	}
	// m and tsCol come from a closed set, so they are safe to interpolate
	q := fmt.Sprintf(`
		INSERT INTO user_onboarding (user_id, %[1]s, %[2]s, updated_at)
		VALUES ($1, TRUE, now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET %[1]s = TRUE,
		    %[2]s = COALESCE(user_onboarding.%[2]s, now()),
		    updated_at = now();
	`, string(m), tsCol)
	_, err := u.db.ExecContext(ctx, q, u.userID)
	return err
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

func (s *Store) InsertPaymentTransaction(ctx context.Context, t models.PaymentTransaction) error {
	meta, err := json.Marshal(map[string]any{
		"product_name":      t.ProductName,
		"subscription_tier": t.Tier,
		"search_credits":    t.SearchCredits,
	})
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payment_transactions (user_id, stripe_session_id, amount, status, product_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stripe_session_id) DO NOTHING;
	`, t.UserID, t.StripeSessionID, t.AmountCents, t.Status, t.ProductID, meta)
	return err
}

func (s *Store) CompletePaymentTransaction(ctx context.Context, sessionID, paymentIntentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = 'completed', stripe_payment_intent_id = $1
		WHERE stripe_session_id = $2;
	`, nullIfEmpty(paymentIntentID), sessionID)
	return err
}

// WebhookEventSeen reports whether eventID has already been processed.
func (s *Store) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT event_id FROM stripe_webhook_events WHERE event_id = $1;
	`, eventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) RecordWebhookEvent(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stripe_webhook_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING;
	`, eventID, eventType)
	return err
}

func (s *Store) InsertComplianceRun(ctx context.Context, run models.ComplianceRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_runs (run_type, status, completed_at, result_json)
		VALUES ($1, $2, $3, $4);
	`, run.RunType, string(run.Status), run.CompletedAt, run.ResultJSON)
	return err
}

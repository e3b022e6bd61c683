package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/analytics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/products"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

var (
	ErrMissingSignature     = errors.New("missing stripe-signature header")
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	ErrInvalidMetadata      = errors.New("invalid checkout metadata")
)

// SignatureError wraps a failed signature check.
type SignatureError struct{ Err error }

func (e *SignatureError) Error() string {
	return "webhook signature verification failed: " + e.Err.Error()
}

func (e *SignatureError) Unwrap() error { return e.Err }

type WebhookStore interface {
	WebhookEventSeen(ctx context.Context, eventID string) (bool, error)
	RecordWebhookEvent(ctx context.Context, eventID, eventType string) error
	CompletePaymentTransaction(ctx context.Context, sessionID, paymentIntentID string) error
	ApplyPurchase(ctx context.Context, userID string, tier models.Tier, credits int) error
}

// WorkflowStarter begins the post-purchase audit sequence.
type WorkflowStarter interface {
	Start(ctx context.Context, email string) (string, error)
}

type WebhookMailer interface {
	SendReceipt(ctx context.Context, to, productName string, amountCents int64) models.Result
	SendPaymentFailed(ctx context.Context, to string) models.Result
}

type Tracker interface {
	Capture(distinctID, event string, props map[string]any)
}

type WebhookResult struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type Webhook struct {
	secret   string
	store    WebhookStore
	workflow WorkflowStarter
	mailer   WebhookMailer
	tracker  Tracker
	log      *zap.Logger
}

func NewWebhook(secret string, store WebhookStore, workflow WorkflowStarter, mailer WebhookMailer, tracker Tracker, log *zap.Logger) *Webhook {
	return &Webhook{
		secret:   secret,
		store:    store,
		workflow: workflow,
		mailer:   mailer,
		tracker:  tracker,
		log:      logging.OrNop(log),
	}
}

// Handle verifies payload and applies the event once. An event is recorded
// as processed only after its side effects succeed, so a failure here makes
// the processor redeliver it.
func (w *Webhook) Handle(ctx context.Context, payload []byte, sigHeader string) (WebhookResult, error) {
	if sigHeader == "" {
		return WebhookResult{}, ErrMissingSignature
	}
	if w.secret == "" || w.store == nil {
		return WebhookResult{}, ErrWebhookNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookResult{}, &SignatureError{Err: err}
	}
	eventType := string(event.Type)

	seen, err := w.store.WebhookEventSeen(ctx, event.ID)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		metrics.WebhookEvents.WithLabelValues(eventType, "duplicate").Inc()
		return WebhookResult{Received: true, Duplicate: true}, nil
	}

	switch event.Type {
	case "checkout.session.completed":
		err = w.checkoutCompleted(ctx, event)
	case "invoice.payment_failed":
		err = w.paymentFailed(ctx, event)
	case "ping", "charge.succeeded":
	default:
		w.log.Info("unhandled stripe event type", zap.String("type", eventType))
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		w.log.Error("stripe webhook processing failed", zap.String("event_id", event.ID), zap.String("type", eventType), zap.Error(err))
		return WebhookResult{}, err
	}

	if err := w.store.RecordWebhookEvent(ctx, event.ID, eventType); err != nil {
		return WebhookResult{}, fmt.Errorf("record webhook event: %w", err)
	}
	metrics.WebhookEvents.WithLabelValues(eventType, "ok").Inc()
	return WebhookResult{Received: true}, nil
}

func (w *Webhook) checkoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("invalid session payload: %w", err)
	}
	if sess.ID == "" {
		w.log.Error("checkout.session.completed missing session id", zap.String("event_id", event.ID))
		return nil
	}

	paymentIntent := ""
	if sess.PaymentIntent != nil {
		paymentIntent = sess.PaymentIntent.ID
	}
	if err := w.store.CompletePaymentTransaction(ctx, sess.ID, paymentIntent); err != nil {
		w.log.Error("failed to update payment_transactions", zap.String("session_id", sess.ID), zap.Error(err))
	}

	meta, err := ParseMetadata(sess.Metadata)
	if err != nil {
		w.log.Warn("checkout metadata partly rejected", zap.String("session_id", sess.ID), zap.Error(err))
	}

	if meta.UserID == "" {
		w.log.Warn("checkout session without userId", zap.String("session_id", sess.ID))
	} else if meta.SubscriptionTier != "" || meta.SearchCredits > 0 {
		tier := models.Tier(meta.SubscriptionTier)
		if tier != "" && !tier.Valid() {
			w.log.Warn("ignoring unknown tier in checkout metadata", zap.String("tier", meta.SubscriptionTier))
			tier = ""
		}
		if err := w.store.ApplyPurchase(ctx, meta.UserID, tier, meta.SearchCredits); err != nil {
			return fmt.Errorf("apply purchase: %w", err)
		}
	}

	if w.tracker != nil && meta.UserID != "" {
		w.tracker.Capture(meta.UserID, analytics.EventCheckoutCompleted, map[string]any{
			"productId":   meta.ProductID,
			"amountTotal": sess.AmountTotal,
			"sessionId":   sess.ID,
		})
	}

	email := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}

	if meta.ProductID == products.PortfolioAuditID && w.workflow != nil {
		if email == "" {
			w.log.Error("portfolio audit purchase without customer email", zap.String("session_id", sess.ID))
		} else if _, err := w.workflow.Start(ctx, email); err != nil {
			return fmt.Errorf("start audit workflow: %w", err)
		}
	}

	if w.mailer != nil && email != "" {
		name := meta.ProductID
		if p, ok := products.ProductByID(meta.ProductID); ok {
			name = p.Name
		}
		if res := w.mailer.SendReceipt(ctx, email, name, sess.AmountTotal); !res.OK {
			w.log.Warn("receipt email not sent", zap.String("session_id", sess.ID), zap.String("error", res.Error))
		}
	}
	return nil
}

func (w *Webhook) paymentFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("invalid invoice payload: %w", err)
	}
	if inv.CustomerEmail == "" || w.mailer == nil {
		w.log.Warn("payment failed for invoice without email", zap.String("invoice_id", inv.ID))
		return nil
	}
	if res := w.mailer.SendPaymentFailed(ctx, inv.CustomerEmail); !res.OK {
		w.log.Warn("payment failed email not sent", zap.String("invoice_id", inv.ID), zap.String("error", res.Error))
	}
	return nil
}

// ParseMetadata reads checkout metadata with keys matched case-insensitively
// and ignoring underscores. A malformed searchCredits is reported alongside
// the fields that did parse.
func ParseMetadata(md map[string]string) (models.CheckoutMetadata, error) {
	norm := make(map[string]string, len(md))
	for k, v := range md {
		norm[strings.ReplaceAll(strings.ToLower(k), "_", "")] = strings.TrimSpace(v)
	}

	out := models.CheckoutMetadata{
		UserID:           norm["userid"],
		ProductID:        norm["productid"],
		SubscriptionTier: norm["subscriptiontier"],
	}
	if v := norm["searchcredits"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return out, fmt.Errorf("%w: searchCredits %q", ErrInvalidMetadata, v)
		}
		out.SearchCredits = n
	}
	return out, nil
}

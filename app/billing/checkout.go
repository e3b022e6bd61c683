// Package billing starts checkouts, reports their status and applies
// processor webhooks.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/products"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

var (
	ErrNotAuthenticated = errors.New("user must be authenticated to purchase")
	ErrProductNotFound  = errors.New("product not found")
	ErrNotConfigured    = errors.New("billing not configured")
	ErrNoClientSecret   = errors.New("failed to create checkout session")
	ErrNoCustomer       = errors.New("stripe customer missing for user")
)

// CustomerStore is the session-scoped store surface for processor customers.
type CustomerStore interface {
	StripeCustomerID(ctx context.Context) (string, error)
	SetStripeCustomerID(ctx context.Context, customerID string) error
}

type TransactionLog interface {
	InsertPaymentTransaction(ctx context.Context, t models.PaymentTransaction) error
}

type Checkout struct {
	proc      Processor
	customers func(userID string) CustomerStore
	txs       TransactionLog
	priceIDs  map[string]string
	siteURL   string
	log       *zap.Logger
}

type CheckoutConfig struct {
	PriceIDs map[string]string
	SiteURL  string
}

// NewCheckout accepts nil customers and txs; customer reuse and transaction
// logging are then skipped.
func NewCheckout(proc Processor, customers func(userID string) CustomerStore, txs TransactionLog, cfg CheckoutConfig, log *zap.Logger) *Checkout {
	return &Checkout{
		proc:      proc,
		customers: customers,
		txs:       txs,
		priceIDs:  cfg.PriceIDs,
		siteURL:   cfg.SiteURL,
		log:       logging.OrNop(log),
	}
}

// Start creates an embedded checkout session for productID and returns its
// client secret. Unknown products fail before the processor is called.
func (c *Checkout) Start(ctx context.Context, productID string) (string, error) {
	product, ok := products.ProductByID(productID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProductNotFound, productID)
	}

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return "", ErrNotAuthenticated
	}
	if c.proc.Sessions == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		UIMode:               stripe.String("embedded"),
		RedirectOnCompletion: stripe.String("never"),
		Mode:                 stripe.String(product.Mode()),
	}
	params.Context = ctx
	if customerID := c.ensureCustomer(ctx, claims.Subject, claims.Email()); customerID != "" {
		params.Customer = stripe.String(customerID)
	} else if email := claims.Email(); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("userId", claims.Subject)
	params.AddMetadata("productId", product.ID)
	params.AddMetadata("subscriptionTier", string(product.Tier))
	params.AddMetadata("searchCredits", strconv.Itoa(product.SearchCredits))
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{c.lineItem(product)}

	sess, err := c.proc.Sessions.New(params)
	if err != nil {
		c.log.Error("stripe checkout session failed", zap.String("product_id", product.ID), zap.Error(err))
		return "", err
	}

	if c.txs != nil {
		err := c.txs.InsertPaymentTransaction(ctx, models.PaymentTransaction{
			UserID:          claims.Subject,
			StripeSessionID: sess.ID,
			AmountCents:     product.PriceInCents,
			Status:          "pending",
			ProductID:       product.ID,
			ProductName:     product.Name,
			Tier:            product.Tier,
			SearchCredits:   product.SearchCredits,
		})
		if err != nil {
			c.log.Error("failed to log payment transaction", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	if sess.ClientSecret == "" {
		return "", ErrNoClientSecret
	}
	return sess.ClientSecret, nil
}

// lineItem prefers the configured price id and otherwise prices inline.
func (c *Checkout) lineItem(p products.Product) *stripe.CheckoutSessionLineItemParams {
	if id := c.priceIDs[p.ID]; id != "" {
		return &stripe.CheckoutSessionLineItemParams{Price: stripe.String(id), Quantity: stripe.Int64(1)}
	}

	data := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(p.Name),
			Description: stripe.String(p.Description),
		},
		UnitAmount: stripe.Int64(p.PriceInCents),
	}
	if p.Mode() == "subscription" {
		data.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{PriceData: data, Quantity: stripe.Int64(1)}
}

// ensureCustomer finds or creates the processor customer for userID. Any
// failure returns "" and checkout falls back to the customer email.
func (c *Checkout) ensureCustomer(ctx context.Context, userID, email string) string {
	if c.customers == nil || c.proc.Customers == nil {
		return ""
	}
	store := c.customers(userID)

	id, err := store.StripeCustomerID(ctx)
	if err != nil {
		c.log.Warn("stripe customer lookup failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if id != "" {
		return id
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("userId", userID)
	cust, err := c.proc.Customers.New(params)
	if err != nil {
		c.log.Warn("stripe customer create failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if err := store.SetStripeCustomerID(ctx, cust.ID); err != nil {
		c.log.Warn("failed to store stripe customer", zap.String("user_id", userID), zap.Error(err))
	}
	return cust.ID
}

// Status reports the processor's view of sessionID.
func (c *Checkout) Status(ctx context.Context, sessionID string) (models.PaymentStatus, error) {
	if c.proc.Sessions == nil {
		return models.PaymentStatus{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.proc.Sessions.Get(sessionID, params)
	if err != nil {
		return models.PaymentStatus{}, err
	}
	return models.PaymentStatus{
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}, nil
}

// PortalURL opens a customer portal session for the caller.
func (c *Checkout) PortalURL(ctx context.Context) (string, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return "", ErrNotAuthenticated
	}
	if c.proc.Portal == nil || c.customers == nil {
		return "", ErrNotConfigured
	}

	customerID, err := c.customers(userID).StripeCustomerID(ctx)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.siteURL + "/dashboard"),
	}
	params.Context = ctx
	sess, err := c.proc.Portal.New(params)
	if err != nil {
		c.log.Error("stripe portal session failed", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}
	return sess.URL, nil
}

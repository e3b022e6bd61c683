package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

type fakeSessions struct {
	params []*stripe.CheckoutSessionParams
	secret string
	err    error
}

func (f *fakeSessions) New(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", ClientSecret: f.secret}, nil
}

func (f *fakeSessions) Get(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{
		ID:            id,
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}

type fakeCustomers struct{ created int }

func (f *fakeCustomers) New(*stripe.CustomerParams) (*stripe.Customer, error) {
	f.created++
	return &stripe.Customer{ID: "cus_new"}, nil
}

type fakePortal struct{ customer string }

func (f *fakePortal) New(p *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	f.customer = *p.Customer
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.test/p/session"}, nil
}

type memCustomers struct {
	id     string
	lookup error
}

func (m *memCustomers) StripeCustomerID(context.Context) (string, error) { return m.id, m.lookup }

func (m *memCustomers) SetStripeCustomerID(_ context.Context, id string) error {
	m.id = id
	return nil
}

type memTxs struct{ txs []models.PaymentTransaction }

func (m *memTxs) InsertPaymentTransaction(_ context.Context, t models.PaymentTransaction) error {
	m.txs = append(m.txs, t)
	return nil
}

const buyer = "6f1c2d4e-8a9b-4c3d-9e2f-1a2b3c4d5e6f"

func buyerCtx() context.Context {
	return auth.WithClaims(context.Background(), &auth.Claims{
		Subject: buyer,
		Raw:     map[string]any{"email": "owner@example.com"},
	})
}

func newCheckout(s *fakeSessions, cust *memCustomers, txs *memTxs, prices map[string]string) (*Checkout, *fakeCustomers) {
	fc := &fakeCustomers{}
	proc := Processor{Sessions: s, Customers: fc, Portal: &fakePortal{}}
	return NewCheckout(proc, func(string) CustomerStore { return cust }, txs, CheckoutConfig{PriceIDs: prices, SiteURL: "https://app.test"}, nil), fc
}

func TestStartUnknownProductSkipsProcessor(t *testing.T) {
	s := &fakeSessions{secret: "secret"}
	c, _ := newCheckout(s, &memCustomers{}, &memTxs{}, nil)

	_, err := c.Start(buyerCtx(), "platinum-plan")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, s.params)
}

func TestStartRequiresSession(t *testing.T) {
	s := &fakeSessions{secret: "secret"}
	c, _ := newCheckout(s, &memCustomers{}, &memTxs{}, nil)

	_, err := c.Start(context.Background(), "professional-plan")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, s.params)
}

func TestStartInlinePrice(t *testing.T) {
	s := &fakeSessions{secret: "cs_secret_123"}
	cust := &memCustomers{}
	txs := &memTxs{}
	c, fc := newCheckout(s, cust, txs, map[string]string{})

	secret, err := c.Start(buyerCtx(), "professional-plan")
	require.NoError(t, err)
	assert.Equal(t, "cs_secret_123", secret)

	require.Len(t, s.params, 1)
	p := s.params[0]
	assert.Equal(t, "embedded", *p.UIMode)
	assert.Equal(t, "never", *p.RedirectOnCompletion)
	assert.Equal(t, "subscription", *p.Mode)
	assert.Equal(t, "cus_new", *p.Customer)
	assert.Equal(t, map[string]string{
		"userId":           buyer,
		"productId":        "professional-plan",
		"subscriptionTier": "professional",
		"searchCredits":    "100",
	}, p.Metadata)
	require.Len(t, p.LineItems, 1)
	require.NotNil(t, p.LineItems[0].PriceData)
	assert.Equal(t, int64(4900), *p.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "month", *p.LineItems[0].PriceData.Recurring.Interval)

	assert.Equal(t, 1, fc.created)
	assert.Equal(t, "cus_new", cust.id)
	require.Len(t, txs.txs, 1)
	assert.Equal(t, "cs_test_1", txs.txs[0].StripeSessionID)
	assert.Equal(t, "pending", txs.txs[0].Status)
}

func TestStartConfiguredPriceAndExistingCustomer(t *testing.T) {
	s := &fakeSessions{secret: "cs_secret"}
	c, fc := newCheckout(s, &memCustomers{id: "cus_existing"}, &memTxs{}, map[string]string{"portfolio-audit": "price_audit"})

	_, err := c.Start(buyerCtx(), "portfolio-audit")
	require.NoError(t, err)

	p := s.params[0]
	assert.Equal(t, "payment", *p.Mode)
	assert.Equal(t, "price_audit", *p.LineItems[0].Price)
	assert.Equal(t, "cus_existing", *p.Customer)
	assert.Zero(t, fc.created)
}

func TestStartFallsBackToEmailWhenCustomerLookupFails(t *testing.T) {
	s := &fakeSessions{secret: "cs_secret"}
	c, _ := newCheckout(s, &memCustomers{lookup: errors.New("timeout")}, &memTxs{}, nil)

	_, err := c.Start(buyerCtx(), "enterprise-plan")
	require.NoError(t, err)
	assert.Nil(t, s.params[0].Customer)
	assert.Equal(t, "owner@example.com", *s.params[0].CustomerEmail)
}

func TestStartEmptyClientSecret(t *testing.T) {
	txs := &memTxs{}
	c, _ := newCheckout(&fakeSessions{}, &memCustomers{}, txs, nil)

	_, err := c.Start(buyerCtx(), "professional-plan")
	assert.ErrorIs(t, err, ErrNoClientSecret)
	assert.Len(t, txs.txs, 1)
}

func TestStartProcessorError(t *testing.T) {
	txs := &memTxs{}
	c, _ := newCheckout(&fakeSessions{err: errors.New("card_declined")}, &memCustomers{}, txs, nil)

	_, err := c.Start(buyerCtx(), "professional-plan")
	assert.EqualError(t, err, "card_declined")
	assert.Empty(t, txs.txs)
}

func TestStatus(t *testing.T) {
	c, _ := newCheckout(&fakeSessions{}, &memCustomers{}, &memTxs{}, nil)
	st, err := c.Status(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatus{Status: "complete", PaymentStatus: "paid"}, st)
}

func TestPortalURL(t *testing.T) {
	c, _ := newCheckout(&fakeSessions{}, &memCustomers{id: "cus_1"}, &memTxs{}, nil)
	url, err := c.PortalURL(buyerCtx())
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/p/session", url)

	c, _ = newCheckout(&fakeSessions{}, &memCustomers{}, &memTxs{}, nil)
	_, err = c.PortalURL(buyerCtx())
	assert.ErrorIs(t, err, ErrNoCustomer)
}

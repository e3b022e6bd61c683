package billing

import (
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
)

// SessionAPI is the checkout session surface of the Stripe client.
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type CustomerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type PortalAPI interface {
	New(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// Processor groups the Stripe APIs billing calls.
type Processor struct {
	Sessions  SessionAPI
	Customers CustomerAPI
	Portal    PortalAPI
}

// NewProcessor returns API clients bound to secretKey instead of the package
// level stripe.Key.
func NewProcessor(secretKey string) Processor {
	b := stripe.GetBackend(stripe.APIBackend)
	return Processor{
		Sessions:  &session.Client{B: b, Key: secretKey},
		Customers: &customer.Client{B: b, Key: secretKey},
		Portal:    &portal.Client{B: b, Key: secretKey},
	}
}

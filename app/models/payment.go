package models

// PaymentStatus mirrors the processor's view of a checkout session.
type PaymentStatus struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

type PaymentTransaction struct {
	UserID          string
	StripeSessionID string
	AmountCents     int64
	Status          string
	ProductID       string
	ProductName     string
	Tier            Tier
	SearchCredits   int
}

// CheckoutMetadata is what the checkout session carries back to the webhook.
type CheckoutMetadata struct {
	UserID           string
	ProductID        string
	SubscriptionTier string
	SearchCredits    int
}

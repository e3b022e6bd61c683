// Package models defines profile, property, billing and run records.
package models

import "time"

type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Valid reports whether t is one of the known subscription tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStarter, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// DefaultSearchCredits is the allowance seeded on a new profile.
const DefaultSearchCredits = 10

type Profile struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email,omitempty"`
	FullName           string    `db:"full_name" json:"full_name,omitempty"`
	SubscriptionTier   Tier      `db:"subscription_tier" json:"subscription_tier"`
	EmailNotifications bool      `db:"email_notifications" json:"email_notifications"`
	SearchCredits      int       `db:"search_credits" json:"search_credits"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// NotificationTarget is the slice of a profile the notification gate reads.
type NotificationTarget struct {
	UserID             string
	Email              string
	EmailNotifications bool
}

// Package policy holds the pure decisions behind notifications and plan limits.
package policy

import (
	"fmt"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

type NotifyVerdict int

const (
	Send NotifyVerdict = iota
	SkipOptedOut
	FailNoEmail
)

// Notify decides whether a violation alert should be emailed to target.
func Notify(target models.NotificationTarget) NotifyVerdict {
	if target.Email == "" {
		return FailNoEmail
	}
	if !target.EmailNotifications {
		return SkipOptedOut
	}
	return Send
}

var propertyLimits = map[models.Tier]int{
	models.TierFree:         1,
	models.TierStarter:      5,
	models.TierProfessional: 10,
	models.TierEnterprise:   999999,
}

// PropertyLimit is the number of monitored properties a tier allows.
// Unknown tiers get the free allowance.
func PropertyLimit(tier models.Tier) int {
	if n, ok := propertyLimits[tier]; ok {
		return n
	}
	return propertyLimits[models.TierFree]
}

type LimitError struct {
	Tier    models.Tier
	Limit   int
	Current int
}

func (e LimitError) Error() string {
	return fmt.Sprintf("Your %s plan allows %d properties. Upgrade to add more.", e.Tier, e.Limit)
}

// CanAddProperties returns a LimitError when adding would exceed the tier limit.
func CanAddProperties(tier models.Tier, current, adding int) error {
	if adding < 0 {
		adding = 0
	}
	if !tier.Valid() {
		tier = models.TierFree
	}
	limit := PropertyLimit(tier)
	if current+adding > limit {
		return LimitError{Tier: tier, Limit: limit, Current: current}
	}
	return nil
}

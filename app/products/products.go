// Package products is the catalog of plans and one-time purchases.
package products

import (
	"fmt"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

type Product struct {
	ID            string
	Name          string
	Description   string
	PriceInCents  int64
	SearchCredits int
	Tier          models.Tier
	Features      []string
	// OneTime products are charged once instead of monthly.
	OneTime bool
}

const PortfolioAuditID = "portfolio-audit"

var catalog = []Product{
	{
		ID:            "starter-plan",
		Name:          "Starter",
		Description:   "Perfect for individual property searches",
		PriceInCents:  0,
		SearchCredits: 10,
		Tier:          models.TierFree,
		Features:      []string{"10 property searches", "Basic violation reports", "Email support", "Public data access"},
	},
	{
		ID:            "professional-plan",
		Name:          "Professional",
		Description:   "For real estate professionals and small teams",
		PriceInCents:  4900,
		SearchCredits: 100,
		Tier:          models.TierProfessional,
		Features:      []string{"100 property searches/month", "Advanced analytics", "PDF report exports", "Priority email support", "Historical violation data", "Bulk property searches"},
	},
	{
		ID:            "enterprise-plan",
		Name:          "Enterprise",
		Description:   "For large organizations and municipalities",
		PriceInCents:  19900,
		SearchCredits: 1000,
		Tier:          models.TierEnterprise,
		Features:      []string{"Unlimited property searches", "API access", "Custom integrations", "Dedicated account manager", "Advanced reporting", "Data export capabilities"},
	},
	{
		ID:           PortfolioAuditID,
		Name:         "Portfolio Audit",
		Description:  "One-time compliance audit of every property in your portfolio",
		PriceInCents: 49900,
		Features:     []string{"Full portfolio risk review", "Written remediation plan", "Follow-up consultation"},
		OneTime:      true,
	},
}

// All returns a copy of the catalog.
func All() []Product {
	out := make([]Product, len(catalog))
	copy(out, catalog)
	return out
}

func ProductByID(id string) (Product, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// FormatPrice renders cents for display; zero is "Free".
func FormatPrice(cents int64) string {
	if cents == 0 {
		return "Free"
	}
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// Mode is the checkout mode for the product.
func (p Product) Mode() string {
	if p.OneTime || p.PriceInCents == 0 {
		return "payment"
	}
	return "subscription"
}

// ChangesTier reports whether buying p should update the buyer's tier.
func (p Product) ChangesTier() bool {
	return p.Tier != ""
}

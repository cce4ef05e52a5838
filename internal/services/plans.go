package services

import "vendora/internal/models"

// PlanConfig represents a seller subscription plan configuration
type PlanConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	Intervals   []string `json:"intervals"`
	Features    []string `json:"features"`
}

// Predefined seller plans
var availablePlans = map[string]PlanConfig{
	"starter": {
		ID:          "starter",
		Name:        "Starter Plan",
		Description: "Open a storefront and list your first products",
		Amount:      9.0,
		Currency:    "USD",
		Intervals:   []string{models.BillingIntervalMonth, models.BillingIntervalYear},
		Features: []string{
			"Up to 25 listings",
			"Basic storefront page",
			"Email support",
		},
	},
	"pro": {
		ID:          "pro",
		Name:        "Pro Plan",
		Description: "For established sellers with a growing catalog",
		Amount:      29.0,
		Currency:    "USD",
		Intervals:   []string{models.BillingIntervalMonth, models.BillingIntervalYear},
		Features: []string{
			"Unlimited listings",
			"Custom storefront branding",
			"Sales analytics",
			"Priority support",
		},
	},
}

// LookupPlan returns the plan for the given id and whether it exists.
func LookupPlan(planID string) (PlanConfig, bool) {
	plan, ok := availablePlans[planID]
	return plan, ok
}

// SupportsInterval reports whether the plan can be billed at the interval.
func (p PlanConfig) SupportsInterval(interval string) bool {
	for _, i := range p.Intervals {
		if i == interval {
			return true
		}
	}
	return false
}

// AvailablePlans returns all plans as a copy to prevent external modification.
func AvailablePlans() map[string]PlanConfig {
	result := make(map[string]PlanConfig, len(availablePlans))
	for k, v := range availablePlans {
		result[k] = v
	}
	return result
}

package models

type OnboardingProgress struct {
	HasCompletedTour        bool `json:"has_completed_tour"`
	HasAddedProperty        bool `json:"has_added_property"`
	HasVerifiedPhone        bool `json:"has_verified_phone"`
	HasViewedRiskScore      bool `json:"has_viewed_risk_score"`
	HasGeneratedHealthCheck bool `json:"has_generated_health_check"`
}

type Milestone string

const (
	MilestoneCompletedTour        Milestone = "has_completed_tour"
	MilestoneAddedProperty        Milestone = "has_added_property"
	MilestoneVerifiedPhone        Milestone = "has_verified_phone"
	MilestoneViewedRiskScore      Milestone = "has_viewed_risk_score"
	MilestoneGeneratedHealthCheck Milestone = "has_generated_health_check"
)

// TimestampColumn is the column stamped alongside the milestone flag, if any.
func (m Milestone) TimestampColumn() (string, bool) {
	switch m {
	case MilestoneCompletedTour:
		return "tour_completed_at", true
	case MilestoneAddedProperty:
		return "first_property_added_at", true
	case MilestoneVerifiedPhone:
		return "phone_verified_at", true
	case MilestoneViewedRiskScore:
		return "risk_score_viewed_at", true
	case MilestoneGeneratedHealthCheck:
		return "health_check_generated_at", true
	}
	return "", false
}

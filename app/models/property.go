package models

import "time"

type ReportingStatus string

const (
	StatusPending   ReportingStatus = "pending"
	StatusCompliant ReportingStatus = "compliant"
	StatusViolation ReportingStatus = "violation"
)

func (s ReportingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompliant, StatusViolation:
		return true
	}
	return false
}

type Property struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	Address         string          `db:"address" json:"address"`
	STROTier        int             `db:"stro_tier" json:"stro_tier"`
	LicenseID       string          `db:"license_id" json:"license_id"`
	ReportingStatus ReportingStatus `db:"reporting_status" json:"reporting_status"`
	RiskScore       int             `db:"risk_score" json:"risk_score"`
	LastChecked     *time.Time      `db:"last_checked" json:"last_checked,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// PropertyPatch carries the fields of a partial update; nil means unchanged.
type PropertyPatch struct {
	Address         *string
	STROTier        *int
	LicenseID       *string
	ReportingStatus *ReportingStatus
}

// Empty reports whether the patch changes nothing.
func (p PropertyPatch) Empty() bool {
	return p.Address == nil && p.STROTier == nil && p.LicenseID == nil && p.ReportingStatus == nil
}

// Violation is the context sent with a compliance alert.
type Violation struct {
	PropertyAddress string `json:"property_address"`
	ViolationType   string `json:"violation_type,omitempty"`
}

type Ordinance struct {
	PropertyID      string
	ViolationType   string
	ViolationDate   *time.Time
	Description     string
	FineAmount      *float64
	Status          string
	MunicipalCaseID string
}

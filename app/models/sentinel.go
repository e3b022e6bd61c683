package models

// DistressedLead is a code enforcement case or parking citation worth outreach.
type DistressedLead struct {
	Type        string `json:"type"` // code_enforcement | parking
	Address     string `json:"address"`
	CaseID      string `json:"caseId"`
	Description string `json:"description,omitempty"`
	DateOpened  string `json:"dateOpened,omitempty"`
}

// NewEntrant is a newly registered Tier 3/4 STRO license in a target zip.
type NewEntrant struct {
	LicenseID         string `json:"licenseId"`
	Address           string `json:"address"`
	Zip               string `json:"zip"`
	Tier              string `json:"tier"`
	LocalContactName  string `json:"localContactName,omitempty"`
	LocalContactPhone string `json:"localContactPhone,omitempty"`
	HostContactName   string `json:"hostContactName,omitempty"`
}

type STROSnapshot struct {
	LicenseID         string
	Address           string
	Zip               string
	Tier              string
	ExpirationDate    string
	LocalContactName  string
	LocalContactPhone string
	HostContactName   string
}

type ExpiringLicense struct {
	LicenseID         string `json:"licenseId"`
	ExpirationDate    string `json:"expirationDate"`
	Address           string `json:"address,omitempty"`
	Zip               string `json:"zip,omitempty"`
	LocalContactName  string `json:"localContactName,omitempty"`
	LocalContactPhone string `json:"localContactPhone,omitempty"`
}

type TaxRisk struct {
	LicenseID string `json:"licenseId"`
	Address   string `json:"address,omitempty"`
	Status    string `json:"status"`
}

// Target is an enriched outreach row in the sentinel summary.
type Target struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	CaseID    string `json:"caseId,omitempty"`
	LicenseID string `json:"licenseId,omitempty"`
	Contact   string `json:"contact,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type SentinelReport struct {
	Targets  []Target          `json:"targets"`
	Expiring []ExpiringLicense `json:"expiring"`
	TaxRisks []TaxRisk         `json:"taxRisks"`
}

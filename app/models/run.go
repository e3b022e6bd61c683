package models

import "time"

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

const (
	RunTypeIngest   = "ingest_sync"
	RunTypeSentinel = "sentinel_full"
)

// RunOutcome summarizes one scheduled ingestion or sentinel pass.
type RunOutcome struct {
	RunType             string    `json:"-"`
	Status              RunStatus `json:"-"`
	AlertsCount         int       `json:"alertsCount"`
	IntegrityRisksCount int       `json:"integrityRisksCount"`
	ExpiringCount       int       `json:"expiringCount"`
	TaxRisksCount       int       `json:"taxRisksCount"`
	DistressedCount     int       `json:"distressedCount"`
	NewEntrantsCount    int       `json:"newEntrantsCount"`
	TotalTargets        int       `json:"totalTargets"`
	Processed           int       `json:"processed,omitempty"`
	Inserted            int       `json:"inserted,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// ComplianceRun is an append-only log row.
type ComplianceRun struct {
	RunType     string
	Status      RunStatus
	CompletedAt time.Time
	ResultJSON  []byte
}

type SyncResult struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Matched   int      `json:"matched"`
	Errors    []string `json:"errors"`
}

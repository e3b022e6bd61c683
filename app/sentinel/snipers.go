package sentinel

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/opendata"

	"go.uber.org/zap"
)

var (
	TargetZips  = []string{"92109", "92037"}
	TargetTiers = []string{"Tier 3", "Tier 4"}

	distressed = regexp.MustCompile(`\b(unauthorized short term|short term rental|str|noise|nuisance|illegal rental)\b`)
)

const (
	parkingLeadLimit = 2000
	snapshotCutoff   = 12 * time.Hour
	renewalMinDays   = 10
	renewalMaxDays   = 45
	totWindow        = 7 * 24 * time.Hour
)

func isDistressed(desc string) bool {
	return distressed.MatchString(strings.ToLower(desc))
}

// enforcementLeads scans code enforcement cases for STR and nuisance
// complaints and treats recent parking citations as STR activity. A feed
// that cannot be read is skipped.
func (s *Sentinel) enforcementLeads(ctx context.Context) []models.DistressedLead {
	var leads []models.DistressedLead
	seen := make(map[string]struct{})

	rows, err := s.fetch.Fetch(ctx, s.urls.CodeEnforcementURL, 0)
	if err != nil {
		s.log.Warn("enforcement sniper: code enforcement fetch", zap.Error(err))
	}
	for _, r := range rows {
		caseID, addr, desc := r.Get("case_id"), r.Get("address_street"), r.Get("description")
		if caseID == "" || addr == "" || !isDistressed(desc) {
			continue
		}
		key := "ce-" + caseID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		leads = append(leads, models.DistressedLead{
			Type:        "code_enforcement",
			Address:     addr,
			CaseID:      caseID,
			Description: clip(desc, 200),
			DateOpened:  r.Get("date_open"),
		})
	}

	rows, err = s.fetch.Fetch(ctx, s.urls.ParkingURL, parkingLeadLimit)
	if err != nil {
		s.log.Warn("enforcement sniper: parking fetch", zap.Error(err))
	}
	for _, r := range rows {
		cid, loc := r.Get("citation_id"), r.Get("location")
		if cid == "" || loc == "" {
			continue
		}
		key := "park-" + cid
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		leads = append(leads, models.DistressedLead{
			Type:        "parking",
			Address:     loc,
			CaseID:      cid,
			Description: clip(r.Get("vio_desc"), 100),
			DateOpened:  r.Get("date_issue"),
		})
	}
	return leads
}

// licenseEntrants diffs today's Tier 3/4 licenses in the target zips against
// snapshots older than 12h and stores today's snapshot. The first run only
// seeds the table.
func (s *Sentinel) licenseEntrants(ctx context.Context, now time.Time) ([]models.NewEntrant, error) {
	rows, err := s.fetch.Fetch(ctx, s.urls.STROURL, 0)
	if err != nil {
		return nil, err
	}

	var snaps []models.STROSnapshot
	seen := make(map[string]struct{})
	for _, r := range rows {
		sn := snapshotFromRow(r)
		if sn.LicenseID == "" || !slices.Contains(TargetTiers, sn.Tier) || !slices.Contains(TargetZips, sn.Zip) {
			continue
		}
		if _, dup := seen[sn.LicenseID]; dup {
			continue
		}
		seen[sn.LicenseID] = struct{}{}
		snaps = append(snaps, sn)
	}

	known, err := s.store.SnapshotLicenseIDsBefore(ctx, now.Add(-snapshotCutoff))
	if err != nil {
		return nil, err
	}

	var entrants []models.NewEntrant
	if len(known) > 0 {
		for _, sn := range snaps {
			if _, ok := known[sn.LicenseID]; ok {
				continue
			}
			entrants = append(entrants, models.NewEntrant{
				LicenseID:         sn.LicenseID,
				Address:           sn.Address,
				Zip:               sn.Zip,
				Tier:              sn.Tier,
				LocalContactName:  sn.LocalContactName,
				LocalContactPhone: sn.LocalContactPhone,
				HostContactName:   sn.HostContactName,
			})
		}
	} else {
		s.log.Info("license sniper: no prior snapshot, seeding", zap.Int("licenses", len(snaps)))
	}

	if err := s.store.InsertSnapshots(ctx, snaps); err != nil {
		return entrants, err
	}
	return entrants, nil
}

func snapshotFromRow(r opendata.Row) models.STROSnapshot {
	return models.STROSnapshot{
		LicenseID:         r.Get("license_id"),
		Address:           r.Get("address"),
		Zip:               r.Get("zip"),
		Tier:              r.Get("tier"),
		ExpirationDate:    isoDate(r.Get("expiration_date")),
		LocalContactName:  r.Get("local_contact_contact_name"),
		LocalContactPhone: r.Get("local_contact_phone"),
		HostContactName:   r.Get("host_contact_name"),
	}
}

// expiringLicenses lists licenses expiring 10 to 45 days from now.
func (s *Sentinel) expiringLicenses(ctx context.Context, now time.Time) ([]models.ExpiringLicense, error) {
	return s.store.ExpiringLicenses(ctx, now.AddDate(0, 0, renewalMinDays), now.AddDate(0, 0, renewalMaxDays))
}

var (
	idStrip   = regexp.MustCompile(`[\s\-–]+`)
	spaceRuns = regexp.MustCompile(`\s+`)
)

func normalizeID(s string) string {
	return strings.ToUpper(idStrip.ReplaceAllString(s, ""))
}

func normalizeAddr(s string) string {
	s = spaceRuns.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

// taxRisks reports licenses snapshotted in the last week that have no TOT
// certificate by license id or by address.
func (s *Sentinel) taxRisks(ctx context.Context, now time.Time) ([]models.TaxRisk, error) {
	snaps, err := s.store.RecentSnapshots(ctx, now.Add(-totWindow), TargetZips)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	rows, err := s.fetch.Fetch(ctx, s.urls.TOTURL, 0)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	addrs := make(map[string]struct{})
	for _, r := range rows {
		if lid := firstNonEmpty(r.Get("license_id"), r.Get("stro_license")); lid != "" {
			ids[normalizeID(lid)] = struct{}{}
		}
		if addr := firstNonEmpty(r.Get("address"), r.Get("street_address"), r.Get("property_address")); addr != "" {
			addrs[normalizeAddr(addr)] = struct{}{}
		}
	}

	var risks []models.TaxRisk
	for _, sn := range snaps {
		if _, ok := ids[normalizeID(sn.LicenseID)]; ok {
			continue
		}
		if sn.Address != "" {
			if _, ok := addrs[normalizeAddr(sn.Address)]; ok {
				continue
			}
		}
		risks = append(risks, models.TaxRisk{LicenseID: sn.LicenseID, Address: sn.Address, Status: "Missing TOT"})
	}
	return risks, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func isoDate(s string) string {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339, "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

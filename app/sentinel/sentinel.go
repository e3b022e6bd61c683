// Package sentinel runs the daily municipal sweep that finds outreach
// targets and mails the admin a summary.
package sentinel

import (
	"context"
	"errors"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/opendata"

	"go.uber.org/zap"
)

const MaxTargets = 50

var ErrNoStore = errors.New("database not configured")

type Store interface {
	SnapshotLicenseIDsBefore(ctx context.Context, cutoff time.Time) (map[string]struct{}, error)
	InsertSnapshots(ctx context.Context, snaps []models.STROSnapshot) error
	ExpiringLicenses(ctx context.Context, from, to time.Time) ([]models.ExpiringLicense, error)
	RecentSnapshots(ctx context.Context, since time.Time, zips []string) ([]models.STROSnapshot, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, limit int) ([]opendata.Row, error)
}

type Mailer interface {
	SendSentinelSummary(ctx context.Context, r models.SentinelReport) models.Result
}

type RunLogger interface {
	Log(ctx context.Context, o models.RunOutcome)
}

type Sentinel struct {
	store  Store
	fetch  Fetcher
	mailer Mailer
	runs   RunLogger
	urls   config.IngestConfig
	log    *zap.Logger
	now    func() time.Time
}

func New(store Store, fetch Fetcher, mailer Mailer, runs RunLogger, urls config.IngestConfig, log *zap.Logger) *Sentinel {
	return &Sentinel{
		store:  store,
		fetch:  fetch,
		mailer: mailer,
		runs:   runs,
		urls:   urls,
		log:    logging.OrNop(log),
		now:    time.Now,
	}
}

// Run executes every sniper, emails the summary and logs the run. Individual
// sniper failures are logged and count as zero findings; only a failed
// summary email fails the run.
func (s *Sentinel) Run(ctx context.Context) (models.RunOutcome, error) {
	out := models.RunOutcome{RunType: models.RunTypeSentinel, Status: models.RunFailed}
	if s.store == nil {
		out.Error = ErrNoStore.Error()
		s.logRun(ctx, out)
		return out, ErrNoStore
	}
	now := s.now().UTC()

	leads := s.enforcementLeads(ctx)

	entrants, err := s.licenseEntrants(ctx, now)
	if err != nil {
		s.log.Warn("license sniper failed", zap.Error(err))
	}
	expiring, err := s.expiringLicenses(ctx, now)
	if err != nil {
		s.log.Warn("renewal sniper failed", zap.Error(err))
		expiring = nil
	}
	taxes, err := s.taxRisks(ctx, now)
	if err != nil {
		s.log.Warn("TOT sniper failed", zap.Error(err))
		taxes = nil
	}

	out.DistressedCount = len(leads)
	out.NewEntrantsCount = len(entrants)
	out.ExpiringCount = len(expiring)
	out.TaxRisksCount = len(taxes)
	out.TotalTargets = len(leads) + len(entrants)

	report := models.SentinelReport{
		Targets:  Enrich(entrants, leads),
		Expiring: expiring,
		TaxRisks: taxes,
	}
	if res := s.mailer.SendSentinelSummary(ctx, report); !res.OK {
		err := errors.New(res.Error)
		if res.Error == "" {
			err = errors.New("failed to send sentinel email")
		}
		out.Error = err.Error()
		s.logRun(ctx, out)
		return out, err
	}

	out.Status = models.RunCompleted
	s.logRun(ctx, out)
	return out, nil
}

// Enrich merges new entrants (which carry contact details) ahead of distressed
// leads, keeps the first row per normalized address and caps the list.
func Enrich(entrants []models.NewEntrant, leads []models.DistressedLead) []models.Target {
	seen := make(map[string]struct{})
	var targets []models.Target
	add := func(t models.Target) {
		if len(targets) >= MaxTargets {
			return
		}
		key := normalizeAddr(t.Address)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		targets = append(targets, t)
	}

	for _, e := range entrants {
		contact := e.LocalContactName
		if contact == "" {
			contact = e.HostContactName
		}
		add(models.Target{
			Type:      "stro_license",
			Address:   e.Address,
			LicenseID: e.LicenseID,
			Contact:   contact,
			Phone:     e.LocalContactPhone,
		})
	}
	for _, l := range leads {
		add(models.Target{Type: l.Type, Address: l.Address, CaseID: l.CaseID})
	}
	return targets
}

func (s *Sentinel) logRun(ctx context.Context, out models.RunOutcome) {
	s.log.Info("sentinel run finished",
		zap.String("status", string(out.Status)),
		zap.Int("distressed", out.DistressedCount),
		zap.Int("new_entrants", out.NewEntrantsCount),
		zap.Int("expiring", out.ExpiringCount),
		zap.Int("tax_risks", out.TaxRisksCount),
		zap.String("error", out.Error),
	)
	if s.runs != nil {
		s.runs.Log(context.WithoutCancel(ctx), out)
	}
}

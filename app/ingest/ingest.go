// Package ingest matches San Diego code enforcement cases and parking
// citations to monitored properties.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/opendata"

	"go.uber.org/zap"
)

const (
	MaxCodeEnforcementRows = 5000
	MaxParkingRows         = 3000

	parkingPrefix = "park-"
)

var ErrNoStore = errors.New("database not configured")

type Store interface {
	MonitoredProperties(ctx context.Context) ([]models.Property, error)
	InsertOrdinance(ctx context.Context, o models.Ordinance) (bool, error)
	MarkPropertyViolation(ctx context.Context, id string, riskScore int) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, limit int) ([]opendata.Row, error)
}

type Notifier interface {
	SendViolation(ctx context.Context, userID string, v models.Violation) models.Result
}

type RunLogger interface {
	Log(ctx context.Context, o models.RunOutcome)
}

type Syncer struct {
	store  Store
	fetch  Fetcher
	notify Notifier
	runs   RunLogger
	urls   config.IngestConfig
	log    *zap.Logger
}

func NewSyncer(store Store, fetch Fetcher, notify Notifier, runs RunLogger, urls config.IngestConfig, log *zap.Logger) *Syncer {
	return &Syncer{store: store, fetch: fetch, notify: notify, runs: runs, urls: urls, log: logging.OrNop(log)}
}

// citation is one city record reduced to what matching needs.
type citation struct {
	source      string
	caseID      string
	address     string
	vType       string
	description string
	date        string
	fine        *float64
	status      string
}

// Run never returns a Go error; problems are collected in SyncResult.Errors.
// A parking feed failure is recorded but does not fail the run.
func (s *Syncer) Run(ctx context.Context) models.SyncResult {
	res := models.SyncResult{Errors: []string{}}
	defer s.logRun(ctx, &res)

	if s.store == nil {
		res.Errors = append(res.Errors, ErrNoStore.Error())
		return res
	}

	rows, err := s.fetch.Fetch(ctx, s.urls.CodeEnforcementURL, MaxCodeEnforcementRows)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Processed = len(rows)
	if len(rows) == 0 {
		res.Success = true
		return res
	}

	props, err := s.store.MonitoredProperties(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Properties fetch failed: %s", err))
		return res
	}
	if len(props) == 0 {
		res.Success = true
		return res
	}
	index := indexProperties(props)

	s.apply(ctx, &res, index, codeEnforcement(rows))

	parking, err := s.fetch.Fetch(ctx, s.urls.ParkingURL, MaxParkingRows)
	if err != nil {
		res.Errors = append(res.Errors, "Parking sync: "+err.Error())
	} else {
		res.Processed += len(parking)
		s.apply(ctx, &res, index, parkingCitations(parking))
	}

	res.Success = true
	return res
}

func indexProperties(props []models.Property) map[string][]*models.Property {
	index := make(map[string][]*models.Property)
	for i := range props {
		p := &props[i]
		if p.UserID == "" {
			continue
		}
		norm := NormalizeAddress(p.Address)
		if norm == "" {
			continue
		}
		index[norm] = append(index[norm], p)
	}
	return index
}

func codeEnforcement(rows []opendata.Row) []citation {
	out := make([]citation, 0, len(rows))
	for _, r := range rows {
		status := "active"
		if r.Get("date_closed") != "" {
			status = "resolved"
		}
		date := r.Get("date_open")
		if date == "" {
			date = r.Get("date_closed")
		}
		out = append(out, citation{
			source:      "code_enforcement",
			caseID:      r.Get("case_id"),
			address:     r.Get("address_street"),
			vType:       ViolationType(r.Get("description"), "Code enforcement"),
			description: truncate(r.Get("description"), 500),
			date:        date,
			status:      status,
		})
	}
	return out
}

func parkingCitations(rows []opendata.Row) []citation {
	out := make([]citation, 0, len(rows))
	for _, r := range rows {
		id := r.Get("citation_id")
		if id == "" {
			continue
		}
		desc := r.Get("vio_desc")
		c := citation{
			source:      "parking",
			caseID:      parkingPrefix + id,
			address:     r.Get("location"),
			vType:       ViolationType(desc, "Parking citation"),
			description: truncate(desc, 500),
			date:        r.Get("date_issue"),
			status:      "active",
		}
		if c.description == "" {
			c.description = "Parking citation"
		}
		if f, err := strconv.ParseFloat(strings.TrimPrefix(r.Get("vio_fine"), "$"), 64); err == nil {
			c.fine = &f
		}
		out = append(out, c)
	}
	return out
}

func (s *Syncer) apply(ctx context.Context, res *models.SyncResult, index map[string][]*models.Property, cites []citation) {
	seen := make(map[string]struct{}, len(cites))
	for _, c := range cites {
		if c.caseID == "" {
			continue
		}
		if _, dup := seen[c.caseID]; dup {
			continue
		}
		seen[c.caseID] = struct{}{}

		if c.address == "" {
			continue
		}
		matches := index[NormalizeAddress(c.address)]
		if len(matches) == 0 {
			continue
		}
		res.Matched += len(matches)
		metrics.IngestRows.WithLabelValues(c.source, "matched").Add(float64(len(matches)))

		for _, p := range matches {
			inserted, err := s.store.InsertOrdinance(ctx, models.Ordinance{
				PropertyID:      p.ID,
				ViolationType:   c.vType,
				ViolationDate:   parseDate(c.date),
				Description:     c.description,
				FineAmount:      c.fine,
				Status:          c.status,
				MunicipalCaseID: c.caseID,
			})
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("Insert %s: %s", c.caseID, err))
				continue
			}
			if !inserted {
				continue
			}
			res.Inserted++
			metrics.IngestRows.WithLabelValues(c.source, "inserted").Inc()

			if p.ReportingStatus == models.StatusViolation {
				continue
			}
			if err := s.store.MarkPropertyViolation(ctx, p.ID, RiskScore(string(p.ReportingStatus))); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("Update %s: %s", p.ID, err))
				continue
			}
			res.Updated++
			p.ReportingStatus = models.StatusViolation

			if s.notify != nil {
				r := s.notify.SendViolation(ctx, p.UserID, models.Violation{PropertyAddress: p.Address, ViolationType: c.vType})
				if !r.OK {
					s.log.Warn("violation notification not sent", zap.String("property_id", p.ID), zap.String("error", r.Error))
				}
			}
		}
	}
}

func (s *Syncer) logRun(ctx context.Context, res *models.SyncResult) {
	status := models.RunCompleted
	if !res.Success {
		status = models.RunFailed
	}
	s.log.Info("ingest sync finished",
		zap.Bool("success", res.Success),
		zap.Int("processed", res.Processed),
		zap.Int("matched", res.Matched),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Strings("errors", res.Errors),
	)
	if s.runs == nil {
		return
	}
	s.runs.Log(context.WithoutCancel(ctx), models.RunOutcome{
		RunType:     models.RunTypeIngest,
		Status:      status,
		AlertsCount: res.Updated,
		Processed:   res.Processed,
		Inserted:    res.Inserted,
		Error:       strings.Join(res.Errors, "; "),
	})
}

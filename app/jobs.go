package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 10 * time.Minute

// RegisterJobs adds the ingest and sentinel runs to c for every schedule
// that is set. Overlapping runs of the same job are skipped.
func RegisterJobs(ctx context.Context, c *cron.Cron, cfg config.CronConfig, deps *Deps) error {
	log := logging.OrNop(deps.Log)
	skip := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger))

	if cfg.IngestSchedule != "" && deps.Ingest != nil {
		_, err := c.AddJob(cfg.IngestSchedule, skip.Then(cron.FuncJob(func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			res := deps.Ingest.Run(jobCtx)
			log.Info("scheduled ingest finished",
				zap.Bool("success", res.Success),
				zap.Int("processed", res.Processed),
				zap.Int("inserted", res.Inserted),
				zap.Strings("errors", res.Errors))
		})))
		if err != nil {
			return fmt.Errorf("ingest schedule %q: %w", cfg.IngestSchedule, err)
		}
	}

	if cfg.SentinelSchedule != "" && deps.Sentinel != nil {
		_, err := c.AddJob(cfg.SentinelSchedule, skip.Then(cron.FuncJob(func() {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			out, err := deps.Sentinel.Run(jobCtx)
			if err != nil {
				log.Error("scheduled sentinel failed", zap.Error(err))
				return
			}
			log.Info("scheduled sentinel finished", zap.Int("targets", out.TotalTargets))
		})))
		if err != nil {
			return fmt.Errorf("sentinel schedule %q: %w", cfg.SentinelSchedule, err)
		}
	}
	return nil
}

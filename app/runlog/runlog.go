// Package runlog appends scheduled-run outcomes to compliance_runs.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"go.uber.org/zap"
)

type Store interface {
	InsertComplianceRun(ctx context.Context, run models.ComplianceRun) error
}

type Logger struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// New accepts a nil store; Log is then a no-op.
func New(store Store, log *zap.Logger) *Logger {
	return &Logger{store: store, log: logging.OrNop(log), now: time.Now}
}

// Log records one outcome. Failures are logged and never returned; a run that
// did its work should not be reported as failed because the log write was.
func (l *Logger) Log(ctx context.Context, o models.RunOutcome) {
	metrics.ComplianceRuns.WithLabelValues(o.RunType, string(o.Status)).Inc()
	if l == nil || l.store == nil {
		return
	}

	body, err := json.Marshal(o)
	if err != nil {
		l.log.Error("marshal run outcome", zap.Error(err))
		return
	}

	err = l.store.InsertComplianceRun(ctx, models.ComplianceRun{
		RunType:     o.RunType,
		Status:      o.Status,
		CompletedAt: l.now().UTC(),
		ResultJSON:  body,
	})
	if err != nil {
		l.log.Error("failed to log compliance run",
			zap.String("run_type", o.RunType),
			zap.String("status", string(o.Status)),
			zap.Error(err),
		)
	}
}

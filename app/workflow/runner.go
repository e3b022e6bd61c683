package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists workflow runs.
type Store interface {
	CreateWorkflowRun(ctx context.Context, r models.WorkflowRun) error
	ClaimDueWorkflowRuns(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.WorkflowRun, error)
	ClaimWorkflowRun(ctx context.Context, id string, now time.Time, lease time.Duration) (models.WorkflowRun, bool, error)
	SaveWorkflowRun(ctx context.Context, r models.WorkflowRun) error
}

// Waker nudges a worker to look at a run immediately.
type Waker interface {
	PublishWakeUp(ctx context.Context, runID string) error
}

type Runner struct {
	store  Store
	mailer Mailer
	waker  Waker
	log    *zap.Logger
	now    func() time.Time

	BatchSize int
	Lease     time.Duration
}

func NewRunner(store Store, mailer Mailer, log *zap.Logger) *Runner {
	return &Runner{
		store:     store,
		mailer:    mailer,
		log:       logging.OrNop(log),
		now:       time.Now,
		BatchSize: 20,
		Lease:     5 * time.Minute,
	}
}

// WithWaker publishes a wake-up after each Start.
func (r *Runner) WithWaker(w Waker) *Runner {
	r.waker = w
	return r
}

// Start persists a new run for email. Publishing the wake-up is best-effort;
// the scheduler loop picks the run up either way.
func (r *Runner) Start(ctx context.Context, email string) (string, error) {
	run := NewRun(uuid.NewString(), email, r.now().UTC())
	if err := r.store.CreateWorkflowRun(ctx, run); err != nil {
		return "", err
	}
	r.log.Info("workflow started", zap.String("run_id", run.ID), zap.String("workflow", run.Workflow))

	if r.waker != nil {
		if err := r.waker.PublishWakeUp(ctx, run.ID); err != nil {
			r.log.Warn("failed to publish wake-up", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return run.ID, nil
}

// Tick claims every due run and advances it once. It returns how many runs
// were advanced.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	now := r.now().UTC()
	runs, err := r.store.ClaimDueWorkflowRuns(ctx, now, r.BatchSize, r.Lease)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, run := range runs {
		if err := r.advance(ctx, run, now); err != nil {
			errs = append(errs, err)
		}
	}
	return len(runs), errors.Join(errs...)
}

// RunOne advances id if it is due and not leased by another worker.
func (r *Runner) RunOne(ctx context.Context, id string) error {
	now := r.now().UTC()
	run, ok, err := r.store.ClaimWorkflowRun(ctx, id, now, r.Lease)
	if err != nil {
		return err
	}
	if !ok {
		r.log.Debug("wake-up for run that is not due", zap.String("run_id", id))
		return nil
	}
	return r.advance(ctx, run, now)
}

// Loop calls Tick every interval until ctx is done.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if n, err := r.Tick(ctx); err != nil {
			r.log.Error("workflow tick failed", zap.Error(err))
		} else if n > 0 {
			r.log.Info("workflow tick", zap.Int("advanced", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// advance only returns persistence errors. Step failures are recorded on the
// row and retried by a later tick.
func (r *Runner) advance(ctx context.Context, run models.WorkflowRun, now time.Time) error {
	step := run.NextStep
	next, stepErr := Advance(ctx, run, now, r.mailer)
	if stepErr != nil {
		metrics.WorkflowSteps.WithLabelValues(step, "error").Inc()
		r.log.Warn("workflow step failed",
			zap.String("run_id", run.ID),
			zap.String("step", step),
			zap.Int("attempts", next.Attempts),
			zap.String("status", string(next.Status)),
			zap.Error(stepErr),
		)
	} else {
		metrics.WorkflowSteps.WithLabelValues(step, "ok").Inc()
		r.log.Debug("workflow step done", zap.String("run_id", run.ID), zap.String("step", step), zap.String("phase", Phase(next, now)))
	}

	if err := r.store.SaveWorkflowRun(context.WithoutCancel(ctx), next); err != nil {
		r.log.Error("failed to save workflow run", zap.String("run_id", run.ID), zap.Error(err))
		return err
	}
	if next.Status == models.WorkflowCompleted {
		r.log.Info("workflow completed", zap.String("run_id", run.ID))
	}
	return nil
}

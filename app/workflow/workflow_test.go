package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	welcome  []string
	followUp []string
	fail     string
}

func (m *fakeMailer) SendAuditWelcome(_ context.Context, to string) models.Result {
	if m.fail != "" {
		return models.Fail(m.fail)
	}
	m.welcome = append(m.welcome, to)
	return models.OK()
}

func (m *fakeMailer) SendAuditFollowUp(_ context.Context, to string) models.Result {
	if m.fail != "" {
		return models.Fail(m.fail)
	}
	m.followUp = append(m.followUp, to)
	return models.OK()
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAdvanceHappyPath(t *testing.T) {
	m := &fakeMailer{}
	run := NewRun("r1", "owner@example.com", t0)
	assert.Equal(t, StepWelcome, Phase(run, t0))

	run, err := Advance(context.Background(), run, t0, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner@example.com"}, m.welcome)
	assert.Equal(t, StepFollowUp, run.NextStep)
	assert.Equal(t, t0.Add(FollowUpDelay), run.ResumeAt)
	assert.Equal(t, StepWaiting, Phase(run, t0.Add(time.Hour)))

	// not yet due: nothing happens
	same, err := Advance(context.Background(), run, t0.Add(71*time.Hour), m)
	require.NoError(t, err)
	assert.Equal(t, run, same)
	assert.Empty(t, m.followUp)

	done, err := Advance(context.Background(), run, t0.Add(FollowUpDelay), m)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowCompleted, done.Status)
	assert.Equal(t, StepCompleted, Phase(done, t0.Add(FollowUpDelay)))
	assert.Equal(t, []string{"owner@example.com"}, m.followUp)

	var out Outcome
	require.NoError(t, json.Unmarshal(done.Result, &out))
	assert.Equal(t, Outcome{Status: "completed", Email: "owner@example.com"}, out)
}

func TestAdvanceFailureBacksOff(t *testing.T) {
	m := &fakeMailer{fail: "smtp down"}
	run := NewRun("r1", "owner@example.com", t0)

	run, err := Advance(context.Background(), run, t0, m)
	require.EqualError(t, err, "smtp down")
	assert.Equal(t, StepWelcome, run.NextStep)
	assert.Equal(t, 1, run.Attempts)
	assert.Equal(t, "smtp down", run.LastError)
	assert.Equal(t, models.WorkflowRunning, run.Status)
	assert.Equal(t, t0.Add(time.Minute), run.ResumeAt)

	now := run.ResumeAt
	for run.Status == models.WorkflowRunning {
		run, _ = Advance(context.Background(), run, now, m)
		now = run.ResumeAt
	}
	assert.Equal(t, models.WorkflowFailed, run.Status)
	assert.Equal(t, MaxAttempts, run.Attempts)
}

func TestAdvanceRecoversAfterFailure(t *testing.T) {
	m := &fakeMailer{fail: "timeout"}
	run, _ := Advance(context.Background(), NewRun("r1", "a@b.c", t0), t0, m)
	m.fail = ""

	run, err := Advance(context.Background(), run, run.ResumeAt, m)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Attempts)
	assert.Empty(t, run.LastError)
	assert.Equal(t, StepFollowUp, run.NextStep)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(1))
	assert.Equal(t, 2*time.Minute, Backoff(2))
	assert.Equal(t, 32*time.Minute, Backoff(6))
	assert.Equal(t, time.Hour, Backoff(7))
	assert.Equal(t, time.Hour, Backoff(30))
}

type memStore struct {
	mu   sync.Mutex
	runs map[string]models.WorkflowRun
	err  error
}

func newMemStore() *memStore { return &memStore{runs: map[string]models.WorkflowRun{}} }

func (s *memStore) CreateWorkflowRun(_ context.Context, r models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.runs[r.ID] = r
	return nil
}

func (s *memStore) ClaimDueWorkflowRuns(_ context.Context, now time.Time, limit int, lease time.Duration) ([]models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkflowRun
	for id, r := range s.runs {
		if len(out) == limit {
			break
		}
		if r.Due(now) {
			out = append(out, r)
			r.ResumeAt = now.Add(lease)
			s.runs[id] = r
		}
	}
	return out, nil
}

func (s *memStore) ClaimWorkflowRun(_ context.Context, id string, now time.Time, lease time.Duration) (models.WorkflowRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok || !r.Due(now) {
		return models.WorkflowRun{}, false, nil
	}
	claimed := r
	r.ResumeAt = now.Add(lease)
	s.runs[id] = r
	return claimed, true, nil
}

func (s *memStore) SaveWorkflowRun(_ context.Context, r models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

type fakeWaker struct {
	ids []string
	err error
}

func (w *fakeWaker) PublishWakeUp(_ context.Context, id string) error {
	w.ids = append(w.ids, id)
	return w.err
}

func TestRunnerStartAndTick(t *testing.T) {
	store := newMemStore()
	m := &fakeMailer{}
	waker := &fakeWaker{err: errors.New("queue unavailable")}
	r := NewRunner(store, m, nil).WithWaker(waker)
	clock := t0
	r.now = func() time.Time { return clock }

	id, err := r.Start(context.Background(), "owner@example.com")
	require.NoError(t, err, "publish failure must not fail Start")
	assert.Equal(t, []string{id}, waker.ids)

	require.NoError(t, r.RunOne(context.Background(), id))
	assert.Len(t, m.welcome, 1)

	// a duplicate wake-up is a no-op
	require.NoError(t, r.RunOne(context.Background(), id))
	assert.Len(t, m.welcome, 1)

	n, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	clock = t0.Add(FollowUpDelay)
	n, err = r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.WorkflowCompleted, store.runs[id].Status)
	assert.Len(t, m.followUp, 1)
}

func TestRunnerStartStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	_, err := NewRunner(store, &fakeMailer{}, nil).Start(context.Background(), "a@b.c")
	assert.EqualError(t, err, "connection refused")
}

func TestRunnerStepFailureIsPersisted(t *testing.T) {
	store := newMemStore()
	r := NewRunner(store, &fakeMailer{fail: "smtp down"}, nil)
	r.now = func() time.Time { return t0 }

	id, err := r.Start(context.Background(), "a@b.c")
	require.NoError(t, err)
	require.NoError(t, r.RunOne(context.Background(), id))

	saved := store.runs[id]
	assert.Equal(t, 1, saved.Attempts)
	assert.Equal(t, "smtp down", saved.LastError)
	assert.Equal(t, t0.Add(time.Minute), saved.ResumeAt)
}

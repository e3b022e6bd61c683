package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable Postgres; set TEST_DATABASE_URL to run them.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cache := NewCache()
	t.Cleanup(func() { cache.Close() })

	s, err := Open(ctx, cache, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestCacheReusesPool(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cache := NewCache()
	defer cache.Close()

	a, err := cache.Get(context.Background(), dsn)
	require.NoError(t, err)
	b, err := cache.Get(context.Background(), dsn)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPropertyOwnership(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	owner := s.ForUser("owner-" + uuid.NewString())
	other := s.ForUser("other-" + uuid.NewString())
	_, err := owner.UpsertProfile(ctx, "owner@example.test", "Owner")
	require.NoError(t, err)
	_, err = other.UpsertProfile(ctx, "other@example.test", "")
	require.NoError(t, err)

	p, err := owner.InsertProperty(ctx, "1 Ocean Blvd", 3, "STR-1")
	require.NoError(t, err)
	assert.Equal(t, owner.UserID(), p.UserID)
	assert.Equal(t, models.StatusPending, p.ReportingStatus)

	addr := "2 Bay St"
	n, err := other.UpdateProperty(ctx, p.ID, models.PropertyPatch{Address: &addr})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = other.DeleteProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = owner.UpdateProperty(ctx, p.ID, models.PropertyPatch{Address: &addr})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := owner.ListProperties(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, addr, list[0].Address)

	n, err = owner.DeleteProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpsertProfileKeepsTier(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	u := s.ForUser("tier-" + uuid.NewString())

	created, err := u.UpsertProfile(ctx, "a@example.test", "A")
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, s.ApplyPurchase(ctx, u.UserID(), models.TierProfessional, 100))
	created, err = u.UpsertProfile(ctx, "b@example.test", "")
	require.NoError(t, err)
	assert.False(t, created)

	tier, err := u.Tier(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TierProfessional, tier)

	target, err := s.NotificationTarget(ctx, u.UserID())
	require.NoError(t, err)
	assert.Equal(t, "b@example.test", target.Email)
	assert.True(t, target.EmailNotifications)
}

func TestClaimDueWorkflowRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	run := models.WorkflowRun{
		ID:       uuid.NewString(),
		Workflow: "portfolio-audit",
		Email:    "buyer@example.test",
		NextStep: "welcome-pending",
		ResumeAt: now.Add(-time.Minute),
		Status:   models.WorkflowRunning,
	}
	require.NoError(t, s.CreateWorkflowRun(ctx, run))

	got, ok, err := s.ClaimWorkflowRun(ctx, run.ID, now, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.Email, got.Email)

	// leased, so a second claim misses it
	_, ok, err = s.ClaimWorkflowRun(ctx, run.ID, now, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

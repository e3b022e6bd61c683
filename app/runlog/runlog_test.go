package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	runs []models.ComplianceRun
	err  error
}

func (f *fakeStore) InsertComplianceRun(_ context.Context, r models.ComplianceRun) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, r)
	return nil
}

func TestLogInsertsRow(t *testing.T) {
	s := &fakeStore{}
	New(s, nil).Log(context.Background(), models.RunOutcome{
		RunType:      models.RunTypeSentinel,
		Status:       models.RunCompleted,
		TotalTargets: 7,
	})

	require.Len(t, s.runs, 1)
	assert.Equal(t, models.RunTypeSentinel, s.runs[0].RunType)
	assert.Equal(t, models.RunCompleted, s.runs[0].Status)
	assert.False(t, s.runs[0].CompletedAt.IsZero())

	var body map[string]any
	require.NoError(t, json.Unmarshal(s.runs[0].ResultJSON, &body))
	assert.EqualValues(t, 7, body["totalTargets"])
}

func TestLogSwallowsErrors(t *testing.T) {
	s := &fakeStore{err: errors.New("relation does not exist")}
	assert.NotPanics(t, func() {
		New(s, nil).Log(context.Background(), models.RunOutcome{RunType: models.RunTypeIngest, Status: models.RunFailed})
	})
}

func TestLogWithoutStore(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil, nil).Log(context.Background(), models.RunOutcome{RunType: models.RunTypeIngest, Status: models.RunCompleted})
	})
}

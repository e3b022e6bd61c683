package analytics

import (
	"testing"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	posthog.Client
	msgs []posthog.Message
}

func (r *recordingClient) Enqueue(m posthog.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingClient) Close() error { return nil }

func TestCaptureWithoutKeyIsNoop(t *testing.T) {
	c, err := New(config.AnalyticsConfig{}, nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { c.Capture("u1", EventCheckoutCompleted, nil) })
	assert.NoError(t, c.Close())
}

func TestCaptureEnqueues(t *testing.T) {
	rec := &recordingClient{}
	c := NewWithClient(rec, nil)

	c.Capture("u1", EventCheckoutCompleted, map[string]any{"productId": "portfolio-audit"})

	require.Len(t, rec.msgs, 1)
	capture, ok := rec.msgs[0].(posthog.Capture)
	require.True(t, ok)
	assert.Equal(t, "u1", capture.DistinctId)
	assert.Equal(t, EventCheckoutCompleted, capture.Event)
	assert.Equal(t, "portfolio-audit", capture.Properties["productId"])
}

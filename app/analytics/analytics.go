// Package analytics forwards product events to PostHog.
package analytics

import (
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"

	"github.com/posthog/posthog-go"
	"go.uber.org/zap"
)

const (
	EventCheckoutCompleted = "checkout_completed"
	EventPropertyAdded     = "property_added"
	EventPropertiesImport  = "properties_imported"
)

// Client is safe to use when no key is configured; events are dropped.
type Client struct {
	ph  posthog.Client
	log *zap.Logger
}

func New(cfg config.AnalyticsConfig, log *zap.Logger) (*Client, error) {
	log = logging.OrNop(log)
	if cfg.PostHogKey == "" {
		log.Info("analytics disabled: POSTHOG_KEY not set")
		return &Client{log: log}, nil
	}
	ph, err := posthog.NewWithConfig(cfg.PostHogKey, posthog.Config{Endpoint: cfg.PostHogHost})
	if err != nil {
		return nil, err
	}
	return &Client{ph: ph, log: log}, nil
}

// NewWithClient is used by tests to capture enqueued events.
func NewWithClient(ph posthog.Client, log *zap.Logger) *Client {
	return &Client{ph: ph, log: logging.OrNop(log)}
}

// Capture enqueues an event. Delivery failures are logged only.
func (c *Client) Capture(distinctID, event string, props map[string]any) {
	if c == nil || c.ph == nil {
		return
	}
	p := posthog.NewProperties()
	for k, v := range props {
		p.Set(k, v)
	}
	if err := c.ph.Enqueue(posthog.Capture{DistinctId: distinctID, Event: event, Properties: p}); err != nil {
		c.log.Warn("analytics enqueue failed", zap.String("event", event), zap.Error(err))
	}
}

// Close flushes queued events.
func (c *Client) Close() error {
	if c == nil || c.ph == nil {
		return nil
	}
	return c.ph.Close()
}

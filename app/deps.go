package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/analytics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/billing"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/cache"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/email"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/ingest"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/notify"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/onboarding"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/opendata"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/profile"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/properties"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/queue"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/runlog"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/search"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/sentinel"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/store"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/validation"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/workflow"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"go.uber.org/zap"
)

// Pinger is the store read the health endpoint performs.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CheckoutService interface {
	Start(ctx context.Context, productID string) (string, error)
	Status(ctx context.Context, sessionID string) (models.PaymentStatus, error)
	PortalURL(ctx context.Context) (string, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) (billing.WebhookResult, error)
}

type ViolationSender interface {
	SendViolation(ctx context.Context, userID string, v models.Violation) models.Result
}

type SyncRunner interface {
	Run(ctx context.Context) models.SyncResult
}

type SentinelRunner interface {
	Run(ctx context.Context) (models.RunOutcome, error)
}

type Tracker interface {
	Capture(distinctID, event string, props map[string]any)
}

// Deps holds everything the router needs. Nil services answer with a
// "not configured" failure instead of panicking.
type Deps struct {
	Log      *zap.Logger
	Verifier *auth.Verifier

	// DB is nil when no DSN is configured. DBErr is set when a DSN is
	// configured but the pool could not be opened.
	DB    Pinger
	DBErr error

	Profiles   *profile.Service
	Properties *properties.Service
	Onboarding *onboarding.Service
	Notify     ViolationSender
	Checkout   CheckoutService
	Webhook    WebhookHandler
	Search     *search.Service
	Ingest     SyncRunner
	Sentinel   SentinelRunner
	Tracker    Tracker

	CronSecret string
	SiteURL    string
}

// Resources are the long-lived handles NewDeps opened. Close releases them.
type Resources struct {
	Store     *store.Store
	DBCache   *store.Cache
	Redis     *cache.Cache
	Analytics *analytics.Client
	Queue     *queue.Queue
	Mailer    *email.Sender
	Workflow  *workflow.Runner
}

func (r *Resources) Close() error {
	var errs []error
	if r.Analytics != nil {
		errs = append(errs, r.Analytics.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DBCache != nil {
		errs = append(errs, r.DBCache.Close())
	}
	return errors.Join(errs...)
}

// NewDeps builds the dependency graph from cfg. Optional backends (Postgres,
// redis, SQS, PostHog, SMTP) are skipped with a log line when unconfigured.
func NewDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Deps, *Resources, error) {
	log = logging.OrNop(log)
	res := &Resources{}
	deps := &Deps{
		Log:        log,
		CronSecret: cfg.Cron.Secret,
		SiteURL:    cfg.SiteURL,
	}

	verifier, err := auth.NewVerifierFromConfig(cfg.Auth)
	if err != nil && !auth.AuthDisabled() {
		return nil, nil, fmt.Errorf("auth verifier: %w", err)
	}
	deps.Verifier = verifier

	if dsn := cfg.DB.PostgresDSN(); dsn != "" {
		res.DBCache = store.NewCache()
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		st, err := store.Open(openCtx, res.DBCache, dsn)
		cancel()
		if err != nil {
			log.Error("database unavailable", zap.Error(err))
			deps.DBErr = err
		} else {
			res.Store = st
			deps.DB = st
		}
	} else {
		log.Info("DATABASE_URL not set; store-backed routes disabled")
	}

	mailer, err := email.NewSender(cfg.Email, cfg.SiteURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("email templates: %w", err)
	}
	res.Mailer = mailer

	ph, err := analytics.New(cfg.Analytics, log)
	if err != nil {
		log.Warn("analytics disabled", zap.Error(err))
		ph, _ = analytics.New(config.AnalyticsConfig{}, log)
	}
	res.Analytics = ph
	deps.Tracker = ph

	if cfg.Redis.Addr != "" {
		res.Redis = cache.NewCache(cfg.Redis.Addr, cfg.Redis.Password)
	}

	if cfg.QueueURL != "" {
		q, err := queue.New(ctx, cfg.QueueURL, log)
		if err != nil {
			log.Warn("workflow queue disabled", zap.Error(err))
		} else {
			res.Queue = q
		}
	}

	index, err := search.LoadFile(cfg.Ingest.LeadsCSVPath)
	if err != nil {
		log.Warn("leads index not loaded", zap.String("path", cfg.Ingest.LeadsCSVPath), zap.Error(err))
	} else {
		log.Info("leads index loaded", zap.Int("leads", index.Len()))
	}
	deps.Search = search.NewService(index, log)
	if res.Redis != nil {
		deps.Search.WithCache(res.Redis, cache.NewLimiter(res.Redis, "search-rl", time.Minute, 60))
	}

	proc := billing.NewProcessor(cfg.Stripe.SecretKey)
	checkoutCfg := billing.CheckoutConfig{PriceIDs: cfg.Stripe.PriceIDs, SiteURL: cfg.SiteURL}

	fetch := opendata.NewClient()
	st := res.Store
	if st == nil {
		deps.Checkout = billing.NewCheckout(proc, nil, nil, checkoutCfg, log)
		deps.Ingest = ingest.NewSyncer(nil, fetch, nil, runlog.New(nil, log), cfg.Ingest, log)
		deps.Sentinel = sentinel.New(nil, fetch, mailer, runlog.New(nil, log), cfg.Ingest, log)
		return deps, res, nil
	}

	v := validation.New()
	runs := runlog.New(st, log)
	dispatcher := notify.NewDispatcher(st, mailer, log)

	deps.Profiles = profile.NewService(func(id string) profile.Client { return st.ForUser(id) }, log).WithWelcome(mailer)
	deps.Properties = properties.NewService(func(id string) properties.Client { return st.ForUser(id) }, v, log)
	deps.Onboarding = onboarding.NewService(func(id string) onboarding.Client { return st.ForUser(id) }, log)
	deps.Notify = dispatcher
	deps.Checkout = billing.NewCheckout(proc, func(id string) billing.CustomerStore { return st.ForUser(id) }, st, checkoutCfg, log)

	res.Workflow = workflow.NewRunner(st, mailer, log)
	if res.Queue != nil {
		res.Workflow.WithWaker(res.Queue)
	}
	deps.Webhook = billing.NewWebhook(cfg.Stripe.WebhookSecret, st, res.Workflow, mailer, ph, log)

	deps.Ingest = ingest.NewSyncer(st, fetch, dispatcher, runs, cfg.Ingest, log)
	deps.Sentinel = sentinel.New(st, fetch, mailer, runs, cfg.Ingest, log)

	return deps, res, nil
}

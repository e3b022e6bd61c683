package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const tickInterval = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logs)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, res, err := app.NewDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer res.Close()

	if res.Workflow == nil {
		logger.Fatal("worker requires a database", zap.NamedError("db", deps.DBErr))
	}
	if err := res.Store.Migrate(ctx); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.Workflow.Loop(ctx, tickInterval)
	}()

	if res.Queue != nil {
		runner := res.Workflow
		for i := 0; i < cfg.Workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				err := res.Queue.Consume(ctx, func(ctx context.Context, msg models.WakeUp) error {
					return runner.RunOne(ctx, msg.RunID)
				})
				if err != nil {
					logger.Error("queue consumer stopped", zap.Int("worker", id), zap.Error(err))
				}
			}(i)
		}
	} else {
		logger.Info("QUEUE_URL not set; relying on the scheduler loop only")
	}

	scheduler := cron.New()
	if err := app.RegisterJobs(ctx, scheduler, cfg.Cron, deps); err != nil {
		logger.Fatal("invalid cron schedule", zap.Error(err))
	}
	scheduler.Start()

	logger.Info("worker started",
		zap.Int("consumers", cfg.Workers),
		zap.Bool("queue", res.Queue != nil),
		zap.Int("cron_jobs", len(scheduler.Entries())))

	<-ctx.Done()
	logger.Info("shutting down worker")
	<-scheduler.Stop().Done()
	wg.Wait()
}

package main

import (
	"context"
	"log"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/config"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"

	"go.uber.org/zap"
)

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

	deps, res, err := app.NewDeps(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer res.Close()

	router, err := app.NewRouter(deps)
	if err != nil {
		logger.Fatal("failed to initialize router", zap.Error(err))
	}
	if err := router.Run("0.0.0.0:8080"); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

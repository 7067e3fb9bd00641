package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/symbiobot/internal/app"
	"github.com/dmitrijs2005/symbiobot/internal/config"
	"github.com/dmitrijs2005/symbiobot/internal/logging"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewZap(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, err.Error())
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "bot stopped with error", "error", err)
	}

}

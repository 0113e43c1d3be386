package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"distill/internal/config"
	"distill/internal/daemon"
	"distill/internal/deps"
	"distill/internal/logging"
	"distill/internal/queue"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, status := range deps.Check(deps.Default()) {
		if !status.Available {
			logger.Warn("external dependency unavailable",
				logging.String("dependency", status.Name),
				logging.String("detail", status.Detail))
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	dispatcher, cleanup := buildDispatcher(cfg, store, logger)
	defer cleanup()

	d, err := daemon.New(cfg, store, dispatcher, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("distilld shutting down")
	d.Stop()
}

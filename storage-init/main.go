package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"prism-projects/backend"
	"prism-projects/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("backend", cfg.Backend).Info("storage init starting")

	if err := initStorage(context.Background(), cfg); err != nil {
		log.Fatalf("init storage: %v", err)
	}
	log.Info("storage init complete")
}

func initStorage(ctx context.Context, cfg config.Config) error {
	b, err := backend.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Errorf("close backend: %v", err)
		}
	}()
	return b.Init(ctx)
}

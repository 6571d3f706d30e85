package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

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
	log.Info("index updater starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("index updater: %v", err)
	}
	log.Info("index updater stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	b, err := backend.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Errorf("close backend: %v", err)
		}
	}()
	m := b.Manager(log.StandardLogger())

	if cfg.RebuildIndex {
		report, err := m.RebuildIndex(ctx)
		if err != nil {
			return err
		}
		log.WithField("repaired", report.Repaired).Info("index rebuild complete")
		return nil
	}

	if b.Repair == nil {
		return errors.New("missing INDEX_REPAIR_QUEUE")
	}
	p := &processor{
		syncer:      m,
		source:      b.Repair,
		rc:          b.Redis,
		channel:     cfg.UpdatesChannel,
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxRepairAttempts,
	}
	p.run(ctx)
	return nil
}

package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-projects/storage"
)

type userSyncer interface {
	SyncUser(ctx context.Context, username string) error
}

type repairSource interface {
	Dequeue(ctx context.Context) (*storage.RepairRequest, error)
	Ack(ctx context.Context, req *storage.RepairRequest) error
}

type processor struct {
	syncer      userSyncer
	source      repairSource
	rc          *redis.Client
	channel     string
	interval    time.Duration
	maxAttempts int64
}

// process handles one repair request and reports whether it should be
// removed from the queue. Failed requests stay queued for redelivery until
// maxAttempts is reached.
func (p *processor) process(ctx context.Context, req *storage.RepairRequest) bool {
	fields := log.Fields{"id": req.ID, "user": req.Username, "attempt": req.Attempts}
	if req.Username == "" {
		log.WithFields(fields).Warn("dropping malformed repair request")
		return true
	}
	if err := p.syncer.SyncUser(ctx, req.Username); err != nil {
		if req.Attempts >= p.maxAttempts {
			log.WithFields(fields).WithError(err).Error("giving up on index repair")
			return true
		}
		log.WithFields(fields).WithError(err).Warn("index repair failed, will retry")
		return false
	}
	if p.rc != nil && p.channel != "" {
		if err := p.rc.Publish(ctx, p.channel, req.Username).Err(); err != nil {
			log.Errorf("Unable to publish index update for %s to %s", req.Username, p.channel)
		}
	}
	log.WithFields(fields).Debug("index repaired")
	return true
}

// run drains the repair queue until ctx is cancelled.
func (p *processor) run(ctx context.Context) {
	for ctx.Err() == nil {
		req, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Errorf("receive: %v", err)
			}
			p.wait(ctx)
			continue
		}
		if req == nil {
			p.wait(ctx)
			continue
		}
		if !p.process(ctx, req) {
			continue
		}
		if err := p.source.Ack(ctx, req); err != nil {
			log.WithField("id", req.ID).Errorf("ack: %v", err)
		}
	}
}

func (p *processor) wait(ctx context.Context) {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

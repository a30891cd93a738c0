package application

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

const defaultSweepInterval = 5 * time.Minute

// Sweeper periodically scans the open consensus queries and drops the ones
// that can never reach the threshold with the current oracle set. Without
// it, a query opened against a shrunken oracle set would collect
// attestations forever.
type Sweeper struct {
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	scheduler   ports.SchedulerService
	consensus   ConsensusService

	interval time.Duration
	maxAge   time.Duration
}

func NewSweeper(
	repoManager ports.RepoManager,
	liveStore ports.LiveStore,
	scheduler ports.SchedulerService,
	consensus ConsensusService,
	interval, maxAge time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		repoManager: repoManager,
		liveStore:   liveStore,
		scheduler:   scheduler,
		consensus:   consensus,
		interval:    interval,
		maxAge:      maxAge,
	}
}

func (s *Sweeper) Start() error {
	if err := s.scheduler.ScheduleTaskEvery(s.interval, s.sweep); err != nil {
		return err
	}
	s.scheduler.Start()
	log.WithField("interval", s.interval).Info("started consensus sweeper")
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

func (s *Sweeper) sweep() {
	ctx := context.Background()
	open, err := s.liveStore.ConsensusSessions().GetAllOpen(ctx)
	if err != nil {
		log.WithError(err).Warn("sweeper failed to list open queries")
		return
	}

	now := time.Now()
	swept := 0
	for _, query := range open {
		drop, reason := s.shouldDrop(ctx, query, now)
		if !drop {
			continue
		}
		if err := s.liveStore.ConsensusSessions().Delete(ctx, query.ID); err != nil {
			log.WithError(err).WithField("query", query.ID).
				Warn("sweeper failed to drop query")
			continue
		}
		swept++
		log.WithFields(log.Fields{
			"query":   query.ID,
			"subject": query.Subject,
			"reason":  reason,
		}).Info("swept open consensus query")
	}
	if swept > 0 {
		log.WithField("count", swept).Debug("consensus sweep completed")
	}
}

func (s *Sweeper) shouldDrop(
	ctx context.Context, query domain.ConsensusQuery, now time.Time,
) (bool, string) {
	unresolvable, err := s.consensus.IsUnresolvable(ctx, query.ID)
	if err != nil {
		log.WithError(err).WithField("query", query.ID).
			Warn("sweeper failed to check resolvability")
		return false, ""
	}
	if unresolvable {
		return true, "threshold unreachable"
	}
	if s.maxAge > 0 && now.Unix()-query.CreatedAt > int64(s.maxAge.Seconds()) {
		return true, "expired"
	}
	return false, ""
}

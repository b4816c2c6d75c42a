package service

import (
	"context"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

const defaultSweepInterval = 15 * time.Minute

// HousekeepingService periodically purges revocation records and
// refresh families whose tokens have expired anyway. Purging is safe
// because the expiry check runs before the revocation check on every
// validation, so a purged record can never resurrect a token.
type HousekeepingService struct {
	Store    store.Store
	Interval time.Duration
}

// Run sweeps on a ticker until ctx is cancelled. One sweep runs
// immediately so a restart doesn't postpone cleanup by a full
// interval.
func (s *HousekeepingService) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *HousekeepingService) sweep(ctx context.Context) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	if err := s.Store.Revocations().DeleteExpired(ctx, now); err != nil {
		log.Warn("purging expired revocations failed", "err", err)
	}
	if err := s.Store.Families().DeleteExpiredFamilies(ctx, now); err != nil {
		log.Warn("purging expired families failed", "err", err)
	}
	log.Debug("housekeeping sweep complete", "took", time.Since(now))
}

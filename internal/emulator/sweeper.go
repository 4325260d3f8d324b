package emulator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically drops expired token grants so that tokens which are
// never presented again do not pile up.
type Sweeper struct {
	grants   *Grants
	interval time.Duration
	log      logrus.FieldLogger
}

// NewSweeper creates a sweeper over grants. A non-positive interval
// defaults to one minute.
func NewSweeper(grants *Grants, interval time.Duration, log logrus.FieldLogger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{grants: grants, interval: interval, log: log}
}

// Start runs sweep cycles until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Debug("Grant sweeper started")

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			s.log.Debug("Grant sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) sweep() {
	if removed := s.grants.Sweep(); removed > 0 {
		RecordGrantsExpired(removed)
		s.log.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": s.grants.Len(),
		}).Info("Expired grants swept")
	}
}

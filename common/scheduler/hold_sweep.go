package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/seatmap-services/common/logger"
)

// Sweeper clears expired holds. HoldUseCase satisfies it.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// HoldSweepScheduler periodically clears expired hold columns. Expired holds
// already read as AVAILABLE everywhere, so a missed or late run is harmless.
type HoldSweepScheduler struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHoldSweepScheduler creates a new scheduler
func NewHoldSweepScheduler(sweeper Sweeper, interval time.Duration, log *logger.Logger) *HoldSweepScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &HoldSweepScheduler{
		sweeper:  sweeper,
		interval: interval,
		timeout:  interval,
		log:      log.With("component", "scheduler"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop.
func (s *HoldSweepScheduler) Start() {
	s.log.Info("Hold sweep job started (runs every %v)", s.interval)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				s.log.Info("Hold sweep job stopped")
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running sweep to finish. Safe to
// call more than once.
func (s *HoldSweepScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
	})
}

func (s *HoldSweepScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.log.WithError(err).Error("Hold sweep failed")
		return
	}
	if n > 0 {
		s.log.Info("Cleared %d expired holds", n)
	}
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amaumene/tamilarr/internal/controllers"
	"github.com/amaumene/tamilarr/internal/services/trackers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// drainTimeout bounds how long Stop waits for a running cycle
const drainTimeout = 30 * time.Second

// Scheduler triggers crawl cycles on a fixed interval
type Scheduler struct {
	cron      *cron.Cron
	crawlCtrl *controllers.CrawlController
	trackers  *trackers.Client
	interval  time.Duration
	logger    *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewScheduler creates a new scheduler
func NewScheduler(crawlCtrl *controllers.CrawlController, trackersClient *trackers.Client, interval time.Duration, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(),
		crawlCtrl: crawlCtrl,
		trackers:  trackersClient,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.WithField("interval", s.interval).Info("Starting scheduler")

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.runCycle()
	})
	if err != nil {
		return fmt.Errorf("failed to add crawl job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// populate a cold store right away instead of waiting a full interval
	go s.runCycle()

	return nil
}

// Stop cancels the running cycle and waits for it to wind down, up to
// the drain timeout
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
	case <-time.After(drainTimeout):
		s.logger.Warn("Timed out waiting for crawl cycle to stop")
	}
}

// runCycle refreshes the tracker list and runs one crawl cycle. A tick
// that fires while the previous cycle is still running is skipped.
func (s *Scheduler) runCycle() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous crawl cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}

	if err := s.trackers.Refresh(s.ctx); err != nil {
		s.logger.WithError(err).Warn("Tracker refresh failed, keeping previous list")
	}

	if _, err := s.crawlCtrl.RunCycle(s.ctx); err != nil {
		s.logger.WithError(err).Error("Crawl cycle failed")
	}
}

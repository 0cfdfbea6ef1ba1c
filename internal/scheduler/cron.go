package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// UsageResetter resets the request counter
type UsageResetter interface {
	ResetUsage(ctx context.Context) error
}

// Scheduler resets the usage counter on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	usage    UsageResetter
	schedule string
	entryID  cron.EntryID
	logger   *logrus.Logger
}

// NewScheduler parses schedule and registers the reset job.
// Standard five-field expressions and descriptors like @daily are accepted.
func NewScheduler(schedule string, usage UsageResetter, logger *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		usage:    usage,
		schedule: schedule,
		logger:   logger,
	}

	entryID, err := s.cron.AddFunc(schedule, s.ResetNow)
	if err != nil {
		return nil, fmt.Errorf("invalid usage reset schedule %q: %w", schedule, err)
	}
	s.entryID = entryID

	return s, nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule": s.schedule,
		"next":     s.NextReset(),
	}).Info("Usage reset scheduler started")
}

// ResetNow runs the reset job once
func (s *Scheduler) ResetNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.usage.ResetUsage(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled usage reset failed")
		return
	}
	s.logger.Info("Scheduled usage reset done")
}

// NextReset returns the next scheduled run, zero before Start
func (s *Scheduler) NextReset() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

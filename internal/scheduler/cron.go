package scheduler

import (
	"context"
	"fmt"

	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TraktSyncer imports the linked Trakt account
type TraktSyncer interface {
	SyncAll(ctx context.Context) (*controllers.ImportReport, error)
}

// PodcastRefresher refreshes stored podcasts from the provider
type PodcastRefresher interface {
	RefreshAllPodcasts(ctx context.Context) error
}

// Jobs are the scheduled jobs. A nil job or empty schedule is skipped.
type Jobs struct {
	TraktSync              TraktSyncer
	TraktSyncSchedule      string
	PodcastRefresh         PodcastRefresher
	PodcastRefreshSchedule string
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(jobs Jobs, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// A panicking job is logged instead of taking the process down, and a
		// run is skipped while the previous one of the same job is still going
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(logger)),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		jobs:   jobs,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if s.jobs.TraktSync != nil && s.jobs.TraktSyncSchedule != "" {
		if _, err := s.cron.AddFunc(s.jobs.TraktSyncSchedule, s.runTraktSync); err != nil {
			return fmt.Errorf("failed to add trakt sync job: %w", err)
		}
		s.logger.WithField("schedule", s.jobs.TraktSyncSchedule).Info("Trakt sync scheduled")
	}

	if s.jobs.PodcastRefresh != nil && s.jobs.PodcastRefreshSchedule != "" {
		if _, err := s.cron.AddFunc(s.jobs.PodcastRefreshSchedule, s.runPodcastRefresh); err != nil {
			return fmt.Errorf("failed to add podcast refresh job: %w", err)
		}
		s.logger.WithField("schedule", s.jobs.PodcastRefreshSchedule).Info("Podcast refresh scheduled")
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler, cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// runTraktSync executes the Trakt import job
func (s *Scheduler) runTraktSync() {
	s.logger.Info("Running scheduled Trakt sync")

	report, err := s.jobs.TraktSync.SyncAll(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("Trakt sync job failed")
		return
	}

	fields := logrus.Fields{"failed_items": len(report.Result.FailedItems)}
	if report.Commit != nil {
		fields["seen_created"] = report.Commit.SeenCreated
	}
	s.logger.WithFields(fields).Info("Trakt sync job completed")
}

// runPodcastRefresh executes the podcast refresh job
func (s *Scheduler) runPodcastRefresh() {
	s.logger.Info("Running scheduled podcast refresh")

	if err := s.jobs.PodcastRefresh.RefreshAllPodcasts(s.ctx); err != nil {
		s.logger.WithError(err).Error("Podcast refresh job failed")
	} else {
		s.logger.Info("Podcast refresh job completed")
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"parking_market/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronConfig schedules the maintenance jobs. Specs use seconds precision.
type CronConfig struct {
	EventLogCleanupSpec string
	EventLogRetention   time.Duration
	SessionSweepSpec    string
	SessionIdleTimeout  time.Duration
}

// CronService runs the periodic maintenance jobs.
type CronService struct {
	cron     *cron.Cron
	cfg      CronConfig
	sessions *SessionService
	eventLog repository.RealtimeEventLogRepository
	logger   *logrus.Logger
}

// NewCronService creates the scheduler. eventLog may be nil, in which case
// the retention job is not scheduled.
func NewCronService(cfg CronConfig, sessions *SessionService, eventLog repository.RealtimeEventLogRepository, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		sessions: sessions,
		eventLog: eventLog,
		logger:   logger,
	}
}

func (s *CronService) Start() error {
	if s.eventLog != nil && s.cfg.EventLogCleanupSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.EventLogCleanupSpec, s.cleanupEventLogJob); err != nil {
			return fmt.Errorf("failed to schedule event log cleanup: %w", err)
		}
		s.logger.WithField("spec", s.cfg.EventLogCleanupSpec).Info("Scheduled realtime event log cleanup")
	}

	if s.cfg.SessionSweepSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.SessionSweepSpec, s.sweepSessionsJob); err != nil {
			return fmt.Errorf("failed to schedule session sweep: %w", err)
		}
		s.logger.WithField("spec", s.cfg.SessionSweepSpec).Info("Scheduled idle session sweep")
	}

	s.cron.Start()
	return nil
}

func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) cleanupEventLogJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.EventLogRetention)
	n, err := s.eventLog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Realtime event log cleanup failed")
		return
	}
	s.logger.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("[CRON] Realtime event log cleaned up")
}

func (s *CronService) sweepSessionsJob() {
	n := s.sessions.SweepIdle(s.sessions.deps.Clock.Now(), s.cfg.SessionIdleTimeout)
	if n > 0 {
		s.logger.WithField("closed", n).Info("[CRON] Closed idle buyer sessions")
	}
}

// JobStatus lists the scheduled jobs.
func (s *CronService) JobStatus() map[string]interface{} {
	entries := s.cron.Entries()
	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}
	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}

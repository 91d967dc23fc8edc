// Package scheduler runs the recurring background jobs: the weekly posts
// digest and the job-history cleanup. Jobs run outside the request path on
// a cron timer; a firing is skipped while the previous one is still running.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/notify"
)

const (
	jobWeeklyDigest = "weekly_digest"
	jobCleanup      = "delete_old_job_executions"
)

// Options carries the cron expressions and retention window for the jobs.
type Options struct {
	DigestCron  string
	CleanupCron string
	Retention   time.Duration
	BaseURL     string
}

// Scheduler owns the cron runner and records every job firing in the database.
type Scheduler struct {
	cron   *cron.Cron
	db     *gorm.DB
	mailer notify.Mailer
	opts   Options
	log    *zap.SugaredLogger
}

// New builds a stopped scheduler. Call Start to begin firing jobs.
func New(db *gorm.DB, mailer notify.Mailer, logger *zap.SugaredLogger, opts Options) *Scheduler {
	s := &Scheduler{
		db:     db,
		mailer: mailer,
		opts:   opts,
		log:    logger,
	}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{logger}),
	))
	return s
}

// Start registers the jobs and launches the cron runner.
func (s *Scheduler) Start() error {
	if err := s.register(jobWeeklyDigest, s.opts.DigestCron, s.runWeeklyDigest); err != nil {
		return err
	}
	if err := s.register(jobCleanup, s.opts.CleanupCron, s.cleanupJobHistory); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("scheduler started: digest=%q cleanup=%q", s.opts.DigestCron, s.opts.CleanupCron)
	return nil
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// register wires a job function behind an execution-recording wrapper.
func (s *Scheduler) register(name, spec string, job func() error) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runRecorded(name, job)
	})
	return err
}

// runRecorded executes the job and persists a JobExecution row for it.
func (s *Scheduler) runRecorded(name string, job func() error) {
	start := time.Now()
	err := job()

	rec := models.JobExecution{
		JobName:    name,
		StartedAt:  start,
		DurationMS: time.Since(start).Milliseconds(),
		Status:     "ok",
	}
	if err != nil {
		rec.Status = "error"
		rec.Error = err.Error()
		s.log.Errorf("job %s failed: %v", name, err)
	}
	if dbErr := s.db.Create(&rec).Error; dbErr != nil {
		s.log.Errorf("job %s: recording execution failed: %v", name, dbErr)
	}
}

// cleanupJobHistory purges execution records older than the retention window.
func (s *Scheduler) cleanupJobHistory() error {
	cutoff := time.Now().Add(-s.opts.Retention)
	res := s.db.Where("started_at < ?", cutoff).Delete(&models.JobExecution{})
	if res.Error != nil {
		return res.Error
	}
	s.log.Infof("job history cleanup removed %d records", res.RowsAffected)
	return nil
}

// cronLogger adapts the zap sugared logger to cron's Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

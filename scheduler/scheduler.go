package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"monitor-pricewatch/snapshot"
)

// Job is one full pipeline run for a snapshot date
type Job interface {
	Run(ctx context.Context, date string) error
}

// Scheduler triggers a Job on a cron schedule. Runs never overlap; a tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	job    Job
	log    logrus.FieldLogger
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entryID cron.EntryID
}

// NewScheduler creates a new scheduler for job
func NewScheduler(job Job, log logrus.FieldLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{log: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		job:    job,
		log:    log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ValidateSpec checks a standard 5-field cron expression
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Schedule registers the job under spec, replacing any earlier schedule
func (s *Scheduler) Schedule(spec string) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	s.entryID = id

	s.log.WithField("schedule", spec).Info("Job scheduled")
	return nil
}

// Next returns the next time the job fires, zero when nothing is scheduled or the scheduler is stopped
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start starts the scheduler in a goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// tick runs the job for today's snapshot date
func (s *Scheduler) tick() {
	date := snapshot.FormatDate(s.now())
	log := s.log.WithField("date", date)

	start := time.Now()
	log.Info("Scheduled run starting")

	if err := s.job.Run(s.ctx, date); err != nil {
		log.Errorf("Scheduled run failed after %s: %v", time.Since(start).Round(time.Second), err)
		return
	}
	log.Infof("Scheduled run finished in %s", time.Since(start).Round(time.Second))
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues)).Debugf("cron: %s", msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues)).WithError(err).Errorf("cron: %s", msg)
}

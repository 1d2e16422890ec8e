package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"

	"mindradix-similarity/internal/logger"
)

// Scheduler runs periodic maintenance jobs such as the report retention sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// New creates a scheduler running in UTC with unique job tags
func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleCron registers job under tag using a standard five-field cron expression.
// Job errors are logged; the schedule continues.
func (s *Scheduler) ScheduleCron(tag, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(wrap(tag, job))
	return err
}

// ScheduleInterval schedules a job to run at regular intervals
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func() error) error {
	_, err := s.scheduler.Every(every).Tag(tag).Do(wrap(tag, job))
	return err
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Tags lists the tags of every scheduled job.
func (s *Scheduler) Tags() []string {
	var tags []string
	for _, j := range s.scheduler.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}

func wrap(tag string, job func() error) func() {
	return func() {
		start := time.Now()
		if err := job(); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
			return
		}
		logger.Debug("Scheduled job finished", "job", tag, "duration", time.Since(start).String())
	}
}

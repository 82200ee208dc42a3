package services

import (
	"context"
	"fmt"
	"time"

	"sekolah_go/services/notifications"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one periodic maintenance task
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// ScheduleManager runs the periodic jobs on a cron scheduler
type ScheduleManager struct {
	cron *cron.Cron
	jobs []Job
}

// NewScheduleManager wires the standard jobs: hourly log flush and
// deadline reminders, a nightly log archive and a weekly class report archive.
// A nil dependency leaves its job out.
func NewScheduleManager(logs *LogArchiveService, notifier *notifications.Service, reports *ReportService) *ScheduleManager {
	sm := &ScheduleManager{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
	if logs != nil {
		sm.jobs = append(sm.jobs,
			Job{Name: "flush-activity-logs", Schedule: "@hourly", Timeout: 5 * time.Minute, Run: func(ctx context.Context) error {
				_, err := logs.FlushCachedLogsToDatabase(ctx)
				return err
			}},
			Job{Name: "archive-activity-logs", Schedule: "30 2 * * *", Timeout: 15 * time.Minute, Run: func(ctx context.Context) error {
				_, err := logs.ArchiveOldLogs(ctx, 30)
				return err
			}},
		)
	}
	if notifier != nil {
		sm.jobs = append(sm.jobs, Job{Name: "deadline-reminders", Schedule: "@hourly", Timeout: 5 * time.Minute, Run: func(ctx context.Context) error {
			n, err := notifier.DeadlineReminders(ctx)
			if n > 0 {
				logrus.WithField("students", n).Info("deadline reminders sent")
			}
			return err
		}})
	}
	if reports != nil {
		sm.jobs = append(sm.jobs, Job{Name: "archive-class-reports", Schedule: "0 3 * * 0", Timeout: 30 * time.Minute, Run: func(ctx context.Context) error {
			_, err := reports.ArchiveClassReports(ctx)
			return err
		}})
	}
	return sm
}

// Jobs lists the registered jobs
func (sm *ScheduleManager) Jobs() []Job {
	return sm.jobs
}

// Start registers every job and starts the scheduler
func (sm *ScheduleManager) Start() error {
	for _, job := range sm.jobs {
		job := job
		if _, err := sm.cron.AddFunc(job.Schedule, func() { sm.run(job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}
	sm.cron.Start()
	logrus.WithField("jobs", len(sm.jobs)).Info("schedule manager started")
	return nil
}

// Stop waits for running jobs to finish
func (sm *ScheduleManager) Stop() {
	<-sm.cron.Stop().Done()
}

func (sm *ScheduleManager) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
	defer cancel()
	start := time.Now()
	err := job.Run(ctx)
	entry := logrus.WithFields(logrus.Fields{"job": job.Name, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Warn("scheduled job failed")
		return
	}
	entry.Debug("scheduled job done")
}

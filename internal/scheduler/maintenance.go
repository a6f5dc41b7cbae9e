package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/settingsstore"
	"github.com/clinicmgr/clinic/internal/tasks"
)

// Job pairs a cron schedule with the task it enqueues.
type Job struct {
	Name     string
	Schedule string
	Task     func() backlite.Task
}

// MaintenanceJobs returns the periodic housekeeping jobs. Empty schedules are skipped.
func MaintenanceJobs(inventoryCron string, auditRetentionDays, warningDays, leadHours int) []Job {
	return []Job{
		{
			Name:     "inventory_alerts",
			Schedule: inventoryCron,
			Task:     func() backlite.Task { return tasks.InventoryAlertsTask{WarningDays: warningDays} },
		},
		{
			Name:     "appointment_reminders",
			Schedule: "*/15 * * * *",
			Task:     func() backlite.Task { return tasks.AppointmentRemindersTask{LeadHours: leadHours} },
		},
		{
			Name:     "cleanup_audit_events",
			Schedule: "30 3 * * *",
			Task:     func() backlite.Task { return tasks.CleanupAuditEventsTask{RetentionDays: auditRetentionDays} },
		},
	}
}

// MaintenanceScheduler enqueues housekeeping tasks on fixed schedules.
type MaintenanceScheduler struct {
	queue Enqueuer
	jobs  []Job

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewMaintenanceScheduler(queue Enqueuer, jobs []Job) *MaintenanceScheduler {
	return &MaintenanceScheduler{queue: queue, jobs: jobs, cron: newCron()}
}

func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.cron = newCron()
	for _, job := range s.jobs {
		if job.Schedule == "" {
			continue
		}
		if err := settingsstore.ValidateCronSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid schedule for %s: %w", job.Name, err)
		}
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.enqueue(job) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		log.Info().Str("job", job.Name).Str("schedule", job.Schedule).Msg("maintenance job scheduled")
	}

	s.cron.Start()
	s.isRunning = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
}

// Entries returns the number of registered cron entries.
func (s *MaintenanceScheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *MaintenanceScheduler) enqueue(job Job) {
	if _, err := s.queue.Add(job.Task()).Save(); err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("failed to enqueue maintenance task")
	}
}

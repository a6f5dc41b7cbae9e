// Package scheduler runs cron-driven clinic jobs: scheduled database
// backups and periodic maintenance tasks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/settingsstore"
	"github.com/clinicmgr/clinic/internal/tasks"
)

// Enqueuer adds tasks to the background queue.
type Enqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// BackupSettings is the part of the settings store the scheduler reads and writes.
type BackupSettings interface {
	BackupScheduleConfig() settingsstore.BackupScheduleConfig
	SetBackupStatus(status, message, file string) error
}

// BackupScheduler takes database backups on the configured cron schedule.
type BackupScheduler struct {
	settings BackupSettings
	backups  tasks.Backupper
	auditor  tasks.BackupAuditor
	queue    Enqueuer

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewBackupScheduler creates a scheduler. When queue is nil backups run
// inline on the cron goroutine instead of through the task queue.
func NewBackupScheduler(settings BackupSettings, backups tasks.Backupper, auditor tasks.BackupAuditor, queue Enqueuer) *BackupScheduler {
	return &BackupScheduler{
		settings: settings,
		backups:  backups,
		auditor:  auditor,
		queue:    queue,
		cron:     newCron(),
	}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
}

// Start begins the scheduler if scheduled backups are enabled.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	config := s.settings.BackupScheduleConfig()
	if !config.Enabled {
		log.Info().Msg("backup scheduler disabled")
		return nil
	}

	if err := settingsstore.ValidateCronSchedule(config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", config.Schedule, err)
	}

	s.cron = newCron()
	entryID, err := s.cron.AddFunc(config.Schedule, func() {
		s.trigger("schedule", 0)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.GetNextRunTime(config.Schedule, time.Now())
	log.Info().
		Str("schedule", config.Schedule).
		Str("description", settingsstore.GetCronDescription(config.Schedule)).
		Time("next_run", *nextRun).
		Msg("backup scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning = false
	s.cancelFunc = nil

	log.Info().Msg("backup scheduler stopped")
}

// Reschedule restarts the scheduler with the current settings.
func (s *BackupScheduler) Reschedule() error {
	s.Stop()
	return s.Start(context.Background())
}

// RunNow triggers a backup outside the schedule. With a task queue the
// backup is enqueued and the task ID returned; otherwise it runs in the
// background and the ID is empty.
func (s *BackupScheduler) RunNow(userID uint) (string, error) {
	if s.queue != nil {
		ids, err := s.queue.Add(tasks.BackupDatabaseTask{Trigger: "manual", UserID: userID}).Save()
		if err != nil {
			return "", fmt.Errorf("failed to enqueue backup: %w", err)
		}
		return ids[0], nil
	}
	go s.runInline(userID)
	return "", nil
}

func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the next scheduled backup will occur.
func (s *BackupScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *BackupScheduler) trigger(reason string, userID uint) {
	if s.queue != nil {
		if _, err := s.queue.Add(tasks.BackupDatabaseTask{Trigger: reason, UserID: userID}).Save(); err != nil {
			log.Error().Err(err).Msg("failed to enqueue scheduled backup")
			_ = s.settings.SetBackupStatus("failed", err.Error(), "")
		}
		return
	}
	s.runInline(userID)
}

func (s *BackupScheduler) runInline(userID uint) {
	if _, err := tasks.RunBackup(context.Background(), s.backups, s.settings, s.auditor, userID); err != nil {
		log.Error().Err(err).Msg("backup failed")
	}
}

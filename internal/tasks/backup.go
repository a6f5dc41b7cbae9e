package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/backup"
)

// Backupper writes one database backup.
type Backupper interface {
	Backup(ctx context.Context) (*backup.Info, error)
}

// BackupStatusRecorder persists the outcome of the latest backup run.
type BackupStatusRecorder interface {
	SetBackupStatus(status, message, file string) error
}

// BackupAuditor records backup runs in the activity log.
type BackupAuditor interface {
	LogBackup(userID uint, action, file string, err error)
}

// BackupDatabaseTask takes a backup of the clinic database.
type BackupDatabaseTask struct {
	Trigger string `json:"trigger"` // "schedule", "manual"
	UserID  uint   `json:"user_id,omitempty"`
}

func (t BackupDatabaseTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "backup_database",
		MaxAttempts: 3,
		Backoff:     2 * time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RunBackup performs a backup and records its outcome in settings and the
// activity log. recorder and auditor may be nil.
func RunBackup(ctx context.Context, b Backupper, recorder BackupStatusRecorder, auditor BackupAuditor, userID uint) (*backup.Info, error) {
	if recorder != nil {
		if err := recorder.SetBackupStatus("running", "", ""); err != nil {
			log.Warn().Err(err).Msg("failed to record backup start")
		}
	}

	info, err := b.Backup(ctx)

	status, message, file := "success", "", ""
	if err != nil {
		status, message = "failed", err.Error()
	} else {
		file = info.Name
		message = fmt.Sprintf("%s (%d bytes)", info.Name, info.Size)
	}

	if recorder != nil {
		if recErr := recorder.SetBackupStatus(status, message, file); recErr != nil {
			log.Warn().Err(recErr).Msg("failed to record backup status")
		}
	}
	if auditor != nil {
		auditor.LogBackup(userID, "backup_create", file, err)
	}

	if err != nil {
		return nil, fmt.Errorf("backup database: %w", err)
	}
	return info, nil
}

// BackupDatabaseProcessor creates a processor function for BackupDatabaseTask.
func BackupDatabaseProcessor(b Backupper, recorder BackupStatusRecorder, auditor BackupAuditor) backlite.QueueProcessor[BackupDatabaseTask] {
	return func(ctx context.Context, task BackupDatabaseTask) error {
		if b == nil {
			return fmt.Errorf("backup manager not configured")
		}
		info, err := RunBackup(ctx, b, recorder, auditor, task.UserID)
		if err != nil {
			return err
		}
		log.Info().Str("trigger", task.Trigger).Str("file", info.Name).Msg("backup task finished")
		return nil
	}
}

// NewBackupDatabaseQueue creates a backlite queue for backup tasks.
func NewBackupDatabaseQueue(b Backupper, recorder BackupStatusRecorder, auditor BackupAuditor) backlite.Queue {
	return backlite.NewQueue(BackupDatabaseProcessor(b, recorder, auditor))
}

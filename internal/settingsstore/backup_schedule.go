package settingsstore

import (
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clinicmgr/clinic/internal/entities"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// BackupScheduleConfig is the effective scheduled-backup configuration.
type BackupScheduleConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// BackupScheduleInfo includes where each value came from.
type BackupScheduleInfo struct {
	Enabled        bool       `json:"enabled"`
	EnabledSource  string     `json:"enabled_source"`
	Schedule       string     `json:"schedule"`
	ScheduleSource string     `json:"schedule_source"`
	Description    string     `json:"description"`
	NextRun        *time.Time `json:"next_run,omitempty"`
}

// BackupStatus is the outcome of the most recent backup run.
type BackupStatus struct {
	LastAt  *time.Time `json:"last_at,omitempty"`
	Status  string     `json:"status,omitempty"` // "success", "failed", "running"
	Message string     `json:"message,omitempty"`
	File    string     `json:"file,omitempty"`
}

// BackupEnabled returns whether scheduled backups run (database > env > default).
func (s *SettingsStore) BackupEnabled() bool {
	if v, err := s.stored(entities.SettingKeyBackupEnabled); err == nil && v != "" {
		return parseBool(v)
	}
	return s.backup.Enabled
}

func (s *SettingsStore) BackupEnabledSource() string {
	return s.source(entities.SettingKeyBackupEnabled, "BACKUP_ENABLED")
}

func (s *SettingsStore) SetBackupEnabled(enabled bool) error {
	return s.repo.SetSetting(entities.SettingKeyBackupEnabled, strconv.FormatBool(enabled))
}

// BackupSchedule returns the cron schedule (database > env > default).
func (s *SettingsStore) BackupSchedule() string {
	if v, err := s.stored(entities.SettingKeyBackupSchedule); err == nil && v != "" {
		return v
	}
	if s.backup.Schedule != "" {
		return s.backup.Schedule
	}
	return "0 2 * * *"
}

func (s *SettingsStore) BackupScheduleSource() string {
	return s.source(entities.SettingKeyBackupSchedule, "BACKUP_SCHEDULE")
}

// SetBackupSchedule validates and saves a cron schedule.
func (s *SettingsStore) SetBackupSchedule(schedule string) error {
	if err := ValidateCronSchedule(schedule); err != nil {
		return err
	}
	return s.repo.SetSetting(entities.SettingKeyBackupSchedule, schedule)
}

func (s *SettingsStore) BackupScheduleConfig() BackupScheduleConfig {
	return BackupScheduleConfig{
		Enabled:  s.BackupEnabled(),
		Schedule: s.BackupSchedule(),
	}
}

func (s *SettingsStore) BackupScheduleInfo() BackupScheduleInfo {
	schedule := s.BackupSchedule()
	info := BackupScheduleInfo{
		Enabled:        s.BackupEnabled(),
		EnabledSource:  s.BackupEnabledSource(),
		Schedule:       schedule,
		ScheduleSource: s.BackupScheduleSource(),
		Description:    GetCronDescription(schedule),
	}
	if info.Enabled {
		if next, err := GetNextRunTime(schedule, time.Now()); err == nil {
			info.NextRun = next
		}
	}
	return info
}

// ClearBackupSchedule removes database overrides, reverting to env/default.
func (s *SettingsStore) ClearBackupSchedule() error {
	for _, key := range []string{entities.SettingKeyBackupEnabled, entities.SettingKeyBackupSchedule} {
		if err := s.repo.DeleteSetting(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsStore) BackupStatus() BackupStatus {
	status := BackupStatus{}

	if v, _ := s.stored(entities.SettingKeyBackupLastAt); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			status.LastAt = &ts
		}
	}
	status.Status, _ = s.stored(entities.SettingKeyBackupLastStatus)
	status.Message, _ = s.stored(entities.SettingKeyBackupLastMessage)
	status.File, _ = s.stored(entities.SettingKeyBackupLastFile)

	return status
}

// SetBackupStatus records the outcome of a backup run. file may be empty
// for failed runs, in which case the previous file name is kept.
func (s *SettingsStore) SetBackupStatus(status, message, file string) error {
	values := map[string]string{
		entities.SettingKeyBackupLastAt:      time.Now().UTC().Format(time.RFC3339),
		entities.SettingKeyBackupLastStatus:  status,
		entities.SettingKeyBackupLastMessage: message,
	}
	if file != "" {
		values[entities.SettingKeyBackupLastFile] = file
	}
	return s.repo.SetMany(values)
}

func (s *SettingsStore) source(key, envVar string) string {
	if v, err := s.stored(key); err == nil && v != "" {
		return SourceDatabase
	}
	if os.Getenv(envVar) != "" {
		return SourceEnvironment
	}
	return SourceDefault
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// ValidateCronSchedule validates a five-field cron schedule string.
func ValidateCronSchedule(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return ErrInvalidCronFormat
	}
	return nil
}

// GetCronDescription returns a human-readable description of a cron schedule.
func GetCronDescription(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case "0 2 * * *":
		return "Daily at 02:00"
	case "0 22 * * *":
		return "Daily at 22:00, after clinic hours"
	case "0 8 * * *":
		return "Daily at 08:00"
	case "0 2 * * 0":
		return "Weekly on Sunday at 02:00"
	default:
		return "Custom schedule: " + schedule
	}
}

// GetNextRunTime calculates the first activation of schedule after from.
func GetNextRunTime(schedule string, from time.Time) (*time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, ErrInvalidCronFormat
	}
	next := sched.Next(from)
	return &next, nil
}

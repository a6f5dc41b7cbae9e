package settingsstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/database/settings"
	"github.com/clinicmgr/clinic/internal/entities"
)

func setupStore(t *testing.T, backup config.Backup) (*SettingsStore, *settings.Repository) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := settings.NewRepository(db.DB)
	return New(repo, backup), repo
}

func validProfile() ClinicProfile {
	return ClinicProfile{
		Name:              "Nile Family Clinic",
		Phone:             "0223456789",
		Currency:          "egp",
		ExaminationFee:    decimal.NewFromInt(250),
		ReexaminationFee:  decimal.NewFromInt(120),
		WorkingHoursStart: "10:00",
		WorkingHoursEnd:   "20:00",
	}
}

func TestClinicProfile_Defaults(t *testing.T) {
	store, _ := setupStore(t, config.Backup{})

	profile, err := store.ClinicProfile()
	require.NoError(t, err)
	assert.Equal(t, "Clinic", profile.Name)
	assert.Equal(t, "EGP", profile.Currency)
	assert.True(t, profile.ExaminationFee.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "09:00", profile.WorkingHoursStart)
}

func TestSetClinicProfile(t *testing.T) {
	store, _ := setupStore(t, config.Backup{})

	require.NoError(t, store.SetClinicProfile(validProfile()))

	profile, err := store.ClinicProfile()
	require.NoError(t, err)
	assert.Equal(t, "Nile Family Clinic", profile.Name)
	assert.Equal(t, "EGP", profile.Currency)
	assert.True(t, profile.ReexaminationFee.Equal(decimal.NewFromInt(120)))

	assert.True(t, store.FeeFor(entities.VisitTypeExamination).Equal(decimal.NewFromInt(250)))
	assert.True(t, store.FeeFor(entities.VisitTypeReexamination).Equal(decimal.NewFromInt(120)))

	t.Run("rejects invalid profiles", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*ClinicProfile)
			err    error
		}{
			{"blank name", func(p *ClinicProfile) { p.Name = "  " }, ErrNameRequired},
			{"negative fee", func(p *ClinicProfile) { p.ExaminationFee = decimal.NewFromInt(-1) }, ErrInvalidFee},
			{"start after end", func(p *ClinicProfile) { p.WorkingHoursStart = "21:00" }, ErrInvalidHours},
			{"bad clock", func(p *ClinicProfile) { p.WorkingHoursEnd = "25:00" }, ErrInvalidHours},
			{"currency", func(p *ClinicProfile) { p.Currency = "pounds" }, ErrInvalidCurrency},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				p := validProfile()
				tc.mutate(&p)
				assert.ErrorIs(t, store.SetClinicProfile(p), tc.err)
			})
		}
	})
}

func TestBackupSchedule_Priority(t *testing.T) {
	t.Run("default when nothing set", func(t *testing.T) {
		t.Setenv("BACKUP_SCHEDULE", "")
		store, _ := setupStore(t, config.Backup{})
		assert.Equal(t, "0 2 * * *", store.BackupSchedule())
		assert.Equal(t, SourceDefault, store.BackupScheduleSource())
	})

	t.Run("environment config", func(t *testing.T) {
		t.Setenv("BACKUP_SCHEDULE", "0 22 * * *")
		store, _ := setupStore(t, config.Backup{Schedule: "0 22 * * *", Enabled: true})
		assert.Equal(t, "0 22 * * *", store.BackupSchedule())
		assert.Equal(t, SourceEnvironment, store.BackupScheduleSource())
		assert.True(t, store.BackupEnabled())
	})

	t.Run("database overrides environment", func(t *testing.T) {
		t.Setenv("BACKUP_SCHEDULE", "0 22 * * *")
		store, _ := setupStore(t, config.Backup{Schedule: "0 22 * * *", Enabled: true})

		require.NoError(t, store.SetBackupSchedule("0 */6 * * *"))
		require.NoError(t, store.SetBackupEnabled(false))

		cfg := store.BackupScheduleConfig()
		assert.Equal(t, "0 */6 * * *", cfg.Schedule)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, SourceDatabase, store.BackupScheduleSource())

		require.NoError(t, store.ClearBackupSchedule())
		assert.Equal(t, "0 22 * * *", store.BackupSchedule())
		assert.True(t, store.BackupEnabled())
	})

	t.Run("invalid schedule rejected", func(t *testing.T) {
		store, _ := setupStore(t, config.Backup{})
		assert.ErrorIs(t, store.SetBackupSchedule("every night"), ErrInvalidCronFormat)
	})
}

func TestBackupScheduleInfo(t *testing.T) {
	store, _ := setupStore(t, config.Backup{Enabled: true, Schedule: "0 2 * * *"})

	info := store.BackupScheduleInfo()
	assert.Equal(t, "Daily at 02:00", info.Description)
	require.NotNil(t, info.NextRun)
	assert.True(t, info.NextRun.After(time.Now()))
}

func TestBackupStatus(t *testing.T) {
	store, _ := setupStore(t, config.Backup{})

	assert.Empty(t, store.BackupStatus().Status)

	require.NoError(t, store.SetBackupStatus("success", "backup created", "Backup_20260314_020000.db"))
	require.NoError(t, store.SetBackupStatus("failed", "disk full", ""))

	status := store.BackupStatus()
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "disk full", status.Message)
	assert.Equal(t, "Backup_20260314_020000.db", status.File, "failed runs keep the last good file")
	require.NotNil(t, status.LastAt)
}

func TestCronHelpers(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("*/15 * * * *"))
	assert.Error(t, ValidateCronSchedule("* * *"))

	assert.Equal(t, "Custom schedule: 5 4 * * 1", GetCronDescription("5 4 * * 1"))

	from := time.Date(2026, 3, 14, 1, 0, 0, 0, time.Local)
	next, err := GetNextRunTime("0 2 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 2, 0, 0, 0, time.Local), *next)

	_, err = GetNextRunTime("nope", from)
	assert.ErrorIs(t, err, ErrInvalidCronFormat)
}

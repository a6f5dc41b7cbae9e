package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/settingsstore"
)

// BackupScheduler is the running backup cron as seen by the API.
type BackupScheduler interface {
	Reschedule() error
	RunNow(userID uint) (string, error)
	IsRunning() bool
	NextRun() *time.Time
}

type SettingsController struct {
	store     SettingsStore
	scheduler BackupScheduler
	activity  ActivityLogger
}

func NewSettingsController(store SettingsStore, scheduler BackupScheduler, activity ActivityLogger) *SettingsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &SettingsController{store: store, scheduler: scheduler, activity: activity}
}

// ClinicProfile returns the clinic identity, fees and working hours.
// GET /api/settings/clinic
func (sc *SettingsController) ClinicProfile(c *gin.Context) {
	p, err := sc.store.ClinicProfile()
	if err != nil {
		respondInternalError(c, err, "load clinic profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// SaveClinicProfile validates and stores the whole profile.
// PUT /api/settings/clinic
func (sc *SettingsController) SaveClinicProfile(c *gin.Context) {
	var p settingsstore.ClinicProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		respondBadRequest(c, "invalid clinic profile")
		return
	}
	if err := sc.store.SetClinicProfile(p); err != nil {
		respondStoreError(c, err, "save clinic profile")
		return
	}

	saved, err := sc.store.ClinicProfile()
	if err != nil {
		respondInternalError(c, err, "reload clinic profile")
		return
	}
	sc.activity.LogSettings(GetUserID(c), "clinic_profile", "clinic profile updated")
	c.JSON(http.StatusOK, saved)
}

// BackupScheduleResponse combines the stored schedule with the live cron state.
type BackupScheduleResponse struct {
	settingsstore.BackupScheduleInfo
	Running    bool                       `json:"running"`
	LastBackup settingsstore.BackupStatus `json:"last_backup"`
}

func (sc *SettingsController) scheduleResponse() BackupScheduleResponse {
	resp := BackupScheduleResponse{
		BackupScheduleInfo: sc.store.BackupScheduleInfo(),
		LastBackup:         sc.store.BackupStatus(),
	}
	if sc.scheduler != nil {
		resp.Running = sc.scheduler.IsRunning()
		if next := sc.scheduler.NextRun(); next != nil {
			resp.NextRun = next
		}
	}
	return resp
}

// BackupSchedule reports whether scheduled backups run and when.
// GET /api/settings/backup
func (sc *SettingsController) BackupSchedule(c *gin.Context) {
	c.JSON(http.StatusOK, sc.scheduleResponse())
}

type backupScheduleRequest struct {
	Enabled  *bool   `json:"enabled"`
	Schedule *string `json:"schedule"`
}

// SaveBackupSchedule updates the cron expression and/or the enabled flag,
// then restarts the scheduler.
// PUT /api/settings/backup
func (sc *SettingsController) SaveBackupSchedule(c *gin.Context) {
	var req backupScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Enabled == nil && req.Schedule == nil) {
		respondBadRequest(c, "enabled or schedule is required")
		return
	}

	if req.Schedule != nil {
		if err := sc.store.SetBackupSchedule(*req.Schedule); err != nil {
			respondStoreError(c, err, "save backup schedule")
			return
		}
	}
	if req.Enabled != nil {
		if err := sc.store.SetBackupEnabled(*req.Enabled); err != nil {
			respondStoreError(c, err, "save backup flag")
			return
		}
	}
	if !sc.reschedule(c) {
		return
	}

	info := sc.store.BackupScheduleInfo()
	sc.activity.LogSettings(GetUserID(c), "backup_schedule", "backup schedule set to "+info.Schedule)
	c.JSON(http.StatusOK, sc.scheduleResponse())
}

// ResetBackupSchedule drops the stored overrides and falls back to the
// environment configuration.
// DELETE /api/settings/backup
func (sc *SettingsController) ResetBackupSchedule(c *gin.Context) {
	if err := sc.store.ClearBackupSchedule(); err != nil {
		respondInternalError(c, err, "reset backup schedule")
		return
	}
	if !sc.reschedule(c) {
		return
	}
	sc.activity.LogSettings(GetUserID(c), "backup_schedule", "backup schedule reset to defaults")
	c.JSON(http.StatusOK, sc.scheduleResponse())
}

func (sc *SettingsController) reschedule(c *gin.Context) bool {
	if sc.scheduler == nil {
		return true
	}
	if err := sc.scheduler.Reschedule(); err != nil {
		respondInternalError(c, err, "restart backup scheduler")
		return false
	}
	return true
}

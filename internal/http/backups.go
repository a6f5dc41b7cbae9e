package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/tasks"
)

// BackupsController takes, lists and restores database backups. Restore
// replaces live data and is admin only.
type BackupsController struct {
	manager   BackupManager
	status    tasks.BackupStatusRecorder
	scheduler BackupScheduler
	activity  ActivityLogger
}

func NewBackupsController(manager BackupManager, status tasks.BackupStatusRecorder, scheduler BackupScheduler, activity ActivityLogger) *BackupsController {
	if activity == nil {
		activity = nopActivityLogger{}
	}
	return &BackupsController{manager: manager, status: status, scheduler: scheduler, activity: activity}
}

// Create takes a backup now and waits for it.
// POST /api/backups
func (bc *BackupsController) Create(c *gin.Context) {
	info, err := tasks.RunBackup(c.Request.Context(), bc.manager, bc.status, bc.activity, GetUserID(c))
	if err != nil {
		respondStoreError(c, err, "create backup")
		return
	}
	respondCreated(c, info)
}

// Enqueue hands the backup to the task queue and returns its task ID.
// POST /api/backups/run
func (bc *BackupsController) Enqueue(c *gin.Context) {
	if bc.scheduler == nil {
		respondError(c, http.StatusServiceUnavailable, "backup scheduler is not running")
		return
	}
	id, err := bc.scheduler.RunNow(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "enqueue backup")
		return
	}
	respondAccepted(c, "backup started", gin.H{"task_id": id})
}

// List returns backups, newest first.
// GET /api/backups
func (bc *BackupsController) List(c *gin.Context) {
	list, err := bc.manager.List()
	if err != nil {
		respondInternalError(c, err, "list backups")
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(list))
}

type restoreRequest struct {
	Name string `json:"name" binding:"required"`
}

// Restore validates the named backup and copies it over the live database.
// POST /api/backups/restore
func (bc *BackupsController) Restore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	path, err := bc.manager.Resolve(req.Name)
	if err != nil {
		respondStoreError(c, err, "resolve backup")
		return
	}

	err = bc.manager.Restore(c.Request.Context(), path)
	bc.activity.LogBackup(GetUserID(c), "restore", req.Name, err)
	if err != nil {
		respondStoreError(c, err, "restore backup")
		return
	}

	log.Warn().Str("backup", req.Name).Uint("user_id", GetUserID(c)).Msg("database restored from backup")
	respondSuccess(c, "database restored from "+req.Name)
}

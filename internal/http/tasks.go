package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/clinicmgr/clinic/internal/tasks"
)

// TaskQueue is the part of the task client the API drives.
type TaskQueue interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TasksController handles task queue management endpoints.
type TasksController struct {
	client TaskQueue
}

func NewTasksController(client TaskQueue) *TasksController {
	return &TasksController{client: client}
}

// ListTaskTypes handles GET /api/tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"task_types": tasks.Types})
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	code := http.StatusOK
	if status == backlite.TaskStatusNotFound {
		code = http.StatusNotFound
	}
	c.JSON(code, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunTask handles POST /api/tasks/:type/run and enqueues one task.
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req tasks.RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid task parameters")
			return
		}
	}

	task, err := tasks.NewTask(taskType, req, GetUserID(c))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ids, err := tc.client.Add(task).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": ids[0],
		"type":    taskType,
		"message": "task enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

type dailyTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsRecurring bool   `json:"is_recurring"`
}

type dailyTaskPromptRequest struct {
	Prompt string `json:"prompt"`
}

type dailyTaskResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsRecurring bool      `json:"is_recurring"`
	AIGenerated bool      `json:"ai_generated"`
	CreatedAt   time.Time `json:"created_at"`
}

func newDailyTaskResponse(task db.DailyTask) dailyTaskResponse {
	return dailyTaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		IsRecurring: task.IsRecurring,
		AIGenerated: task.AIGenerated,
		CreatedAt:   task.CreatedAt,
	}
}

// ListDailyTasks 返回用户的日常任务
func (a *API) ListDailyTasks(c *gin.Context) {
	tasks, err := a.dailyTasks.List(currentUserID(c))
	if err != nil {
		a.handleDailyTaskError(c, err)
		return
	}

	items := make([]dailyTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, newDailyTaskResponse(task))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": items})
}

// CreateDailyTask 手动新建日常任务
func (a *API) CreateDailyTask(c *gin.Context) {
	var payload dailyTaskRequest
	if !bindJSON(c, &payload, "Invalid daily task payload") {
		return
	}

	task, err := a.dailyTasks.Create(currentUserID(c), service.DailyTaskInput{
		Title:       payload.Title,
		Description: payload.Description,
		IsRecurring: payload.IsRecurring,
	})
	if err != nil {
		a.handleDailyTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": newDailyTaskResponse(*task)})
}

// GenerateDailyTask 通过 AI 生成一个每日重复任务
func (a *API) GenerateDailyTask(c *gin.Context) {
	var payload dailyTaskPromptRequest
	if !bindJSON(c, &payload, "Invalid prompt payload") {
		return
	}

	task, err := a.dailyTasks.Generate(c.Request.Context(), currentUserID(c), payload.Prompt)
	if err != nil {
		a.handleDailyTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": newDailyTaskResponse(*task)})
}

// DeleteDailyTask 删除自己的日常任务
func (a *API) DeleteDailyTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid task id")
		return
	}

	if err := a.dailyTasks.Delete(currentUserID(c), id); err != nil {
		a.handleDailyTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleDailyTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDailyTaskInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnsafeGoal):
		respondError(c, http.StatusBadRequest, "This prompt is not allowed.")
	case errors.Is(err, service.ErrDailyTaskNotFound):
		respondError(c, http.StatusNotFound, "Daily task not found")
	default:
		a.logger.Error("daily task request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

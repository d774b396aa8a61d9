package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

type goalRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks"`
}

type selectGoalRequest struct {
	GoalID uint `json:"goal_id"`
}

type completeDevotionalRequest struct {
	DevotionalTaskID uint `json:"devotional_task_id"`
}

type devotionalTaskResponse struct {
	ID        uint   `json:"id"`
	GoalID    uint   `json:"goal_id"`
	DayNumber int    `json:"day_number"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

type goalResponse struct {
	ID          uint                     `json:"id"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	TaskCount   int                      `json:"task_count"`
	Tasks       []devotionalTaskResponse `json:"tasks,omitempty"`
}

func newDevotionalTaskResponse(task db.DevotionalTask) devotionalTaskResponse {
	return devotionalTaskResponse{
		ID:        task.ID,
		GoalID:    task.GoalID,
		DayNumber: task.DayNumber,
		Title:     task.Title,
		Text:      task.Text,
	}
}

func newGoalResponse(goal db.DevotionalGoal, withTasks bool) goalResponse {
	resp := goalResponse{
		ID:          goal.ID,
		Title:       goal.Title,
		Description: goal.Description,
		TaskCount:   len(goal.Tasks),
	}
	if withTasks {
		resp.Tasks = make([]devotionalTaskResponse, 0, len(goal.Tasks))
		for _, task := range goal.Tasks {
			resp.Tasks = append(resp.Tasks, newDevotionalTaskResponse(task))
		}
	}
	return resp
}

// ListGoals 返回全部灵修目标
func (a *API) ListGoals(c *gin.Context) {
	goals, err := a.goals.List()
	if err != nil {
		a.handleGoalError(c, err)
		return
	}

	items := make([]goalResponse, 0, len(goals))
	for _, goal := range goals {
		items = append(items, newGoalResponse(goal, false))
	}
	c.JSON(http.StatusOK, gin.H{"goals": items})
}

// GetGoal 返回目标及按天排序的任务
func (a *API) GetGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid goal id")
		return
	}

	goal, err := a.goals.Get(id)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": newGoalResponse(*goal, true)})
}

// CreateGoal 管理员新建目标
func (a *API) CreateGoal(c *gin.Context) {
	var payload goalRequest
	if !bindJSON(c, &payload, "Invalid goal payload") {
		return
	}

	goal, err := a.goals.Create(service.GoalInput{
		Title:       payload.Title,
		Description: payload.Description,
		Tasks:       payload.Tasks,
	})
	if err != nil {
		a.handleGoalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"goal": newGoalResponse(*goal, true)})
}

// GetSelectedGoal 返回用户当前选择的目标
func (a *API) GetSelectedGoal(c *gin.Context) {
	goal, err := a.goals.Current(currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrNoGoalSelected) {
			c.JSON(http.StatusOK, gin.H{"goal": nil})
			return
		}
		a.handleGoalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": newGoalResponse(*goal, false)})
}

// SelectGoal 设置当前目标
func (a *API) SelectGoal(c *gin.Context) {
	var payload selectGoalRequest
	if !bindJSON(c, &payload, "Invalid goal selection") {
		return
	}
	if payload.GoalID == 0 {
		respondError(c, http.StatusBadRequest, "goal_id is required")
		return
	}

	goal, err := a.goals.Select(currentUserID(c), payload.GoalID)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": newGoalResponse(*goal, false)})
}

// TodayDevotionalTask 返回当前目标的下一个任务
func (a *API) TodayDevotionalTask(c *gin.Context) {
	today, err := a.goals.Today(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.handleGoalError(c, err)
		return
	}

	resp := gin.H{
		"goal":     newGoalResponse(today.Goal, false),
		"done":     today.Done,
		"progress": newProgressResponse(today.Progress),
		"task":     nil,
	}
	if today.Task != nil {
		resp["task"] = newDevotionalTaskResponse(*today.Task)
	}
	if today.Done {
		resp["message"] = "All tasks in this goal are completed."
	}
	c.JSON(http.StatusOK, resp)
}

// GoalProgress 返回目标的解锁状态与连胜
func (a *API) GoalProgress(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid goal id")
		return
	}

	progress, err := a.goals.Progress(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": newProgressResponse(progress)})
}

// CompleteDevotionalTask 完成一个灵修任务，成功返回新的连胜
func (a *API) CompleteDevotionalTask(c *gin.Context) {
	var payload completeDevotionalRequest
	if !bindJSON(c, &payload, "Invalid completion payload") {
		return
	}
	if payload.DevotionalTaskID == 0 {
		respondError(c, http.StatusBadRequest, "devotional_task_id is required")
		return
	}

	result, err := a.goals.Complete(c.Request.Context(), currentUserID(c), payload.DevotionalTaskID)
	switch {
	case errors.Is(err, service.ErrNoGoalSelected), errors.Is(err, service.ErrUserNotFound):
		a.handleGoalError(c, err)
		return
	case err != nil:
		a.handleCompletionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCompletionResponse(result))
}

// CompletedDevotionalTasks 返回某目标下已完成的任务 ID
func (a *API) CompletedDevotionalTasks(c *gin.Context) {
	goalID, err := parseUintQuery(c, "goal_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := a.goals.CompletedTaskIDs(currentUserID(c), goalID)
	if err != nil {
		a.handleGoalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed_task_ids": ids})
}

func (a *API) handleGoalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusNotFound, "Devotional goal not found")
	case errors.Is(err, service.ErrNoGoalSelected):
		respondError(c, http.StatusNotFound, "Select a devotional goal first")
	case errors.Is(err, service.ErrGoalInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, progression.ErrStorageUnavailable):
		a.logger.Error("goal storage unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Progress storage is unavailable, please retry later")
	default:
		a.logger.Error("goal request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

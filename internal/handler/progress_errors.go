package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/progression"
	"go.uber.org/zap"
)

type completionResponse struct {
	UserID         uint      `json:"user_id"`
	PlanID         string    `json:"plan_id"`
	TaskID         string    `json:"task_id"`
	CompletionDate string    `json:"completion_date"`
	CompletedAt    time.Time `json:"completed_at"`
}

type taskStateResponse struct {
	ID         string `json:"id"`
	DayNumber  int    `json:"day_number"`
	Text       string `json:"text"`
	Completed  bool   `json:"completed"`
	Unlocked   bool   `json:"unlocked"`
	Actionable bool   `json:"actionable"`
}

type progressResponse struct {
	PlanID         string              `json:"plan_id"`
	Completed      int                 `json:"completed"`
	Total          int                 `json:"total"`
	Done           bool                `json:"done"`
	NextTaskID     *string             `json:"next_task_id"`
	Streak         int                 `json:"streak"`
	StreakLastDate *string             `json:"streak_last_date"`
	Tasks          []taskStateResponse `json:"tasks"`
}

func newCompletionResponse(result progression.Result) gin.H {
	completion := result.Completion
	return gin.H{
		"completion": completionResponse{
			UserID:         completion.UserID,
			PlanID:         completion.PlanID,
			TaskID:         completion.TaskID,
			CompletionDate: completion.Day.Format(time.DateOnly),
			CompletedAt:    completion.CompletedAt,
		},
		"streak": result.Streak,
	}
}

func newProgressResponse(progress progression.Progress) progressResponse {
	resp := progressResponse{
		PlanID:    progress.PlanID,
		Completed: progress.Completed,
		Total:     progress.Total,
		Done:      progress.Done,
		Streak:    progress.Streak.Count,
		Tasks:     make([]taskStateResponse, 0, len(progress.Tasks)),
	}
	if progress.Next != nil {
		id := progress.Next.ID
		resp.NextTaskID = &id
	}
	if progress.Streak.LastDate != nil {
		day := progress.Streak.LastDate.Format(time.DateOnly)
		resp.StreakLastDate = &day
	}
	for _, state := range progress.Tasks {
		resp.Tasks = append(resp.Tasks, taskStateResponse{
			ID:         state.Task.ID,
			DayNumber:  state.Task.Position,
			Text:       state.Task.Text,
			Completed:  state.Completed,
			Unlocked:   state.Unlocked,
			Actionable: state.Actionable,
		})
	}
	return resp
}

// handleCompletionError 把完成任务的结果映射为 HTTP 状态码
func (a *API) handleCompletionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, progression.ErrAlreadyCompletedToday):
		respondError(c, http.StatusConflict, "You have already completed a task today. Come back tomorrow!")
	case errors.Is(err, progression.ErrAlreadyCompleted):
		respondError(c, http.StatusConflict, "This task is already completed.")
	case errors.Is(err, progression.ErrTaskLocked):
		respondError(c, http.StatusConflict, "Finish the earlier tasks first.")
	case errors.Is(err, progression.ErrInvalidCompletionDate):
		respondError(c, http.StatusBadRequest, "Completion date is earlier than your last streak day.")
	case errors.Is(err, progression.ErrUnknownTask):
		respondError(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, progression.ErrStorageUnavailable):
		a.logger.Error("progress storage unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Progress storage is unavailable, please retry later")
	default:
		a.logger.Error("complete task failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

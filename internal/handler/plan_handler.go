package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

type generatePlanRequest struct {
	Goal string `json:"goal"`
}

type planTaskResponse struct {
	ID        string `json:"id"`
	DayNumber int    `json:"day_number"`
	TaskText  string `json:"task_text"`
}

type planResponse struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Goal      string             `json:"goal"`
	Provider  string             `json:"provider"`
	Fallback  bool               `json:"fallback"`
	CreatedAt time.Time          `json:"created_at"`
	Tasks     []planTaskResponse `json:"tasks"`
}

func newPlanResponse(plan *db.AIPlan) planResponse {
	resp := planResponse{
		ID:        plan.ID,
		Title:     plan.Title,
		Goal:      plan.Goal,
		Provider:  plan.Provider,
		Fallback:  plan.Fallback,
		CreatedAt: plan.CreatedAt,
		Tasks:     make([]planTaskResponse, 0, len(plan.Tasks)),
	}
	for _, task := range plan.Tasks {
		resp.Tasks = append(resp.Tasks, planTaskResponse{
			ID:        task.ID,
			DayNumber: task.DayNumber,
			TaskText:  task.TaskText,
		})
	}
	return resp
}

// GeneratePlan 根据用户目标生成 30 天计划
func (a *API) GeneratePlan(c *gin.Context) {
	var payload generatePlanRequest
	if !bindJSON(c, &payload, "Invalid plan payload") {
		return
	}

	plan, err := a.plans.Generate(c.Request.Context(), currentUserID(c), payload.Goal)
	if err != nil {
		a.handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plan": newPlanResponse(plan)})
}

// LatestPlan 返回最近一次生成的计划
func (a *API) LatestPlan(c *gin.Context) {
	plan, err := a.plans.Latest(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			c.JSON(http.StatusOK, gin.H{"plan": nil})
			return
		}
		a.handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": newPlanResponse(plan)})
}

// GetPlan 返回指定计划
func (a *API) GetPlan(c *gin.Context) {
	plan, err := a.plans.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		a.handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": newPlanResponse(plan)})
}

// PlanProgress 返回计划的解锁状态
func (a *API) PlanProgress(c *gin.Context) {
	progress, err := a.plans.Progress(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		a.handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": newProgressResponse(progress)})
}

// CompletePlanTask 完成计划中的任务
func (a *API) CompletePlanTask(c *gin.Context) {
	planID := strings.TrimSpace(c.Param("id"))
	taskID := strings.TrimSpace(c.Param("taskId"))
	if planID == "" || taskID == "" {
		respondError(c, http.StatusBadRequest, "plan id and task id are required")
		return
	}

	result, err := a.plans.Complete(c.Request.Context(), currentUserID(c), planID, taskID)
	if err != nil {
		a.handleCompletionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCompletionResponse(result))
}

// CompletedPlanTasks 返回计划下已完成的任务 ID
func (a *API) CompletedPlanTasks(c *gin.Context) {
	planID := strings.TrimSpace(c.Query("plan_id"))
	if planID == "" {
		respondError(c, http.StatusBadRequest, "plan_id query param required")
		return
	}

	ids, err := a.plans.CompletedTaskIDs(c.Request.Context(), currentUserID(c), planID)
	if err != nil {
		a.handlePlanError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed_task_ids": ids})
}

func (a *API) handlePlanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnsafeGoal):
		respondError(c, http.StatusBadRequest, "This goal is not allowed. Please choose a healthy, faith-building goal.")
	case errors.Is(err, service.ErrPlanGoalMissing):
		respondError(c, http.StatusBadRequest, "Missing goal")
	case errors.Is(err, service.ErrPlanNotFound):
		respondError(c, http.StatusNotFound, "Plan not found")
	case errors.Is(err, progression.ErrStorageUnavailable):
		a.logger.Error("plan storage unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "Progress storage is unavailable, please retry later")
	default:
		a.logger.Error("plan request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

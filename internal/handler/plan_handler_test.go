package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
)

type planEnvelope struct {
	Plan *planResponse `json:"plan"`
}

func TestGeneratePlanFallsBackWithoutAPIKey(t *testing.T) {
	api, _ := setupTestAPI(t)
	user := createUser(t, api, "hannah@example.com")

	w := serve(t, api.LatestPlan, testRequest{userID: user.ID})
	var latest planEnvelope
	decodeJSON(t, w, &latest)
	if w.Code != http.StatusOK || latest.Plan != nil {
		t.Fatalf("expected empty latest plan, got %d %s", w.Code, w.Body.String())
	}

	w = serve(t, api.GeneratePlan, testRequest{method: http.MethodPost, userID: user.ID, body: map[string]any{"goal": "Pray every morning"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("generate: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created planEnvelope
	decodeJSON(t, w, &created)
	if created.Plan == nil || len(created.Plan.Tasks) != service.PlanLength {
		t.Fatalf("expected %d tasks, got %+v", service.PlanLength, created.Plan)
	}
	if !created.Plan.Fallback || created.Plan.Tasks[0].TaskText != service.FallbackTaskText {
		t.Fatalf("expected fallback plan, got %+v", created.Plan.Tasks[0])
	}

	w = serve(t, api.LatestPlan, testRequest{userID: user.ID})
	decodeJSON(t, w, &latest)
	if latest.Plan == nil || latest.Plan.ID != created.Plan.ID {
		t.Fatalf("latest should return the generated plan")
	}
}

func TestGeneratePlanRejectsUnsafeGoal(t *testing.T) {
	api, _ := setupTestAPI(t)
	user := createUser(t, api, "miriam@example.com")

	cases := []struct {
		name string
		goal string
	}{
		{name: "blocked term", goal: "quit smoking by drinking wine"},
		{name: "empty goal", goal: "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, api.GeneratePlan, testRequest{method: http.MethodPost, userID: user.ID, body: map[string]any{"goal": tc.goal}})
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestCompletePlanTask(t *testing.T) {
	api, clock := setupTestAPI(t)
	owner := createUser(t, api, "lydia@example.com")
	other := createUser(t, api, "priscilla@example.com")

	w := serve(t, api.GeneratePlan, testRequest{method: http.MethodPost, userID: owner.ID, body: map[string]any{"goal": "Read the gospels"}})
	var created planEnvelope
	decodeJSON(t, w, &created)
	plan := created.Plan

	params := func(taskID string) gin.Params {
		return gin.Params{{Key: "id", Value: plan.ID}, {Key: "taskId", Value: taskID}}
	}

	w = serve(t, api.CompletePlanTask, testRequest{method: http.MethodPost, userID: owner.ID, params: params(plan.Tasks[0].ID)})
	if w.Code != http.StatusCreated {
		t.Fatalf("complete day 1: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	// 每天最多完成一个计划任务
	w = serve(t, api.CompletePlanTask, testRequest{method: http.MethodPost, userID: owner.ID, params: params(plan.Tasks[1].ID)})
	if w.Code != http.StatusConflict {
		t.Fatalf("complete day 2 same day: expected 409, got %d (%s)", w.Code, w.Body.String())
	}

	clock.now = clock.now.AddDate(0, 0, 1)
	w = serve(t, api.CompletePlanTask, testRequest{method: http.MethodPost, userID: owner.ID, params: params(plan.Tasks[0].ID)})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for repeated task, got %d", w.Code)
	}
	w = serve(t, api.CompletePlanTask, testRequest{method: http.MethodPost, userID: owner.ID, params: params(plan.Tasks[5].ID)})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for locked task, got %d", w.Code)
	}
	w = serve(t, api.CompletePlanTask, testRequest{method: http.MethodPost, userID: owner.ID, params: params(plan.Tasks[1].ID)})
	if w.Code != http.StatusCreated {
		t.Fatalf("complete day 2: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	w = serve(t, api.CompletePlanTask, testRequest{method: http.MethodPost, userID: other.ID, params: params(plan.Tasks[0].ID)})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's plan, got %d", w.Code)
	}
	w = serve(t, api.PlanProgress, testRequest{userID: other.ID, params: gin.Params{{Key: "id", Value: plan.ID}}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's progress, got %d", w.Code)
	}

	var ids struct {
		CompletedTaskIDs []string `json:"completed_task_ids"`
	}
	w = serve(t, api.CompletedPlanTasks, testRequest{path: "/api/user-ai-task-progress?plan_id=" + plan.ID, userID: owner.ID})
	decodeJSON(t, w, &ids)
	if len(ids.CompletedTaskIDs) != 2 {
		t.Fatalf("expected 2 completed tasks, got %v", ids.CompletedTaskIDs)
	}

	w = serve(t, api.CompletedPlanTasks, testRequest{userID: owner.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plan_id, got %d", w.Code)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	"github.com/walklog/internal/safety"
	"go.uber.org/zap"
)

type fakeAI struct {
	content string
	err     error
	calls   []aiChatRequest
}

func (f *fakeAI) call(_ context.Context, _ string, req aiChatRequest) (aiChatResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return aiChatResponse{}, f.err
	}
	return aiChatResponse{Provider: AIProviderOpenRouter, Model: "test-model", Content: f.content}, nil
}

func newTestPlanService(t *testing.T, ai *fakeAI) (*PlanService, *testClock) {
	t.Helper()
	gdb := setupTestDB(t)
	clock := &testClock{now: time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC)}
	settings := NewSystemSettingService(gdb, SystemSettings{})
	svc := NewPlanService(gdb, safety.NewDefaultFilter(), settings, time.UTC, zap.NewNop(), progression.WithClock(clock.Now))
	svc.ai = ai
	return svc, clock
}

func planJSON(n int) string {
	drafts := make([]planTaskDraft, 0, n)
	for i := 1; i <= n; i++ {
		drafts = append(drafts, planTaskDraft{DayNumber: i, TaskText: fmt.Sprintf("Read Psalm %d", i)})
	}
	data, _ := json.Marshal(drafts)
	return string(data)
}

func TestPlanServiceGeneratePadsToThirty(t *testing.T) {
	ai := &fakeAI{content: "```json\n" + planJSON(3) + "\n```"}
	svc, _ := newTestPlanService(t, ai)
	user := createTestUser(t, svc.db, "mary@example.com")

	plan, err := svc.Generate(context.Background(), user.ID, "Read scripture daily")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(ai.calls) != 1 || !strings.Contains(ai.calls[0].UserPrompt, "Read scripture daily") {
		t.Fatalf("unexpected ai calls: %#v", ai.calls)
	}
	if plan.Fallback {
		t.Fatalf("plan should not be marked as fallback")
	}
	if len(plan.Tasks) != PlanLength {
		t.Fatalf("expected %d tasks, got %d", PlanLength, len(plan.Tasks))
	}
	if plan.Tasks[0].TaskText != "Read Psalm 1" || plan.Tasks[2].TaskText != "Read Psalm 3" {
		t.Fatalf("unexpected leading tasks: %#v", plan.Tasks[:3])
	}
	for i, task := range plan.Tasks {
		if task.DayNumber != i+1 {
			t.Fatalf("task %d has day number %d", i, task.DayNumber)
		}
		if i >= 3 && task.TaskText != FallbackTaskText {
			t.Fatalf("expected padded task at %d, got %q", i, task.TaskText)
		}
	}

	latest, err := svc.Latest(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest.ID != plan.ID || len(latest.Tasks) != PlanLength || latest.Tasks[0].DayNumber != 1 {
		t.Fatalf("unexpected latest plan: %s with %d tasks", latest.ID, len(latest.Tasks))
	}

	var raw map[string]any
	if err := json.Unmarshal(latest.RawResponse, &raw); err != nil {
		t.Fatalf("raw response is not json: %v", err)
	}
	if raw["provider"] != AIProviderOpenRouter {
		t.Fatalf("unexpected raw response: %v", raw)
	}
}

func TestPlanServiceGenerateTruncates(t *testing.T) {
	svc, _ := newTestPlanService(t, &fakeAI{content: planJSON(35)})
	user := createTestUser(t, svc.db, "martha@example.com")

	plan, err := svc.Generate(context.Background(), user.ID, "Pray every morning")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(plan.Tasks) != PlanLength || plan.Tasks[29].TaskText != "Read Psalm 30" {
		t.Fatalf("expected truncated plan, got %d tasks", len(plan.Tasks))
	}
}

func TestPlanServiceGenerateFallbacks(t *testing.T) {
	cases := []struct {
		name string
		ai   *fakeAI
	}{
		{name: "provider error", ai: &fakeAI{err: ErrAIAPIKeyMissing}},
		{name: "not json", ai: &fakeAI{content: "Here is your plan: day one, pray."}},
		{name: "empty array", ai: &fakeAI{content: "[]"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestPlanService(t, tc.ai)
			user := createTestUser(t, svc.db, "eve@example.com")

			plan, err := svc.Generate(context.Background(), user.ID, "Grow in gratitude")
			if err != nil {
				t.Fatalf("generate failed: %v", err)
			}
			if !plan.Fallback {
				t.Fatalf("expected fallback plan")
			}
			if len(plan.Tasks) != PlanLength {
				t.Fatalf("expected %d tasks, got %d", PlanLength, len(plan.Tasks))
			}
			for _, task := range plan.Tasks {
				if task.TaskText != FallbackTaskText {
					t.Fatalf("expected fallback text, got %q", task.TaskText)
				}
			}
		})
	}
}

func TestPlanServiceRejectsUnsafeGoal(t *testing.T) {
	ai := &fakeAI{content: planJSON(30)}
	svc, _ := newTestPlanService(t, ai)
	user := createTestUser(t, svc.db, "abigail@example.com")

	for _, goal := range []string{"Pray and smoke less", "s-m-o-k-e less"} {
		if _, err := svc.Generate(context.Background(), user.ID, goal); !errors.Is(err, ErrUnsafeGoal) {
			t.Fatalf("expected ErrUnsafeGoal for %q, got %v", goal, err)
		}
	}
	if _, err := svc.Generate(context.Background(), user.ID, "  "); !errors.Is(err, ErrPlanGoalMissing) {
		t.Fatalf("expected ErrPlanGoalMissing, got %v", err)
	}
	if len(ai.calls) != 0 {
		t.Fatalf("unsafe goals must not reach the provider")
	}

	var count int64
	svc.db.Model(&db.AIPlan{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no stored plans, got %d", count)
	}
}

func TestPlanServiceReplacesUnsafeTasks(t *testing.T) {
	content := `[{"day_number":1,"task_text":"Go to the casino and gamble"},{"day_number":2,"task_text":"Sing a hymn"}]`
	svc, _ := newTestPlanService(t, &fakeAI{content: content})
	user := createTestUser(t, svc.db, "tabitha@example.com")

	plan, err := svc.Generate(context.Background(), user.ID, "Joyful worship")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if plan.Tasks[0].TaskText != FallbackTaskText || plan.Tasks[1].TaskText != "Sing a hymn" {
		t.Fatalf("unexpected tasks: %q, %q", plan.Tasks[0].TaskText, plan.Tasks[1].TaskText)
	}
}

func TestPlanServiceCompletion(t *testing.T) {
	svc, clock := newTestPlanService(t, &fakeAI{content: planJSON(30)})
	user := createTestUser(t, svc.db, "priscilla@example.com")
	other := createTestUser(t, svc.db, "aquila@example.com")
	ctx := context.Background()

	plan, err := svc.Generate(ctx, user.ID, "Serve my neighbours")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	day1, day2, day3 := plan.Tasks[0].ID, plan.Tasks[1].ID, plan.Tasks[2].ID

	if _, err := svc.Complete(ctx, user.ID, plan.ID, day2); !errors.Is(err, progression.ErrTaskLocked) {
		t.Fatalf("expected ErrTaskLocked, got %v", err)
	}

	result, err := svc.Complete(ctx, user.ID, plan.ID, day1)
	if err != nil {
		t.Fatalf("complete day 1 failed: %v", err)
	}
	if result.Streak != 1 || result.Completion.PlanID != plan.ID {
		t.Fatalf("unexpected result: %+v", result)
	}

	// 计划任务每天最多完成一个
	if _, err := svc.Complete(ctx, user.ID, plan.ID, day2); !errors.Is(err, progression.ErrAlreadyCompletedToday) {
		t.Fatalf("expected ErrAlreadyCompletedToday, got %v", err)
	}
	if _, err := svc.Complete(ctx, other.ID, plan.ID, day1); !errors.Is(err, progression.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask for another user's plan, got %v", err)
	}

	clock.advanceDays(1)
	if _, err := svc.Complete(ctx, user.ID, plan.ID, day1); !errors.Is(err, progression.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if _, err := svc.Complete(ctx, user.ID, plan.ID, day3); !errors.Is(err, progression.ErrTaskLocked) {
		t.Fatalf("expected ErrTaskLocked, got %v", err)
	}
	result, err = svc.Complete(ctx, user.ID, plan.ID, day2)
	if err != nil {
		t.Fatalf("complete day 2 failed: %v", err)
	}
	if result.Streak != 2 {
		t.Fatalf("expected streak 2, got %d", result.Streak)
	}

	clock.advanceDays(1)
	result, err = svc.Complete(ctx, user.ID, plan.ID, day3)
	if err != nil {
		t.Fatalf("complete day 3 failed: %v", err)
	}
	if result.Streak != 3 {
		t.Fatalf("expected streak 3, got %d", result.Streak)
	}

	progress, err := svc.Progress(ctx, user.ID, plan.ID)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if progress.Completed != 3 || progress.Total != PlanLength || progress.Next == nil || progress.Next.ID != plan.Tasks[3].ID {
		t.Fatalf("unexpected progress: completed=%d total=%d next=%v", progress.Completed, progress.Total, progress.Next)
	}

	ids, err := svc.CompletedTaskIDs(ctx, user.ID, plan.ID)
	if err != nil {
		t.Fatalf("completed ids failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 completed ids, got %v", ids)
	}

	if _, err := svc.Progress(ctx, other.ID, plan.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound for another user, got %v", err)
	}
}

func TestPlanServiceDailyCapSpansPlans(t *testing.T) {
	svc, clock := newTestPlanService(t, &fakeAI{content: planJSON(30)})
	user := createTestUser(t, svc.db, "tabitha@example.com")
	ctx := context.Background()

	first, err := svc.Generate(ctx, user.ID, "Pray for my city")
	if err != nil {
		t.Fatalf("generate first plan failed: %v", err)
	}
	second, err := svc.Generate(ctx, user.ID, "Read Acts")
	if err != nil {
		t.Fatalf("generate second plan failed: %v", err)
	}

	if _, err := svc.Complete(ctx, user.ID, first.ID, first.Tasks[0].ID); err != nil {
		t.Fatalf("complete first plan failed: %v", err)
	}
	if _, err := svc.Complete(ctx, user.ID, second.ID, second.Tasks[0].ID); !errors.Is(err, progression.ErrAlreadyCompletedToday) {
		t.Fatalf("expected ErrAlreadyCompletedToday across plans, got %v", err)
	}

	// 其他计划的完成记录不影响本计划的解锁
	progress, err := svc.Progress(ctx, user.ID, second.ID)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if progress.Completed != 0 || progress.Next == nil || progress.Next.ID != second.Tasks[0].ID {
		t.Fatalf("unexpected progress for second plan: completed=%d next=%v", progress.Completed, progress.Next)
	}

	clock.advanceDays(1)
	result, err := svc.Complete(ctx, user.ID, second.ID, second.Tasks[0].ID)
	if err != nil {
		t.Fatalf("complete second plan next day failed: %v", err)
	}
	if result.Streak != 2 {
		t.Fatalf("expected shared streak 2, got %d", result.Streak)
	}
}

func TestPlanStoreConstraints(t *testing.T) {
	svc, clock := newTestPlanService(t, &fakeAI{content: planJSON(30)})
	user := createTestUser(t, svc.db, "junia@example.com")
	ctx := context.Background()

	plan, err := svc.Generate(ctx, user.ID, "Memorise a verse")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	store := NewPlanStore(svc.db)
	completion := progression.Completion{
		UserID:      user.ID,
		PlanID:      plan.ID,
		TaskID:      plan.Tasks[0].ID,
		Day:         progression.CalendarDay(clock.now, time.UTC),
		CompletedAt: clock.now,
	}
	if err := store.InsertCompletion(ctx, completion); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	sameDay := completion
	sameDay.TaskID = plan.Tasks[1].ID
	if err := store.InsertCompletion(ctx, sameDay); !errors.Is(err, progression.ErrDuplicateDay) {
		t.Fatalf("expected ErrDuplicateDay, got %v", err)
	}

	sameTask := completion
	sameTask.Day = completion.Day.AddDate(0, 0, 1)
	if err := store.InsertCompletion(ctx, sameTask); !errors.Is(err, progression.ErrDuplicateCompletion) {
		t.Fatalf("expected ErrDuplicateCompletion, got %v", err)
	}
}

func TestPlanTablesUseFixedNames(t *testing.T) {
	gdb := setupTestDB(t)
	for _, table := range []string{"ai_plans", "ai_plan_tasks", "user_ai_task_progress"} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestParsePlanTasks(t *testing.T) {
	drafts, err := parsePlanTasks("Sure! Here you go:\n[{\"day_number\":1,\"task_text\":\"Pray\"}]\nBlessings.")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].TaskText != "Pray" {
		t.Fatalf("unexpected drafts: %#v", drafts)
	}

	if _, err := parsePlanTasks("no array here"); err == nil {
		t.Fatalf("expected error for missing array")
	}
}

func TestPlanTitle(t *testing.T) {
	long := strings.Repeat("祷", 60)
	if got := planTitle(long); len([]rune(got)) != maxPlanTitleRunes {
		t.Fatalf("expected %d runes, got %d", maxPlanTitleRunes, len([]rune(got)))
	}
	if got := planTitle("  "); got != defaultPlanTitle {
		t.Fatalf("expected default title, got %q", got)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	"github.com/walklog/internal/safety"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// PlanLength 是每个 AI 计划的天数
	PlanLength = 30
	// FallbackTaskText 用于补齐或替换无法使用的任务
	FallbackTaskText = "Reflect and pray today."

	defaultPlanTitle   = "My AI Plan"
	maxPlanTitleRunes  = 50
	planSystemPrompt   = "You are a gentle Christian devotional coach. Reply with JSON only."
	planPromptTemplate = `Generate a 30-day devotional plan for the goal: %q.
Return as a JSON array:
[
  { "day_number": 1, "task_text": "Task description for day 1" },
  ...
  { "day_number": 30, "task_text": "Task description for day 30" }
]
Ensure exactly 30 tasks, each unique, no extra text outside JSON.`
)

var (
	// ErrUnsafeGoal 目标未通过内容安全检查
	ErrUnsafeGoal = errors.New("this goal is not allowed")
	// ErrPlanGoalMissing 未提供目标
	ErrPlanGoalMissing = errors.New("missing goal")
	// ErrPlanNotFound 计划不存在或不属于当前用户
	ErrPlanNotFound = errors.New("ai plan not found")
)

type aiCaller interface {
	call(ctx context.Context, kind string, req aiChatRequest) (aiChatResponse, error)
}

type planTaskDraft struct {
	DayNumber int    `json:"day_number"`
	TaskText  string `json:"task_text"`
}

// PlanService 生成 AI 计划并记录计划任务的完成情况
type PlanService struct {
	db      *gorm.DB
	filter  *safety.Filter
	ai      aiCaller
	tracker *progression.Tracker
	logger  *zap.Logger
	now     func() time.Time
}

// NewPlanService 构造 PlanService
func NewPlanService(gdb *gorm.DB, filter *safety.Filter, settings *SystemSettingService, loc *time.Location, logger *zap.Logger, opts ...progression.TrackerOption) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := progression.NewEngine(progression.PlanRule, loc)
	opts = append([]progression.TrackerOption{progression.WithLogger(logger)}, opts...)
	return &PlanService{
		db:      gdb,
		filter:  filter,
		ai:      newAIChatClient(settings, logger),
		tracker: progression.NewTracker(NewPlanStore(gdb), engine, opts...),
		logger:  logger,
		now:     time.Now,
	}
}

// Tracker 暴露底层 tracker，供 CLI 查询进度
func (s *PlanService) Tracker() *progression.Tracker {
	return s.tracker
}

// Generate 为目标生成 30 天计划；模型不可用或输出无法解析时使用兜底任务
func (s *PlanService) Generate(ctx context.Context, userID uint, goal string) (*db.AIPlan, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrPlanGoalMissing
	}
	if verdict := s.filter.Check(goal); !verdict.Safe {
		s.logger.Info("unsafe plan goal rejected", zap.Uint("user_id", userID), zap.String("term", verdict.Term))
		return nil, ErrUnsafeGoal
	}

	raw := map[string]any{}
	var drafts []planTaskDraft
	resp, err := s.ai.call(ctx, "plan", aiChatRequest{
		SystemPrompt: planSystemPrompt,
		UserPrompt:   fmt.Sprintf(planPromptTemplate, goal),
		Temperature:  0.7,
	})
	if err != nil {
		s.logger.Warn("ai plan generation failed, using fallback tasks", zap.Uint("user_id", userID), zap.Error(err))
		raw["error"] = err.Error()
	} else {
		raw["provider"] = resp.Provider
		raw["model"] = resp.Model
		raw["content"] = resp.Content
		drafts, err = parsePlanTasks(resp.Content)
		if err != nil {
			s.logger.Warn("ai plan json parse failed, using fallback tasks", zap.Uint("user_id", userID), zap.Error(err))
			raw["parse_error"] = err.Error()
		}
	}

	tasks, fallback := s.normalizePlanTasks(drafts)
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode raw response: %w", err)
	}

	plan := db.AIPlan{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       planTitle(goal),
		Goal:        goal,
		Provider:    resp.Provider,
		RawResponse: datatypes.JSON(rawJSON),
		Fallback:    fallback,
		CreatedAt:   s.now(),
	}
	for i, text := range tasks {
		plan.Tasks = append(plan.Tasks, db.AIPlanTask{
			ID:        uuid.NewString(),
			DayNumber: i + 1,
			TaskText:  text,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&plan).Error
	}); err != nil {
		return nil, fmt.Errorf("save ai plan: %w", err)
	}
	return &plan, nil
}

// Latest 返回用户最近生成的计划
func (s *PlanService) Latest(ctx context.Context, userID uint) (*db.AIPlan, error) {
	var plan db.AIPlan
	err := s.db.WithContext(ctx).
		Preload("Tasks", func(tx *gorm.DB) *gorm.DB { return tx.Order("day_number ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get latest ai plan: %w", err)
	}
	return &plan, nil
}

// Get 返回属于用户的计划
func (s *PlanService) Get(ctx context.Context, userID uint, planID string) (*db.AIPlan, error) {
	var plan db.AIPlan
	err := s.db.WithContext(ctx).
		Preload("Tasks", func(tx *gorm.DB) *gorm.DB { return tx.Order("day_number ASC") }).
		Where("id = ? AND user_id = ?", planID, userID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get ai plan: %w", err)
	}
	return &plan, nil
}

// Complete 完成计划中的任务，同一任务只能完成一次
func (s *PlanService) Complete(ctx context.Context, userID uint, planID, taskID string) (progression.Result, error) {
	return s.tracker.Complete(ctx, userID, planID, taskID)
}

// Progress 返回计划的解锁状态
func (s *PlanService) Progress(ctx context.Context, userID uint, planID string) (progression.Progress, error) {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return progression.Progress{}, err
	}
	return s.tracker.Progress(ctx, userID, planID)
}

// CompletedTaskIDs 返回用户在计划下已完成的任务 ID
func (s *PlanService) CompletedTaskIDs(ctx context.Context, userID uint, planID string) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&db.UserAITaskProgress{}).
		Where("user_id = ? AND plan_id = ?", userID, planID).
		Order("completed_at ASC").
		Pluck("ai_plan_task_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list completed plan tasks: %w", err)
	}
	return ids, nil
}

// normalizePlanTasks 截断或补齐到 PlanLength，未通过安全检查的任务替换为兜底文本
func (s *PlanService) normalizePlanTasks(drafts []planTaskDraft) ([]string, bool) {
	fallback := len(drafts) == 0
	tasks := make([]string, 0, PlanLength)
	for _, draft := range drafts {
		if len(tasks) == PlanLength {
			break
		}
		text := strings.TrimSpace(draft.TaskText)
		if text == "" || !s.filter.IsSafeGoal(text) {
			text = FallbackTaskText
		}
		tasks = append(tasks, text)
	}
	for len(tasks) < PlanLength {
		tasks = append(tasks, FallbackTaskText)
	}
	return tasks, fallback
}

// parsePlanTasks 解析模型返回的 JSON 数组，容忍 ``` 代码块包裹与前后多余文本
func parsePlanTasks(content string) ([]planTaskDraft, error) {
	content = stripCodeFence(content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no json array in response")
	}

	var drafts []planTaskDraft
	if err := json.Unmarshal([]byte(content[start:end+1]), &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if idx := strings.Index(content, "\n"); idx >= 0 {
		content = content[idx+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func planTitle(goal string) string {
	runes := []rune(strings.TrimSpace(goal))
	if len(runes) == 0 {
		return defaultPlanTitle
	}
	if len(runes) > maxPlanTitleRunes {
		runes = runes[:maxPlanTitleRunes]
	}
	return string(runes)
}

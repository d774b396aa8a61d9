package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/walklog/internal/db"
	"github.com/walklog/internal/safety"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDailyTaskNotFound 日常任务不存在
	ErrDailyTaskNotFound = errors.New("daily task not found")
	// ErrDailyTaskInvalidInput 标题或提示词为空
	ErrDailyTaskInvalidInput = errors.New("invalid daily task input")
)

const dailyTaskPromptTemplate = `Generate a concise recurring daily task for: %q. Return JSON { "title": "...", "description": "..." }`

// DailyTaskInput 描述手动创建的日常任务
type DailyTaskInput struct {
	Title       string
	Description string
	IsRecurring bool
}

// DailyTaskService 管理用户的日常任务
type DailyTaskService struct {
	db     *gorm.DB
	filter *safety.Filter
	ai     aiCaller
	logger *zap.Logger
}

// NewDailyTaskService 构造 DailyTaskService
func NewDailyTaskService(gdb *gorm.DB, filter *safety.Filter, settings *SystemSettingService, logger *zap.Logger) *DailyTaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTaskService{
		db:     gdb,
		filter: filter,
		ai:     newAIChatClient(settings, logger),
		logger: logger,
	}
}

// List 返回用户的日常任务，按创建时间升序
func (s *DailyTaskService) List(userID uint) ([]db.DailyTask, error) {
	var tasks []db.DailyTask
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list daily tasks: %w", err)
	}
	return tasks, nil
}

// Create 新建手动任务
func (s *DailyTaskService) Create(userID uint, input DailyTaskInput) (*db.DailyTask, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrDailyTaskInvalidInput)
	}

	task := db.DailyTask{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		IsRecurring: input.IsRecurring,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create daily task: %w", err)
	}
	return &task, nil
}

// Generate 根据提示词让模型生成一个每日重复任务，模型不可用时直接使用提示词
func (s *DailyTaskService) Generate(ctx context.Context, userID uint, prompt string) (*db.DailyTask, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrDailyTaskInvalidInput)
	}
	if !s.filter.IsSafeGoal(prompt) {
		return nil, ErrUnsafeGoal
	}

	title, description := prompt, prompt
	resp, err := s.ai.call(ctx, "daily-task", aiChatRequest{
		UserPrompt:  fmt.Sprintf(dailyTaskPromptTemplate, prompt),
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		s.logger.Warn("ai daily task generation failed, using prompt", zap.Uint("user_id", userID), zap.Error(err))
	} else if generated, ok := parseDailyTask(resp.Content); ok {
		if generated.Title != "" && s.filter.IsSafeGoal(generated.Title) {
			title = generated.Title
		}
		if s.filter.IsSafeGoal(generated.Description) {
			description = generated.Description
		} else {
			description = ""
		}
	}

	task := db.DailyTask{
		UserID:      userID,
		Title:       title,
		Description: description,
		IsRecurring: true,
		AIGenerated: true,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create daily task: %w", err)
	}
	return &task, nil
}

// Delete 删除属于用户的任务
func (s *DailyTaskService) Delete(userID, id uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&db.DailyTask{})
	if result.Error != nil {
		return fmt.Errorf("delete daily task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDailyTaskNotFound
	}
	return nil
}

type dailyTaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func parseDailyTask(content string) (dailyTaskDraft, bool) {
	content = stripCodeFence(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return dailyTaskDraft{}, false
	}

	var draft dailyTaskDraft
	if err := json.Unmarshal([]byte(content[start:end+1]), &draft); err != nil {
		return dailyTaskDraft{}, false
	}
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	return draft, draft.Title != "" || draft.Description != ""
}

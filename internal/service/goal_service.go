package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrGoalNotFound 灵修目标不存在
	ErrGoalNotFound = errors.New("devotional goal not found")
	// ErrNoGoalSelected 用户尚未选择灵修目标
	ErrNoGoalSelected = errors.New("no devotional goal selected")
	// ErrGoalInvalidInput 创建目标时缺少标题或任务
	ErrGoalInvalidInput = errors.New("invalid devotional goal input")
)

// GoalInput 描述管理员创建目标时的字段，Tasks 依次对应第 1..n 天
type GoalInput struct {
	Title       string
	Description string
	Tasks       []string
}

// TodayTask 是当前目标下的下一个可完成任务，Done 表示全部完成
type TodayTask struct {
	Goal     db.DevotionalGoal
	Task     *db.DevotionalTask
	Done     bool
	Progress progression.Progress
}

// GoalService 管理灵修目标并通过 progression.Tracker 记录完成情况
type GoalService struct {
	db      *gorm.DB
	tracker *progression.Tracker
}

// NewGoalService 构造 GoalService，loc 决定“今天”的边界
func NewGoalService(gdb *gorm.DB, loc *time.Location, logger *zap.Logger, opts ...progression.TrackerOption) *GoalService {
	engine := progression.NewEngine(progression.DevotionalRule, loc)
	opts = append([]progression.TrackerOption{progression.WithLogger(logger)}, opts...)
	return &GoalService{
		db:      gdb,
		tracker: progression.NewTracker(NewDevotionalStore(gdb), engine, opts...),
	}
}

// Tracker 暴露底层 tracker，供 CLI 查询进度
func (s *GoalService) Tracker() *progression.Tracker {
	return s.tracker
}

// List 返回全部目标，按创建顺序
func (s *GoalService) List() ([]db.DevotionalGoal, error) {
	var goals []db.DevotionalGoal
	if err := s.db.Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list devotional goals: %w", err)
	}
	return goals, nil
}

// Get 返回目标及按天排序的任务
func (s *GoalService) Get(id uint) (*db.DevotionalGoal, error) {
	var goal db.DevotionalGoal
	err := s.db.Preload("Tasks", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("day_number ASC")
	}).First(&goal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get devotional goal: %w", err)
	}
	return &goal, nil
}

// Create 新建目标与任务，任务创建后不可修改
func (s *GoalService) Create(input GoalInput) (*db.DevotionalGoal, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrGoalInvalidInput)
	}

	tasks := make([]db.DevotionalTask, 0, len(input.Tasks))
	for _, text := range input.Tasks {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		day := len(tasks) + 1
		tasks = append(tasks, db.DevotionalTask{
			DayNumber: day,
			Title:     fmt.Sprintf("Day %d", day),
			Text:      text,
		})
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: at least one task is required", ErrGoalInvalidInput)
	}

	goal := db.DevotionalGoal{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Tasks:       tasks,
	}
	if err := s.db.Create(&goal).Error; err != nil {
		return nil, fmt.Errorf("create devotional goal: %w", err)
	}
	return &goal, nil
}

// Select 设置用户当前的灵修目标
func (s *GoalService) Select(userID, goalID uint) (*db.DevotionalGoal, error) {
	goal, err := s.Get(goalID)
	if err != nil {
		return nil, err
	}

	result := s.db.Model(&db.User{}).Where("id = ?", userID).Update("devotional_goal_id", goal.ID)
	if result.Error != nil {
		return nil, fmt.Errorf("select devotional goal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return goal, nil
}

// Current 返回用户当前选择的目标
func (s *GoalService) Current(userID uint) (*db.DevotionalGoal, error) {
	var user db.User
	if err := s.db.Select("id", "devotional_goal_id").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.DevotionalGoalID == nil {
		return nil, ErrNoGoalSelected
	}

	goal, err := s.Get(*user.DevotionalGoalID)
	if errors.Is(err, ErrGoalNotFound) {
		return nil, ErrNoGoalSelected
	}
	return goal, err
}

// Today 返回当前目标的下一个任务
func (s *GoalService) Today(ctx context.Context, userID uint) (TodayTask, error) {
	goal, err := s.Current(userID)
	if err != nil {
		return TodayTask{}, err
	}

	progress, err := s.tracker.Progress(ctx, userID, formatID(goal.ID))
	if err != nil {
		return TodayTask{}, err
	}

	today := TodayTask{Goal: *goal, Progress: progress, Done: progress.Done}
	if progress.Next != nil {
		for i := range goal.Tasks {
			if formatID(goal.Tasks[i].ID) == progress.Next.ID {
				today.Task = &goal.Tasks[i]
				break
			}
		}
	}
	return today, nil
}

// Progress 返回指定目标的解锁状态与连胜
func (s *GoalService) Progress(ctx context.Context, userID, goalID uint) (progression.Progress, error) {
	if _, err := s.Get(goalID); err != nil {
		return progression.Progress{}, err
	}
	return s.tracker.Progress(ctx, userID, formatID(goalID))
}

// CompletedTaskIDs 返回用户在目标下已完成的任务 ID
func (s *GoalService) CompletedTaskIDs(userID, goalID uint) ([]uint, error) {
	ids := []uint{}
	err := s.db.Model(&db.UserTaskProgress{}).
		Joins("JOIN devotional_tasks ON devotional_tasks.id = user_task_progress.devotional_task_id").
		Where("user_task_progress.user_id = ? AND devotional_tasks.goal_id = ?", userID, goalID).
		Order("user_task_progress.completion_date ASC").
		Pluck("user_task_progress.devotional_task_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	return ids, nil
}

// Complete 完成当前所选目标中的一个任务，不属于该目标的任务返回 ErrUnknownTask
func (s *GoalService) Complete(ctx context.Context, userID, taskID uint) (progression.Result, error) {
	goal, err := s.Current(userID)
	if err != nil {
		return progression.Result{}, err
	}
	return s.tracker.Complete(ctx, userID, formatID(goal.ID), formatID(taskID))
}

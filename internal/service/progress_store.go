package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	"gorm.io/gorm"
)

// streakColumns 负责在 users 表上读写连胜字段，两种任务进度共用
type streakColumns struct {
	db *gorm.DB
}

func (s streakColumns) Streak(ctx context.Context, userID uint) (progression.Streak, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Select("id", "streak", "streak_last_date").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return progression.Streak{}, ErrUserNotFound
		}
		return progression.Streak{}, err
	}
	return progression.Streak{Count: user.Streak, LastDate: user.StreakLastDate}, nil
}

func (s streakColumns) SaveStreak(ctx context.Context, userID uint, streak progression.Streak) error {
	result := s.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Updates(map[string]any{
		"streak":           streak.Count,
		"streak_last_date": streak.LastDate,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isUniqueViolation 兼容开启/未开启 TranslateError 两种情况
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// DevotionalStore 实现 progression.Store：灵修目标任务，每天全局最多完成一个
type DevotionalStore struct {
	streakColumns
}

// NewDevotionalStore 构造 DevotionalStore
func NewDevotionalStore(gdb *gorm.DB) *DevotionalStore {
	return &DevotionalStore{streakColumns{db: gdb}}
}

// Transaction 在同一事务中执行 fn
func (s *DevotionalStore) Transaction(ctx context.Context, fn func(tx progression.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewDevotionalStore(tx))
	})
}

// Tasks 返回目标下按 day_number 排序的任务，planID 为目标 ID
func (s *DevotionalStore) Tasks(ctx context.Context, _ uint, planID string) ([]progression.Task, error) {
	goalID, err := strconv.ParseUint(planID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid goal id %q", progression.ErrUnknownTask, planID)
	}

	var tasks []db.DevotionalTask
	if err := s.db.WithContext(ctx).Where("goal_id = ?", goalID).Order("day_number ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	out := make([]progression.Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, progression.Task{ID: formatID(task.ID), Position: task.DayNumber, Text: task.Text})
	}
	return out, nil
}

// Completions 返回用户全部灵修完成记录（全局范围，配合每日上限）
func (s *DevotionalStore) Completions(ctx context.Context, userID uint, _ string) ([]progression.Completion, error) {
	var rows []struct {
		db.UserTaskProgress
		GoalID uint
	}
	if err := s.db.WithContext(ctx).
		Model(&db.UserTaskProgress{}).
		Select("user_task_progress.*, devotional_tasks.goal_id AS goal_id").
		Joins("LEFT JOIN devotional_tasks ON devotional_tasks.id = user_task_progress.devotional_task_id").
		Where("user_task_progress.user_id = ?", userID).
		Order("user_task_progress.completion_date ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]progression.Completion, 0, len(rows))
	for _, row := range rows {
		out = append(out, progression.Completion{
			UserID:      row.UserID,
			PlanID:      formatID(row.GoalID),
			TaskID:      formatID(row.DevotionalTaskID),
			Day:         row.CompletionDate.UTC(),
			CompletedAt: row.CompletedAt,
		})
	}
	return out, nil
}

// InsertCompletion 写入完成记录，唯一的约束是 (用户, 日期)，冲突返回 ErrDuplicateDay
func (s *DevotionalStore) InsertCompletion(ctx context.Context, c progression.Completion) error {
	taskID, err := strconv.ParseUint(c.TaskID, 10, 64)
	if err != nil {
		return progression.ErrUnknownTask
	}

	record := db.UserTaskProgress{
		UserID:           c.UserID,
		DevotionalTaskID: uint(taskID),
		CompletionDate:   c.Day,
		CompletedAt:      c.CompletedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return progression.ErrDuplicateDay
		}
		return err
	}
	return nil
}

// PlanStore 实现 progression.Store：AI 计划任务，每个任务只能完成一次，所有计划合计每天一个
type PlanStore struct {
	streakColumns
}

// NewPlanStore 构造 PlanStore
func NewPlanStore(gdb *gorm.DB) *PlanStore {
	return &PlanStore{streakColumns{db: gdb}}
}

// Transaction 在同一事务中执行 fn
func (s *PlanStore) Transaction(ctx context.Context, fn func(tx progression.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewPlanStore(tx))
	})
}

// Tasks 只返回属于该用户的计划任务，其他人的计划视为不存在
func (s *PlanStore) Tasks(ctx context.Context, userID uint, planID string) ([]progression.Task, error) {
	var tasks []db.AIPlanTask
	if err := s.db.WithContext(ctx).
		Joins("JOIN ai_plans ON ai_plans.id = ai_plan_tasks.plan_id").
		Where("ai_plan_tasks.plan_id = ? AND ai_plans.user_id = ?", planID, userID).
		Order("ai_plan_tasks.day_number ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	out := make([]progression.Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, progression.Task{ID: task.ID, Position: task.DayNumber, Text: task.TaskText})
	}
	return out, nil
}

// Completions 返回用户全部 AI 计划的完成记录，每日上限跨计划生效
// 任务 ID 为 UUID，其他计划的记录不会影响本计划的解锁状态
func (s *PlanStore) Completions(ctx context.Context, userID uint, _ string) ([]progression.Completion, error) {
	var rows []db.UserAITaskProgress
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]progression.Completion, 0, len(rows))
	for _, row := range rows {
		out = append(out, progression.Completion{
			UserID:      row.UserID,
			PlanID:      row.PlanID,
			TaskID:      row.AIPlanTaskID,
			Day:         row.CompletionDate.UTC(),
			CompletedAt: row.CompletedAt,
		})
	}
	return out, nil
}

// InsertCompletion 写入完成记录
// 两个唯一约束共用同一种驱动错误，冲突后再查 (用户, 任务) 区分触发的是哪一个
func (s *PlanStore) InsertCompletion(ctx context.Context, c progression.Completion) error {
	record := db.UserAITaskProgress{
		UserID:         c.UserID,
		AIPlanTaskID:   c.TaskID,
		PlanID:         c.PlanID,
		CompletionDate: c.Day,
		CompletedAt:    c.CompletedAt,
	}
	err := s.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.UserAITaskProgress{}).
		Where("user_id = ? AND ai_plan_task_id = ?", c.UserID, c.TaskID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return progression.ErrDuplicateCompletion
	}
	return progression.ErrDuplicateDay
}

func formatID(id uint) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}

package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DevotionalGoal 是一组按 DayNumber 排序的灵修任务
type DevotionalGoal struct {
	gorm.Model
	Title       string `gorm:"not null"`
	Description string
	Tasks       []DevotionalTask `gorm:"foreignKey:GoalID;constraint:OnDelete:CASCADE"`
}

// DevotionalTask 属于某个目标，创建后不再修改
type DevotionalTask struct {
	gorm.Model
	GoalID    uint   `gorm:"not null;uniqueIndex:idx_devotional_task_day"`
	DayNumber int    `gorm:"not null;uniqueIndex:idx_devotional_task_day"`
	Title     string
	Text      string `gorm:"type:text"`
}

// UserTaskProgress 记录灵修任务的完成情况
// user_id + completion_date 唯一：每个用户每天只能完成一个灵修任务
type UserTaskProgress struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_user_task_progress_day"`
	DevotionalTaskID uint      `gorm:"not null;index"`
	CompletionDate   time.Time `gorm:"not null;uniqueIndex:idx_user_task_progress_day"`
	CompletedAt      time.Time `gorm:"not null"`
}

// TableName 固定表名，唯一索引依赖它
func (UserTaskProgress) TableName() string {
	return "user_task_progress"
}

// AIPlan 是模型生成的 30 天计划，主键使用 UUID
type AIPlan struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      uint   `gorm:"not null;index"`
	Title       string
	Goal        string `gorm:"type:text"`
	Provider    string
	RawResponse datatypes.JSON
	Fallback    bool
	CreatedAt   time.Time
	Tasks       []AIPlanTask `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
}

// TableName 固定表名，默认命名会把 AI 拆成 a_i
func (AIPlan) TableName() string {
	return "ai_plans"
}

// AIPlanTask 是计划中的单日任务
type AIPlanTask struct {
	ID        string `gorm:"primaryKey;size:36"`
	PlanID    string `gorm:"not null;size:36;uniqueIndex:idx_ai_plan_task_day"`
	DayNumber int    `gorm:"not null;uniqueIndex:idx_ai_plan_task_day"`
	TaskText  string `gorm:"type:text"`
}

// TableName 固定表名
func (AIPlanTask) TableName() string {
	return "ai_plan_tasks"
}

// UserAITaskProgress 记录 AI 计划任务的完成情况
// user_id + ai_plan_task_id 唯一，同一任务只能完成一次
// user_id + completion_date 唯一，所有 AI 计划合计每天只能完成一个任务
type UserAITaskProgress struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_user_ai_task;uniqueIndex:idx_user_ai_task_day"`
	AIPlanTaskID   string    `gorm:"not null;size:36;uniqueIndex:idx_user_ai_task"`
	PlanID         string    `gorm:"not null;size:36;index"`
	CompletionDate time.Time `gorm:"not null;uniqueIndex:idx_user_ai_task_day"`
	CompletedAt    time.Time `gorm:"not null"`
}

// TableName 固定表名
func (UserAITaskProgress) TableName() string {
	return "user_ai_task_progress"
}

// DailyTask 是用户自定义或 AI 生成的日常任务
type DailyTask struct {
	gorm.Model
	UserID      uint   `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	IsRecurring bool
	AIGenerated bool
}

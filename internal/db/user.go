package db

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了用户模型
// Streak/StreakLastDate 只由完成任务的流程更新，其余接口只读
type User struct {
	gorm.Model
	Email            string `gorm:"uniqueIndex;not null"`
	Password         string `gorm:"not null"`
	Name             string
	Avatar           string
	IsAdmin          bool `gorm:"default:false"`
	Streak           int  `gorm:"default:0"`
	StreakLastDate   *time.Time
	DevotionalGoalID *uint
}

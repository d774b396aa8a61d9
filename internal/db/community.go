package db

import (
	"time"

	"gorm.io/gorm"
)

// 审核状态，反思与评论共用
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Journal 是用户私有的日记
type Journal struct {
	gorm.Model
	UserID  uint   `gorm:"not null;index"`
	Title   string `gorm:"not null"`
	Content string `gorm:"type:text"`
	Mood    string
}

// NicheTag 是反思可关联的主题标签
type NicheTag struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null"`
}

// Reflection 是公开分享的反思，需审核后才出现在信息流
type Reflection struct {
	gorm.Model
	UserID   uint   `gorm:"not null;index"`
	User     User   `gorm:"constraint:OnDelete:CASCADE"`
	Text     string `gorm:"type:text;not null"`
	Mood     string
	Status   string     `gorm:"default:pending;index"`
	Tags     []NicheTag `gorm:"many2many:reflection_niche_tags;"`
	Likes    []ReflectionLike
	Comments []ReflectionComment
}

// ReflectionLike 记录点赞，reflection_id + user_id 唯一
type ReflectionLike struct {
	ID           uint `gorm:"primaryKey"`
	ReflectionID uint `gorm:"not null;uniqueIndex:idx_reflection_like"`
	UserID       uint `gorm:"not null;uniqueIndex:idx_reflection_like"`
	CreatedAt    time.Time
}

// ReflectionComment 评论默认 pending，审核通过后公开
type ReflectionComment struct {
	gorm.Model
	ReflectionID uint       `gorm:"not null;index"`
	Reflection   Reflection `gorm:"constraint:OnDelete:CASCADE"`
	UserID       uint       `gorm:"not null;index"`
	User         User
	Comment      string `gorm:"type:text;not null"`
	Status       string `gorm:"default:pending;index"`
}

// GoodNews 是每日一张的鼓励卡片
type GoodNews struct {
	gorm.Model
	Title       string    `gorm:"not null"`
	Content     string    `gorm:"type:text"`
	ImageURL    string
	ImageWidth  int
	ImageHeight int
	Date        time.Time `gorm:"uniqueIndex;not null"`
}

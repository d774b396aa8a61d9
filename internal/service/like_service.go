package service

import (
	"fmt"

	"github.com/walklog/internal/db"
	"gorm.io/gorm"
)

// LikeStatus 描述某用户对反思的点赞状态
type LikeStatus struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

// LikeService 处理点赞，同一用户对同一反思最多一条记录
type LikeService struct {
	db *gorm.DB
}

// NewLikeService 构造 LikeService
func NewLikeService(gdb *gorm.DB) *LikeService {
	return &LikeService{db: gdb}
}

// Toggle 切换点赞状态并返回最新状态
func (s *LikeService) Toggle(reflectionID, userID uint) (LikeStatus, error) {
	if err := requireApprovedReflection(s.db, reflectionID); err != nil {
		return LikeStatus{}, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("reflection_id = ? AND user_id = ?", reflectionID, userID).Delete(&db.ReflectionLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		like := db.ReflectionLike{ReflectionID: reflectionID, UserID: userID}
		if err := tx.Create(&like).Error; err != nil && !isUniqueViolation(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return LikeStatus{}, fmt.Errorf("toggle like: %w", err)
	}
	return s.Status(reflectionID, userID)
}

// Status 返回点赞状态与总数
func (s *LikeService) Status(reflectionID, userID uint) (LikeStatus, error) {
	var status LikeStatus
	if err := s.db.Model(&db.ReflectionLike{}).Where("reflection_id = ?", reflectionID).Count(&status.Count).Error; err != nil {
		return LikeStatus{}, fmt.Errorf("count likes: %w", err)
	}

	var mine int64
	if err := s.db.Model(&db.ReflectionLike{}).Where("reflection_id = ? AND user_id = ?", reflectionID, userID).Count(&mine).Error; err != nil {
		return LikeStatus{}, fmt.Errorf("count likes: %w", err)
	}
	status.Liked = mine > 0
	return status, nil
}

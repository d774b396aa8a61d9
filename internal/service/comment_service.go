package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/walklog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrCommentNotFound 评论不存在
	ErrCommentNotFound = errors.New("comment not found")
	// ErrCommentRequired 评论内容为空
	ErrCommentRequired = errors.New("comment is required")
)

// CommentView 是输出用的评论
type CommentView struct {
	ID           uint       `json:"id"`
	ReflectionID uint       `json:"reflection_id"`
	Author       AuthorView `json:"author"`
	Comment      string     `json:"comment"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CommentService 管理反思下的评论，评论需审核后公开
type CommentService struct {
	db *gorm.DB
}

// NewCommentService 构造 CommentService
func NewCommentService(gdb *gorm.DB) *CommentService {
	return &CommentService{db: gdb}
}

// Add 为已审核的反思添加评论
func (s *CommentService) Add(reflectionID, userID uint, text string) (CommentView, error) {
	text = StripMarkup(text)
	if text == "" {
		return CommentView{}, ErrCommentRequired
	}
	if err := requireApprovedReflection(s.db, reflectionID); err != nil {
		return CommentView{}, err
	}

	comment := db.ReflectionComment{
		ReflectionID: reflectionID,
		UserID:       userID,
		Comment:      text,
		Status:       db.StatusPending,
	}
	if err := s.db.Omit("Reflection", "User").Create(&comment).Error; err != nil {
		return CommentView{}, fmt.Errorf("create comment: %w", err)
	}
	return s.get(comment.ID)
}

// ListApproved 返回已审核的评论，最早的在前
func (s *CommentService) ListApproved(reflectionID uint) ([]CommentView, error) {
	return s.list(s.db.Where("reflection_id = ? AND status = ?", reflectionID, db.StatusApproved))
}

// Pending 返回全部待审核评论
func (s *CommentService) Pending() ([]CommentView, error) {
	return s.list(s.db.Where("status = ?", db.StatusPending))
}

// Moderate 审核评论
func (s *CommentService) Moderate(id uint, action string) (CommentView, error) {
	status, err := moderationStatus(action)
	if err != nil {
		return CommentView{}, err
	}

	result := s.db.Model(&db.ReflectionComment{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return CommentView{}, fmt.Errorf("moderate comment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return CommentView{}, ErrCommentNotFound
	}
	return s.get(id)
}

func (s *CommentService) get(id uint) (CommentView, error) {
	var comment db.ReflectionComment
	if err := s.db.Preload("User").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CommentView{}, ErrCommentNotFound
		}
		return CommentView{}, fmt.Errorf("get comment: %w", err)
	}
	return toCommentView(comment), nil
}

func (s *CommentService) list(query *gorm.DB) ([]CommentView, error) {
	var comments []db.ReflectionComment
	if err := query.Preload("User").Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	views := make([]CommentView, 0, len(comments))
	for _, comment := range comments {
		views = append(views, toCommentView(comment))
	}
	return views, nil
}

func toCommentView(comment db.ReflectionComment) CommentView {
	return CommentView{
		ID:           comment.ID,
		ReflectionID: comment.ReflectionID,
		Author:       authorView(comment.User),
		Comment:      comment.Comment,
		Status:       comment.Status,
		CreatedAt:    comment.CreatedAt,
	}
}

func requireApprovedReflection(tx *gorm.DB, reflectionID uint) error {
	var count int64
	if err := tx.Model(&db.Reflection{}).
		Where("id = ? AND status = ?", reflectionID, db.StatusApproved).
		Count(&count).Error; err != nil {
		return fmt.Errorf("find reflection: %w", err)
	}
	if count == 0 {
		return ErrReflectionNotFound
	}
	return nil
}

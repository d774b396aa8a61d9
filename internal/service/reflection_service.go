package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/walklog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrReflectionNotFound 反思不存在或尚未通过审核
	ErrReflectionNotFound = errors.New("reflection not found")
	// ErrReflectionTextRequired 反思内容为空
	ErrReflectionTextRequired = errors.New("reflection text is required")
	// ErrForbidden 当前用户无权操作
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidModerationAction 审核动作只能是 approve 或 reject
	ErrInvalidModerationAction = errors.New("invalid moderation action")
)

const (
	ModerationApprove = "approve"
	ModerationReject  = "reject"
)

// TagView 是输出用的标签
type TagView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// AuthorView 是公开展示的作者信息
type AuthorView struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ReflectionView 是带标签与计数的反思
type ReflectionView struct {
	ID           uint          `json:"id"`
	Author       AuthorView    `json:"author"`
	Text         string        `json:"text"`
	Mood         string        `json:"mood,omitempty"`
	Status       string        `json:"status"`
	Tags         []TagView     `json:"tags"`
	LikeCount    int64         `json:"like_count"`
	CommentCount int64         `json:"comment_count"`
	Comments     []CommentView `json:"comments,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ReflectionInput 描述新建反思
type ReflectionInput struct {
	Text   string
	Mood   string
	TagIDs []uint
}

// FeedResult 是分页的信息流
type FeedResult struct {
	Items      []ReflectionView `json:"items"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
}

// ReflectionService 管理反思与审核
type ReflectionService struct {
	db       *gorm.DB
	tags     *TagService
	comments *CommentService
}

// NewReflectionService 构造 ReflectionService
func NewReflectionService(gdb *gorm.DB) *ReflectionService {
	return &ReflectionService{
		db:       gdb,
		tags:     NewTagService(gdb),
		comments: NewCommentService(gdb),
	}
}

// Create 新建反思，默认待审核
func (s *ReflectionService) Create(userID uint, input ReflectionInput) (ReflectionView, error) {
	text := StripMarkup(input.Text)
	if text == "" {
		return ReflectionView{}, ErrReflectionTextRequired
	}

	reflection := db.Reflection{
		UserID: userID,
		Text:   text,
		Mood:   strings.TrimSpace(input.Mood),
		Status: db.StatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		ids := uniqueIDs(input.TagIDs)
		tags, err := s.tags.findByIDs(tx, ids)
		if err != nil {
			return err
		}
		if len(tags) != len(ids) {
			return ErrTagNotFound
		}
		reflection.Tags = tags
		return tx.Create(&reflection).Error
	})
	if err != nil {
		if errors.Is(err, ErrTagNotFound) {
			return ReflectionView{}, err
		}
		return ReflectionView{}, fmt.Errorf("create reflection: %w", err)
	}

	return s.load(reflection.ID, "")
}

// ListMine 返回用户自己的全部反思，含待审核与已拒绝
func (s *ReflectionService) ListMine(userID uint) ([]ReflectionView, error) {
	var reflections []db.Reflection
	if err := s.baseQuery().Where("reflections.user_id = ?", userID).
		Order("reflections.created_at DESC, reflections.id DESC").
		Find(&reflections).Error; err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	return s.views(reflections)
}

// Feed 返回已审核的反思，最新的在前
func (s *ReflectionService) Feed(page, perPage int) (FeedResult, error) {
	return s.feed(s.baseQuery().Where("reflections.status = ?", db.StatusApproved), page, perPage)
}

// ByTag 返回带指定标签的已审核反思
func (s *ReflectionService) ByTag(tagID uint, page, perPage int) (FeedResult, error) {
	if _, err := s.tags.Get(tagID); err != nil {
		return FeedResult{}, err
	}
	query := s.baseQuery().
		Joins("JOIN reflection_niche_tags ON reflection_niche_tags.reflection_id = reflections.id").
		Where("reflection_niche_tags.niche_tag_id = ? AND reflections.status = ?", tagID, db.StatusApproved)
	return s.feed(query, page, perPage)
}

// Get 返回已审核的反思及已审核的评论
func (s *ReflectionService) Get(id uint) (ReflectionView, error) {
	view, err := s.load(id, db.StatusApproved)
	if err != nil {
		return ReflectionView{}, err
	}
	comments, err := s.comments.ListApproved(id)
	if err != nil {
		return ReflectionView{}, err
	}
	view.Comments = comments
	return view, nil
}

// Delete 删除反思，仅作者或管理员可操作
func (s *ReflectionService) Delete(id, userID uint, isAdmin bool) error {
	var reflection db.Reflection
	if err := s.db.First(&reflection, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReflectionNotFound
		}
		return fmt.Errorf("get reflection: %w", err)
	}
	if reflection.UserID != userID && !isAdmin {
		return ErrForbidden
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reflection_id = ?", id).Delete(&db.ReflectionLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reflection_id = ?", id).Delete(&db.ReflectionComment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&reflection).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&reflection).Error
	})
	if err != nil {
		return fmt.Errorf("delete reflection: %w", err)
	}
	return nil
}

// Moderate 审核反思
func (s *ReflectionService) Moderate(id uint, action string) (ReflectionView, error) {
	status, err := moderationStatus(action)
	if err != nil {
		return ReflectionView{}, err
	}

	result := s.db.Model(&db.Reflection{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return ReflectionView{}, fmt.Errorf("moderate reflection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ReflectionView{}, ErrReflectionNotFound
	}
	return s.load(id, "")
}

// Pending 返回待审核的反思，最早的在前
func (s *ReflectionService) Pending() ([]ReflectionView, error) {
	var reflections []db.Reflection
	if err := s.baseQuery().Where("reflections.status = ?", db.StatusPending).
		Order("reflections.created_at ASC, reflections.id ASC").
		Find(&reflections).Error; err != nil {
		return nil, fmt.Errorf("list pending reflections: %w", err)
	}
	return s.views(reflections)
}

func (s *ReflectionService) baseQuery() *gorm.DB {
	return s.db.Model(&db.Reflection{}).
		Preload("User").
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") })
}

func (s *ReflectionService) feed(query *gorm.DB, page, perPage int) (FeedResult, error) {
	result := FeedResult{
		Page:    normalizePage(page),
		PerPage: normalizePerPage(perPage, 20),
	}

	if err := query.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		return result, fmt.Errorf("count reflections: %w", err)
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	var reflections []db.Reflection
	if err := query.Order("reflections.created_at DESC, reflections.id DESC").
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&reflections).Error; err != nil {
		return result, fmt.Errorf("list reflections: %w", err)
	}

	items, err := s.views(reflections)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

func (s *ReflectionService) load(id uint, status string) (ReflectionView, error) {
	query := s.baseQuery().Where("reflections.id = ?", id)
	if status != "" {
		query = query.Where("reflections.status = ?", status)
	}

	var reflection db.Reflection
	if err := query.First(&reflection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReflectionView{}, ErrReflectionNotFound
		}
		return ReflectionView{}, fmt.Errorf("get reflection: %w", err)
	}

	views, err := s.views([]db.Reflection{reflection})
	if err != nil {
		return ReflectionView{}, err
	}
	return views[0], nil
}

// views 批量补齐点赞数与已审核评论数
func (s *ReflectionService) views(reflections []db.Reflection) ([]ReflectionView, error) {
	views := make([]ReflectionView, 0, len(reflections))
	if len(reflections) == 0 {
		return views, nil
	}

	ids := make([]uint, 0, len(reflections))
	for _, reflection := range reflections {
		ids = append(ids, reflection.ID)
	}

	likes, err := countByReflection(s.db.Model(&db.ReflectionLike{}), ids)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	comments, err := countByReflection(s.db.Model(&db.ReflectionComment{}).Where("status = ?", db.StatusApproved), ids)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	for _, reflection := range reflections {
		tags := make([]TagView, 0, len(reflection.Tags))
		for _, tag := range reflection.Tags {
			tags = append(tags, TagView{ID: tag.ID, Name: tag.Name})
		}
		views = append(views, ReflectionView{
			ID:           reflection.ID,
			Author:       authorView(reflection.User),
			Text:         reflection.Text,
			Mood:         reflection.Mood,
			Status:       reflection.Status,
			Tags:         tags,
			LikeCount:    likes[reflection.ID],
			CommentCount: comments[reflection.ID],
			CreatedAt:    reflection.CreatedAt,
		})
	}
	return views, nil
}

func countByReflection(query *gorm.DB, ids []uint) (map[uint]int64, error) {
	var rows []struct {
		ReflectionID uint
		Count        int64
	}
	if err := query.Select("reflection_id, COUNT(*) AS count").
		Where("reflection_id IN ?", ids).
		Group("reflection_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ReflectionID] = row.Count
	}
	return counts, nil
}

func authorView(user db.User) AuthorView {
	return AuthorView{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
}

func moderationStatus(action string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ModerationApprove:
		return db.StatusApproved, nil
	case ModerationReject:
		return db.StatusRejected, nil
	default:
		return "", ErrInvalidModerationAction
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage, fallback int) int {
	if perPage <= 0 {
		return fallback
	}
	if perPage > 100 {
		return 100
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

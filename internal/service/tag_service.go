package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/walklog/internal/db"
	"gorm.io/gorm"
)

var (
	ErrTagExists       = errors.New("tag already exists")
	ErrTagNotFound     = errors.New("tag not found")
	ErrTagNameRequired = errors.New("tag name is required")
)

// TagService wraps niche tag operations.
type TagService struct {
	db *gorm.DB
}

// TagUsage 描述标签在已审核反思中的使用次数
type TagUsage struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb}
}

// List returns tags ordered by name.
func (s *TagService) List() ([]db.NicheTag, error) {
	var tags []db.NicheTag
	if err := s.db.Order("name asc").Order("id asc").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Usage 返回每个标签关联的已审核反思数量
func (s *TagService) Usage() ([]TagUsage, error) {
	var rows []TagUsage
	err := s.db.Table("niche_tags").
		Select("niche_tags.id, niche_tags.name, COUNT(DISTINCT reflections.id) AS count").
		Joins("LEFT JOIN reflection_niche_tags ON reflection_niche_tags.niche_tag_id = niche_tags.id").
		Joins("LEFT JOIN reflections ON reflections.id = reflection_niche_tags.reflection_id AND reflections.status = ? AND reflections.deleted_at IS NULL", db.StatusApproved).
		Where("niche_tags.deleted_at IS NULL").
		Group("niche_tags.id, niche_tags.name").
		Order("niche_tags.name asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tag usage: %w", err)
	}
	return rows, nil
}

// Get fetches a tag by id.
func (s *TagService) Get(id uint) (*db.NicheTag, error) {
	var tag db.NicheTag
	if err := s.db.First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// Create inserts a new tag; names are unique ignoring surrounding whitespace.
func (s *TagService) Create(name string) (*db.NicheTag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTagNameRequired
	}

	var count int64
	if err := s.db.Unscoped().Model(&db.NicheTag{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrTagExists
	}

	tag := db.NicheTag{Name: name}
	if err := s.db.Create(&tag).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTagExists
		}
		return nil, err
	}
	return &tag, nil
}

// findByIDs 返回存在的标签，忽略未知 ID
func (s *TagService) findByIDs(tx *gorm.DB, ids []uint) ([]db.NicheTag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []db.NicheTag
	if err := tx.Where("id IN ?", ids).Order("name asc").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

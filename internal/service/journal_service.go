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
	// ErrJournalNotFound 日记不存在或不属于当前用户
	ErrJournalNotFound = errors.New("journal not found")
	// ErrJournalInvalidInput 标题或内容为空
	ErrJournalInvalidInput = errors.New("title and content are required")
)

// JournalInput 描述新建日记的字段
type JournalInput struct {
	Title   string
	Content string
	Mood    string
}

// JournalEntry 是带渲染结果的日记
type JournalEntry struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	HTML      string    `json:"html"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalService 管理私有日记
type JournalService struct {
	db *gorm.DB
}

// NewJournalService 构造 JournalService
func NewJournalService(gdb *gorm.DB) *JournalService {
	return &JournalService{db: gdb}
}

// Create 新建日记
func (s *JournalService) Create(userID uint, input JournalInput) (JournalEntry, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		return JournalEntry{}, ErrJournalInvalidInput
	}

	journal := db.Journal{
		UserID:  userID,
		Title:   title,
		Content: content,
		Mood:    strings.TrimSpace(input.Mood),
	}
	if err := s.db.Create(&journal).Error; err != nil {
		return JournalEntry{}, fmt.Errorf("create journal: %w", err)
	}
	return toJournalEntry(journal), nil
}

// List 返回用户日记，最新的在前
func (s *JournalService) List(userID uint) ([]JournalEntry, error) {
	var journals []db.Journal
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&journals).Error; err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}

	entries := make([]JournalEntry, 0, len(journals))
	for _, journal := range journals {
		entries = append(entries, toJournalEntry(journal))
	}
	return entries, nil
}

// Get 返回单篇日记
func (s *JournalService) Get(userID, id uint) (JournalEntry, error) {
	var journal db.Journal
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&journal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, fmt.Errorf("get journal: %w", err)
	}
	return toJournalEntry(journal), nil
}

// Delete 删除日记
func (s *JournalService) Delete(userID, id uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&db.Journal{})
	if result.Error != nil {
		return fmt.Errorf("delete journal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func toJournalEntry(journal db.Journal) JournalEntry {
	return JournalEntry{
		ID:        journal.ID,
		Title:     journal.Title,
		Content:   journal.Content,
		HTML:      RenderMarkdown(journal.Content),
		Mood:      journal.Mood,
		CreatedAt: journal.CreatedAt,
	}
}

package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/progression"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"
)

var (
	// ErrGoodNewsNotFound 当天没有卡片
	ErrGoodNewsNotFound = errors.New("no good news card for today")
	// ErrGoodNewsExists 同一天只能有一张卡片
	ErrGoodNewsExists = errors.New("good news card already exists for this date")
	// ErrGoodNewsInvalidInput 标题为空或日期格式错误
	ErrGoodNewsInvalidInput = errors.New("invalid good news input")
	// ErrGoodNewsImageInvalid 上传的文件不是支持的图片
	ErrGoodNewsImageInvalid = errors.New("unsupported image")
)

const maxGoodNewsImageBytes = 10 << 20

// GoodNewsInput 描述新建卡片，Date 为空时使用今天，格式 2006-01-02
type GoodNewsInput struct {
	Title    string
	Content  string
	Date     string
	ImageURL string
}

// ImageUpload 是随卡片上传的图片
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// GoodNewsService 管理每日鼓励卡片
type GoodNewsService struct {
	db        *gorm.DB
	loc       *time.Location
	uploadDir string
	uploadURL string
}

// NewGoodNewsService 构造 GoodNewsService
func NewGoodNewsService(gdb *gorm.DB, loc *time.Location, uploadDir, uploadURL string) *GoodNewsService {
	if loc == nil {
		loc = time.Local
	}
	return &GoodNewsService{db: gdb, loc: loc, uploadDir: uploadDir, uploadURL: uploadURL}
}

// Today 返回 now 所在日期的卡片
func (s *GoodNewsService) Today(now time.Time) (*db.GoodNews, error) {
	var card db.GoodNews
	day := progression.CalendarDay(now, s.loc)
	if err := s.db.Where("date = ?", day).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoodNewsNotFound
		}
		return nil, fmt.Errorf("get good news: %w", err)
	}
	return &card, nil
}

// List 返回最近的卡片
func (s *GoodNewsService) List(limit int) ([]db.GoodNews, error) {
	var cards []db.GoodNews
	if err := s.db.Order("date DESC").Limit(normalizePerPage(limit, 30)).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list good news: %w", err)
	}
	return cards, nil
}

// Create 新建卡片，可选图片会被保存并记录宽高
func (s *GoodNewsService) Create(input GoodNewsInput, upload *ImageUpload, now time.Time) (*db.GoodNews, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrGoodNewsInvalidInput)
	}

	day := progression.CalendarDay(now, s.loc)
	if raw := strings.TrimSpace(input.Date); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrGoodNewsInvalidInput)
		}
		day = parsed.UTC()
	}

	card := db.GoodNews{
		Title:    title,
		Content:  strings.TrimSpace(input.Content),
		ImageURL: strings.TrimSpace(input.ImageURL),
		Date:     day,
	}

	var savedPath string
	if upload != nil && upload.Body != nil {
		url, filePath, width, height, err := s.saveImage(upload)
		if err != nil {
			return nil, err
		}
		card.ImageURL, card.ImageWidth, card.ImageHeight = url, width, height
		savedPath = filePath
	}

	if err := s.db.Create(&card).Error; err != nil {
		if savedPath != "" {
			_ = os.Remove(savedPath)
		}
		if isUniqueViolation(err) {
			return nil, ErrGoodNewsExists
		}
		return nil, fmt.Errorf("create good news: %w", err)
	}
	return &card, nil
}

// saveImage 解码图片头获取尺寸后写入上传目录
func (s *GoodNewsService) saveImage(upload *ImageUpload) (url, filePath string, width, height int, err error) {
	data, err := io.ReadAll(io.LimitReader(upload.Body, maxGoodNewsImageBytes+1))
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxGoodNewsImageBytes {
		return "", "", 0, 0, fmt.Errorf("%w: image is larger than 10MB", ErrGoodNewsImageInvalid)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", 0, 0, ErrGoodNewsImageInvalid
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", 0, 0, fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if ext == "" {
		ext = "." + format
	}
	filename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.NewString(), ext)
	filePath = filepath.Join(s.uploadDir, filename)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", "", 0, 0, fmt.Errorf("save image: %w", err)
	}

	return path.Join("/", s.uploadURL, filename), filePath, cfg.Width, cfg.Height, nil
}

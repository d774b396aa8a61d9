package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

type goodNewsRequest struct {
	Title    string `json:"title" form:"title"`
	Content  string `json:"content" form:"content"`
	Date     string `json:"date" form:"date"`
	ImageURL string `json:"image_url" form:"image_url"`
}

type goodNewsResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageWidth  int    `json:"image_width,omitempty"`
	ImageHeight int    `json:"image_height,omitempty"`
	Date        string `json:"date"`
}

func newGoodNewsResponse(card *db.GoodNews) goodNewsResponse {
	return goodNewsResponse{
		ID:          card.ID,
		Title:       card.Title,
		Content:     card.Content,
		ImageURL:    card.ImageURL,
		ImageWidth:  card.ImageWidth,
		ImageHeight: card.ImageHeight,
		Date:        card.Date.Format(time.DateOnly),
	}
}

// TodayGoodNews 返回今天的鼓励卡片，没有时 card 为 null
func (a *API) TodayGoodNews(c *gin.Context) {
	card, err := a.goodNews.Today(a.now())
	if err != nil {
		if errors.Is(err, service.ErrGoodNewsNotFound) {
			c.JSON(http.StatusOK, gin.H{"card": nil})
			return
		}
		a.handleGoodNewsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": newGoodNewsResponse(card)})
}

// ListGoodNews 管理员查看最近的卡片
func (a *API) ListGoodNews(c *gin.Context) {
	cards, err := a.goodNews.List(parseIntQuery(c, "limit", 30))
	if err != nil {
		a.handleGoodNewsError(c, err)
		return
	}

	items := make([]goodNewsResponse, 0, len(cards))
	for i := range cards {
		items = append(items, newGoodNewsResponse(&cards[i]))
	}
	c.JSON(http.StatusOK, gin.H{"cards": items})
}

// CreateGoodNews 新建卡片，支持 multipart 上传 image 字段
func (a *API) CreateGoodNews(c *gin.Context) {
	var payload goodNewsRequest
	if err := c.ShouldBind(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid good news payload")
		return
	}

	var upload *service.ImageUpload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if file, err := c.FormFile("image"); err == nil {
			// 检查文件类型
			if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
				respondError(c, http.StatusBadRequest, "Only image files are allowed")
				return
			}
			body, err := file.Open()
			if err != nil {
				respondError(c, http.StatusBadRequest, "Failed to read uploaded image")
				return
			}
			defer body.Close()
			upload = &service.ImageUpload{Filename: file.Filename, Body: body}
		}
	}

	card, err := a.goodNews.Create(service.GoodNewsInput{
		Title:    payload.Title,
		Content:  payload.Content,
		Date:     payload.Date,
		ImageURL: payload.ImageURL,
	}, upload, a.now())
	if err != nil {
		a.handleGoodNewsError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"card": newGoodNewsResponse(card)})
}

func (a *API) handleGoodNewsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGoodNewsInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGoodNewsImageInvalid):
		respondError(c, http.StatusBadRequest, "Image must be a png, jpeg, gif or webp file up to 10MB")
	case errors.Is(err, service.ErrGoodNewsExists):
		respondError(c, http.StatusConflict, "A card already exists for this date")
	case errors.Is(err, service.ErrGoodNewsNotFound):
		respondError(c, http.StatusNotFound, "Good news not found")
	default:
		a.logger.Error("good news request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

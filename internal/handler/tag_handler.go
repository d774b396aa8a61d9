package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

type tagRequest struct {
	Name string `json:"name" binding:"required"`
}

// GetTags 获取标签列表，usage=1 时附带已审核反思的数量
func (a *API) GetTags(c *gin.Context) {
	if c.Query("usage") == "1" {
		usage, err := a.tags.Usage()
		if err != nil {
			a.logger.Error("tag usage failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Failed to load tags")
			return
		}
		c.JSON(http.StatusOK, gin.H{"tags": usage})
		return
	}

	tags, err := a.tags.List()
	if err != nil {
		a.logger.Error("list tags failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to load tags")
		return
	}

	response := make([]service.TagView, 0, len(tags))
	for _, tag := range tags {
		response = append(response, service.TagView{ID: tag.ID, Name: tag.Name})
	}
	c.JSON(http.StatusOK, gin.H{"tags": response})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req, "Tag name is required") {
		return
	}

	tag, err := a.tags.Create(req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTagExists):
			respondError(c, http.StatusConflict, "Tag already exists")
		case errors.Is(err, service.ErrTagNameRequired):
			respondError(c, http.StatusBadRequest, "Tag name is required")
		default:
			a.logger.Error("create tag failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Failed to create tag")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tag": service.TagView{ID: tag.ID, Name: tag.Name}})
}

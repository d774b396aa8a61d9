package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

const defaultFeedPerPage = 20

type reflectionRequest struct {
	Text   string `json:"text"`
	Mood   string `json:"mood"`
	TagIDs []uint `json:"tag_ids"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

// CreateReflection 发布反思，等待审核
func (a *API) CreateReflection(c *gin.Context) {
	var payload reflectionRequest
	if !bindJSON(c, &payload, "Invalid reflection payload") {
		return
	}

	view, err := a.reflections.Create(currentUserID(c), service.ReflectionInput{
		Text:   payload.Text,
		Mood:   payload.Mood,
		TagIDs: parseUintSlice(payload.TagIDs),
	})
	if err != nil {
		if errors.Is(err, service.ErrTagNotFound) {
			respondError(c, http.StatusBadRequest, "Unknown niche tag")
			return
		}
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Reflection submitted for review",
		"reflection": view,
	})
}

// ListMyReflections 返回自己的反思，含待审核
func (a *API) ListMyReflections(c *gin.Context) {
	views, err := a.reflections.ListMine(currentUserID(c))
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflections": views})
}

// Feed 返回已审核的反思，分页
func (a *API) Feed(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", defaultFeedPerPage)

	result, err := a.reflections.Feed(page, perPage)
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReflectionsByTag 返回某标签下已审核的反思
func (a *API) ReflectionsByTag(c *gin.Context) {
	tagID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid tag id")
		return
	}
	result, err := a.reflections.ByTag(tagID, parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", defaultFeedPerPage))
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetReflection 返回已审核的反思及其已审核评论
func (a *API) GetReflection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	view, err := a.reflections.Get(id)
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflection": view})
}

// DeleteReflection 作者或管理员删除反思
func (a *API) DeleteReflection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	if err := a.reflections.Delete(id, currentUserID(c), currentIsAdmin(c)); err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleLike 点赞或取消点赞
func (a *API) ToggleLike(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	status, err := a.likes.Toggle(id, currentUserID(c))
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// LikeStatus 返回点赞状态与总数
func (a *API) LikeStatus(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	status, err := a.likes.Status(id, currentUserID(c))
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListComments 返回已审核的评论
func (a *API) ListComments(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	comments, err := a.comments.ListApproved(id)
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// AddComment 发表评论，等待审核
func (a *API) AddComment(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	var payload commentRequest
	if !bindJSON(c, &payload, "Invalid comment payload") {
		return
	}

	comment, err := a.comments.Add(id, currentUserID(c), payload.Comment)
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Comment submitted for review",
		"comment": comment,
	})
}

// PendingReflections 管理员查看待审核反思
func (a *API) PendingReflections(c *gin.Context) {
	views, err := a.reflections.Pending()
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflections": views})
}

// ModerateReflection 审核反思，action 为 approve 或 reject
func (a *API) ModerateReflection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid reflection id")
		return
	}

	view, err := a.reflections.Moderate(id, c.Param("action"))
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflection": view})
}

// PendingComments 管理员查看待审核评论
func (a *API) PendingComments(c *gin.Context) {
	comments, err := a.comments.Pending()
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// ModerateComment 审核评论
func (a *API) ModerateComment(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid comment id")
		return
	}

	comment, err := a.comments.Moderate(id, c.Param("action"))
	if err != nil {
		a.handleReflectionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

func (a *API) handleReflectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReflectionTextRequired):
		respondError(c, http.StatusBadRequest, "Reflection text is required")
	case errors.Is(err, service.ErrCommentRequired):
		respondError(c, http.StatusBadRequest, "Comment is required")
	case errors.Is(err, service.ErrInvalidModerationAction):
		respondError(c, http.StatusBadRequest, "Action must be approve or reject")
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "Not allowed")
	case errors.Is(err, service.ErrReflectionNotFound):
		respondError(c, http.StatusNotFound, "Reflection not found")
	case errors.Is(err, service.ErrCommentNotFound):
		respondError(c, http.StatusNotFound, "Comment not found")
	case errors.Is(err, service.ErrTagNotFound):
		respondError(c, http.StatusNotFound, "Tag not found")
	default:
		a.logger.Error("reflection request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

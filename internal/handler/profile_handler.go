package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
)

type profileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

// GetProfile 返回当前用户资料
func (a *API) GetProfile(c *gin.Context) {
	user, err := a.users.Get(currentUserID(c))
	if err != nil {
		a.handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// UpdateProfile 修改昵称与头像，头像只允许预设的几种
func (a *API) UpdateProfile(c *gin.Context) {
	var payload profileRequest
	if !bindJSON(c, &payload, "Invalid profile payload") {
		return
	}

	user, err := a.users.UpdateProfile(currentUserID(c), service.ProfileUpdate{
		Name:   payload.Name,
		Avatar: payload.Avatar,
	})
	if err != nil {
		a.handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// ListAvatars 返回可选头像
func (a *API) ListAvatars(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"avatars": service.Avatars})
}

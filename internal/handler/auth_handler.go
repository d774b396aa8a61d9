package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/service"
)

const (
	sessionUserIDKey  = "user_id"
	sessionIsAdminKey = "is_admin"
	contextUserIDKey  = "user_id"
	contextIsAdminKey = "is_admin"
)

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID               uint       `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Avatar           string     `json:"avatar"`
	IsAdmin          bool       `json:"is_admin"`
	Streak           int        `json:"streak"`
	StreakLastDate   *time.Time `json:"streak_last_date"`
	DevotionalGoalID *uint      `json:"devotional_goal_id"`
}

func newUserResponse(user *db.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Avatar:           user.Avatar,
		IsAdmin:          user.IsAdmin,
		Streak:           user.Streak,
		StreakLastDate:   user.StreakLastDate,
		DevotionalGoalID: user.DevotionalGoalID,
	}
}

// Signup 注册并直接登录
func (a *API) Signup(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "Invalid signup payload") {
		return
	}

	user, err := a.users.Signup(payload.Email, payload.Password, payload.Name)
	if err != nil {
		a.handleUserError(c, err)
		return
	}
	if !a.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

// Login 校验凭证并写入会话
func (a *API) Login(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "Invalid login payload") {
		return
	}

	user, err := a.users.Login(payload.Email, payload.Password)
	if err != nil {
		a.handleUserError(c, err)
		return
	}
	if !a.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to clear session")
		return
	}
	c.Status(http.StatusNoContent)
}

// WhoAmI 返回当前会话的用户，未登录时 user 为 null
func (a *API) WhoAmI(c *gin.Context) {
	userID, ok := sessionUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	user, err := a.users.Get(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// AuthRequired 校验会话，并把用户信息放入上下文
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}

		user, err := a.users.Get(userID)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				respondError(c, http.StatusUnauthorized, "Unauthorized")
			} else {
				respondError(c, http.StatusInternalServerError, "Failed to load user")
			}
			c.Abort()
			return
		}

		c.Set(contextUserIDKey, user.ID)
		c.Set(contextIsAdminKey, user.IsAdmin)
		c.Next()
	}
}

// AdminRequired 需放在 AuthRequired 之后
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIsAdmin(c) {
			respondError(c, http.StatusForbidden, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) startSession(c *gin.Context, user *db.User) bool {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionIsAdminKey, user.IsAdmin)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save session")
		return false
	}
	return true
}

func (a *API) handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		respondError(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrInvalidUserInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidAvatar):
		respondError(c, http.StatusBadRequest, "Avatar must be one of lamb, bread, dove")
	case errors.Is(err, service.ErrNothingToUpdate):
		respondError(c, http.StatusBadRequest, "Nothing to update")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	default:
		a.logger.Error("user request failed")
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func sessionUserID(c *gin.Context) (uint, bool) {
	switch v := sessions.Default(c).Get(sessionUserIDKey).(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case uint64:
		return uint(v), v != 0
	default:
		return 0, false
	}
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(contextUserIDKey)
}

func currentIsAdmin(c *gin.Context) bool {
	return c.GetBool(contextIsAdminKey)
}

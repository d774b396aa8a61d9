package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
)

// HealthCheck 提供部署平台与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

type systemSettingsRequest struct {
	AIProvider       *string `json:"ai_provider"`
	AIModel          *string `json:"ai_model"`
	OpenRouterAPIKey *string `json:"openrouter_api_key"`
	GeminiAPIKey     *string `json:"gemini_api_key"`
}

type aiTestRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// GetSystemSettings 返回当前系统设置，API Key 打码输出。
func (a *API) GetSystemSettings(c *gin.Context) {
	settings, err := a.system.GetSettings(c.Request.Context())
	if err != nil {
		a.logger.Error("load system settings failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to load system settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings.Masked()})
}

// UpdateSystemSettings 保存系统设置，未传的字段保持原值。
func (a *API) UpdateSystemSettings(c *gin.Context) {
	var payload systemSettingsRequest
	if !bindJSON(c, &payload, "Invalid system settings payload") {
		return
	}

	settings, err := a.system.UpdateSettings(c.Request.Context(), payload.toInput())
	if err != nil {
		if errors.Is(err, service.ErrAIProviderInvalid) {
			respondError(c, http.StatusBadRequest, "ai_provider must be openrouter or gemini")
			return
		}
		a.logger.Error("save system settings failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to save system settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "System settings saved",
		"settings": settings.Masked(),
	})
}

func (r systemSettingsRequest) toInput() service.SystemSettingsInput {
	return service.SystemSettingsInput{
		AIProvider:       r.AIProvider,
		AIModel:          r.AIModel,
		OpenRouterAPIKey: r.OpenRouterAPIKey,
		GeminiAPIKey:     r.GeminiAPIKey,
	}
}

// TestAIConnection 测试不同 AI 平台 API Key 的连通性。
func (a *API) TestAIConnection(c *gin.Context) {
	var payload aiTestRequest
	if !bindJSON(c, &payload, "Invalid AI connection payload") {
		return
	}

	if err := a.system.TestAIConnection(c.Request.Context(), payload.Provider, payload.APIKey); err != nil {
		switch {
		case errors.Is(err, service.ErrAIAPIKeyMissing):
			respondError(c, http.StatusBadRequest, "A valid AI API key is required")
		case errors.Is(err, service.ErrAIProviderInvalid):
			respondError(c, http.StatusBadRequest, "ai_provider must be openrouter or gemini")
		default:
			respondError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "AI connection OK"})
}

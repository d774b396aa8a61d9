package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/walklog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// AIProviderOpenRouter 表示使用 OpenRouter（OpenAI 兼容接口）。
	AIProviderOpenRouter = "openrouter"
	// AIProviderGemini 表示使用 Google Gemini。
	AIProviderGemini = "gemini"
)

var supportedAIProviders = []string{AIProviderOpenRouter, AIProviderGemini}

// SystemSettings 描述后台可配置的 AI 设置。
type SystemSettings struct {
	AIProvider       string `json:"ai_provider"`
	AIModel          string `json:"ai_model"`
	OpenRouterAPIKey string `json:"openrouter_api_key"`
	GeminiAPIKey     string `json:"gemini_api_key"`
}

// ErrAIAPIKeyMissing 表示未提供必需的 AI 平台 API Key。
var ErrAIAPIKeyMissing = errors.New("api key is required")

// ErrAIProviderInvalid 表示不支持的 AI 平台。
var ErrAIProviderInvalid = errors.New("unsupported ai provider")

// SystemSettingsInput 用于更新系统设置，nil 字段保持原值。
type SystemSettingsInput struct {
	AIProvider       *string
	AIModel          *string
	OpenRouterAPIKey *string
	GeminiAPIKey     *string
}

// SystemSettingService 提供系统设置的读取与更新能力。
// 数据库中未设置的键回退到启动配置。
type SystemSettingService struct {
	db       *gorm.DB
	defaults SystemSettings
	ai       *aiChatClient
}

// NewSystemSettingService 构造 SystemSettingService。
func NewSystemSettingService(gdb *gorm.DB, defaults SystemSettings) *SystemSettingService {
	if normalizeAIProvider(defaults.AIProvider) == "" {
		defaults.AIProvider = AIProviderOpenRouter
	}
	defaults.AIProvider = normalizeAIProvider(defaults.AIProvider)
	svc := &SystemSettingService{db: gdb, defaults: defaults}
	svc.ai = newAIChatClient(svc, nil)
	return svc
}

var settingKeys = []string{
	db.SettingKeyAIProvider,
	db.SettingKeyAIModel,
	db.SettingKeyOpenRouterAPIKey,
	db.SettingKeyGeminiAPIKey,
}

// GetSettings 读取系统设置，如未设置将返回默认值。
func (s *SystemSettingService) GetSettings(ctx context.Context) (SystemSettings, error) {
	result := s.defaults

	var records []db.SystemSetting
	if err := s.db.WithContext(ctx).Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load system settings: %w", err)
	}

	for _, record := range records {
		value := strings.TrimSpace(record.Value)
		if value == "" {
			continue
		}
		switch record.Key {
		case db.SettingKeyAIProvider:
			if provider := normalizeAIProvider(value); provider != "" {
				result.AIProvider = provider
			}
		case db.SettingKeyAIModel:
			result.AIModel = value
		case db.SettingKeyOpenRouterAPIKey:
			result.OpenRouterAPIKey = value
		case db.SettingKeyGeminiAPIKey:
			result.GeminiAPIKey = value
		}
	}

	return result, nil
}

// UpdateSettings 保存显式传入的设置项。
func (s *SystemSettingService) UpdateSettings(ctx context.Context, input SystemSettingsInput) (SystemSettings, error) {
	values := map[string]string{}
	if input.AIProvider != nil {
		provider := normalizeAIProvider(*input.AIProvider)
		if provider == "" {
			return SystemSettings{}, ErrAIProviderInvalid
		}
		values[db.SettingKeyAIProvider] = provider
	}
	if input.AIModel != nil {
		values[db.SettingKeyAIModel] = strings.TrimSpace(*input.AIModel)
	}
	if input.OpenRouterAPIKey != nil {
		values[db.SettingKeyOpenRouterAPIKey] = strings.TrimSpace(*input.OpenRouterAPIKey)
	}
	if input.GeminiAPIKey != nil {
		values[db.SettingKeyGeminiAPIKey] = strings.TrimSpace(*input.GeminiAPIKey)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range settingKeys {
			value, ok := values[key]
			if !ok {
				continue
			}
			if err := upsertSetting(tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SystemSettings{}, fmt.Errorf("update system settings: %w", err)
	}

	return s.GetSettings(ctx)
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// TestAIConnection 用指定平台发起一次最小请求，验证 API Key 是否可用。
// provider 或 apiKey 为空时沿用已保存的设置。
func (s *SystemSettingService) TestAIConnection(ctx context.Context, provider, apiKey string) error {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(provider) != "" {
		normalized := normalizeAIProvider(provider)
		if normalized == "" {
			return ErrAIProviderInvalid
		}
		if normalized != settings.AIProvider {
			settings.AIModel = ""
		}
		settings.AIProvider = normalized
	}
	if key := strings.TrimSpace(apiKey); key != "" {
		if settings.AIProvider == AIProviderGemini {
			settings.GeminiAPIKey = key
		} else {
			settings.OpenRouterAPIKey = key
		}
	}

	_, err = s.ai.callWithSettings(ctx, settings, aiChatRequest{UserPrompt: "ping", MaxTokens: 1})
	return err
}

// Masked 返回隐藏 API Key 的副本，用于接口输出。
func (s SystemSettings) Masked() SystemSettings {
	s.OpenRouterAPIKey = maskSecret(s.OpenRouterAPIKey)
	s.GeminiAPIKey = maskSecret(s.GeminiAPIKey)
	return s
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	runes := []rune(secret)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}

func normalizeAIProvider(provider string) string {
	trimmed := strings.ToLower(strings.TrimSpace(provider))
	for _, candidate := range supportedAIProviders {
		if trimmed == candidate {
			return candidate
		}
	}
	return ""
}

package db

import "gorm.io/gorm"

// SystemSetting 存储后台可配置的系统级键值对。
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SystemSetting) TableName() string {
	return "system_settings"
}

const (
	// SettingKeyAIProvider 表示计划生成所用的 AI 平台。
	SettingKeyAIProvider = "ai_provider"
	// SettingKeyAIModel 表示覆盖默认模型名称。
	SettingKeyAIModel = "ai_model"
	// SettingKeyOpenRouterAPIKey 表示 OpenRouter API Key。
	SettingKeyOpenRouterAPIKey = "openrouter_api_key"
	// SettingKeyGeminiAPIKey 表示 Gemini API Key。
	SettingKeyGeminiAPIKey = "gemini_api_key"
)

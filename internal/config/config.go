package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr         string
	Port               string
	DatabasePath       string
	SessionSecret      string
	GinMode            string
	LogLevel           string
	Timezone           string
	Location           *time.Location
	BlocklistPath      string
	UploadDir          string
	UploadURLPath      string
	AIProvider         string
	AIModel            string
	OpenRouterAPIKey   string
	GeminiAPIKey       string
	SuperAdminEmail    string
	SuperAdminPassword string
}

// Load 依次读取默认值、可选的配置文件（WALKLOG_CONFIG 或 ./walklog.yaml）与环境变量。
func Load() (AppConfig, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (AppConfig, error) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "walklog.db")
	v.SetDefault("session_secret", "walklog-dev-secret")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "Local")
	v.SetDefault("upload_dir", "web/static/uploads")
	v.SetDefault("upload_url_path", "/static/uploads")
	v.SetDefault("ai_provider", "openrouter")

	for _, key := range []string{
		"listen_addr", "blocklist_path", "ai_model", "openrouter_api_key", "gemini_api_key",
		"super_admin_email", "super_admin_password",
	} {
		v.SetDefault(key, "")
	}

	if path := strings.TrimSpace(os.Getenv("WALKLOG_CONFIG")); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("walklog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	// 环境变量使用大写键名，例如 DATABASE_PATH
	v.AutomaticEnv()

	port := strings.TrimSpace(v.GetString("port"))
	listenAddr := strings.TrimSpace(v.GetString("listen_addr"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	timezone := strings.TrimSpace(v.GetString("timezone"))
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	return AppConfig{
		ListenAddr:         listenAddr,
		Port:               port,
		DatabasePath:       strings.TrimSpace(v.GetString("database_path")),
		SessionSecret:      strings.TrimSpace(v.GetString("session_secret")),
		GinMode:            strings.TrimSpace(v.GetString("gin_mode")),
		LogLevel:           strings.TrimSpace(v.GetString("log_level")),
		Timezone:           timezone,
		Location:           loc,
		BlocklistPath:      strings.TrimSpace(v.GetString("blocklist_path")),
		UploadDir:          strings.TrimSpace(v.GetString("upload_dir")),
		UploadURLPath:      strings.TrimSpace(v.GetString("upload_url_path")),
		AIProvider:         strings.ToLower(strings.TrimSpace(v.GetString("ai_provider"))),
		AIModel:            strings.TrimSpace(v.GetString("ai_model")),
		OpenRouterAPIKey:   strings.TrimSpace(v.GetString("openrouter_api_key")),
		GeminiAPIKey:       strings.TrimSpace(v.GetString("gemini_api_key")),
		SuperAdminEmail:    strings.TrimSpace(v.GetString("super_admin_email")),
		SuperAdminPassword: strings.TrimSpace(v.GetString("super_admin_password")),
	}, nil
}

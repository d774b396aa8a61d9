package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/walklog/internal/config"
	"github.com/walklog/internal/db"
	"github.com/walklog/internal/handler"
	"github.com/walklog/internal/logging"
	"github.com/walklog/internal/safety"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "walklog",
		Short:         "Walklog devotional tracker",
		Long:          "Walklog serves the devotional tracker API and offers maintenance commands for its database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 可选，不存在时忽略
			_ = godotenv.Load()
		},
		RunE: runServe,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(initAdminCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(progressCmd())
	return root
}

// app 持有命令共享的配置、日志与数据库连接
type app struct {
	cfg    config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, db: gdb}, nil
}

func (a *app) Close() {
	if err := db.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// loadFilter 优先读取配置的屏蔽词文件，未配置时使用内置列表
func (a *app) loadFilter() (*safety.Filter, error) {
	if a.cfg.BlocklistPath == "" {
		return safety.NewDefaultFilter(), nil
	}
	filter, err := safety.LoadFile(a.cfg.BlocklistPath)
	if err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}
	a.logger.Info("blocklist loaded", zap.String("path", a.cfg.BlocklistPath), zap.Int("rules", filter.Size()))
	return filter, nil
}

func (a *app) newAPI(filter *safety.Filter) *handler.API {
	return handler.NewAPI(a.db, handler.Options{
		Location:  a.cfg.Location,
		UploadDir: a.cfg.UploadDir,
		UploadURL: a.cfg.UploadURLPath,
		Settings: service.SystemSettings{
			AIProvider:       a.cfg.AIProvider,
			AIModel:          a.cfg.AIModel,
			OpenRouterAPIKey: a.cfg.OpenRouterAPIKey,
			GeminiAPIKey:     a.cfg.GeminiAPIKey,
		},
		Filter: filter,
		Logger: a.logger,
	})
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode, gin.ReleaseMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

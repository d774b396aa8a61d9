package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPath 是未配置 DATABASE_PATH 时使用的数据库文件。
const DefaultPath = "walklog.db"

// Models 返回需要自动迁移的全部模型，测试与 migrate 命令共用。
func Models() []any {
	return []any{
		&User{},
		&DevotionalGoal{},
		&DevotionalTask{},
		&UserTaskProgress{},
		&AIPlan{},
		&AIPlanTask{},
		&UserAITaskProgress{},
		&DailyTask{},
		&Journal{},
		&NicheTag{},
		&Reflection{},
		&ReflectionLike{},
		&ReflectionComment{},
		&GoodNews{},
		&SystemSetting{},
	}
}

// Open 打开 sqlite 数据库并执行自动迁移。
// databasePath 为空时回退到 walklog.db。返回的连接由调用方持有并负责关闭。
func Open(databasePath string, opts ...Option) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = DefaultPath
	}

	cfg := &gorm.Config{TranslateError: true}
	for _, opt := range opts {
		opt(cfg)
	}

	if !strings.HasPrefix(path, "file:") {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, err
	}

	// sqlite 只允许单写者，串行化连接避免 database is locked
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(gdb); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return gdb, nil
}

// Option 调整 gorm 配置。
type Option func(*gorm.Config)

// WithSilentLogger 关闭 gorm 的 SQL 日志，主要用于测试。
func WithSilentLogger() Option {
	return func(cfg *gorm.Config) {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
}

// Migrate 为所有模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

// Close 释放底层连接。
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}

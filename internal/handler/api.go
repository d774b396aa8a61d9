package handler

import (
	"time"

	"github.com/walklog/internal/progression"
	"github.com/walklog/internal/safety"
	"github.com/walklog/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 汇总构造 API 所需的运行配置
type Options struct {
	Location       *time.Location
	UploadDir      string
	UploadURL      string
	Settings       service.SystemSettings
	Filter         *safety.Filter
	Logger         *zap.Logger
	Now            func() time.Time
	TrackerOptions []progression.TrackerOption
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	users       *service.UserService
	goals       *service.GoalService
	plans       *service.PlanService
	dailyTasks  *service.DailyTaskService
	journals    *service.JournalService
	reflections *service.ReflectionService
	tags        *service.TagService
	likes       *service.LikeService
	comments    *service.CommentService
	goodNews    *service.GoodNewsService
	system      *service.SystemSettingService
	logger      *zap.Logger
	now         func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Filter == nil {
		opts.Filter = safety.NewDefaultFilter()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	trackerOpts := append([]progression.TrackerOption{progression.WithClock(opts.Now)}, opts.TrackerOptions...)

	systemService := service.NewSystemSettingService(gdb, opts.Settings)

	return &API{
		db:          gdb,
		users:       service.NewUserService(gdb),
		goals:       service.NewGoalService(gdb, opts.Location, opts.Logger, trackerOpts...),
		plans:       service.NewPlanService(gdb, opts.Filter, systemService, opts.Location, opts.Logger, trackerOpts...),
		dailyTasks:  service.NewDailyTaskService(gdb, opts.Filter, systemService, opts.Logger),
		journals:    service.NewJournalService(gdb),
		reflections: service.NewReflectionService(gdb),
		tags:        service.NewTagService(gdb),
		likes:       service.NewLikeService(gdb),
		comments:    service.NewCommentService(gdb),
		goodNews:    service.NewGoodNewsService(gdb, opts.Location, opts.UploadDir, opts.UploadURL),
		system:      systemService,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Users 暴露用户服务，供 CLI 初始化管理员
func (a *API) Users() *service.UserService {
	return a.users
}

// Goals 暴露灵修目标服务
func (a *API) Goals() *service.GoalService {
	return a.goals
}

// Plans 暴露 AI 计划服务
func (a *API) Plans() *service.PlanService {
	return a.plans
}

// GoodNews 暴露每日卡片服务
func (a *API) GoodNews() *service.GoodNewsService {
	return a.goodNews
}

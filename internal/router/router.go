package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/walklog/internal/handler"
	"github.com/walklog/internal/logging"
	"go.uber.org/zap"
)

const sessionName = "walklog_session"

// Config 是路由层需要的运行参数
type Config struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	SecureCookie  bool
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg Config, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(logging.GinLogger(logger), logging.GinRecovery(logger))

	// 配置会话中间件
	secret := cfg.SessionSecret
	if secret == "" {
		secret = "walklog-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// 上传文件
	if cfg.UploadDir != "" {
		uploadURL := strings.TrimRight(cfg.UploadURLPath, "/")
		if uploadURL == "" {
			uploadURL = "/static/uploads"
		}
		r.Static(uploadURL, cfg.UploadDir)
		if uploadURL != "/uploads" {
			r.Static("/uploads", cfg.UploadDir)
		}
	}

	r.GET("/healthz", api.HealthCheck)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	public := r.Group("/api")
	{
		public.POST("/auth/signup", api.Signup)
		public.POST("/auth/login", api.Login)
		public.POST("/auth/logout", api.Logout)
		public.GET("/whoami", api.WhoAmI)
		public.GET("/good-news", api.TodayGoodNews)
		public.GET("/avatars", api.ListAvatars)
	}

	auth := r.Group("/api")
	auth.Use(api.AuthRequired())
	{
		auth.GET("/user", api.GetProfile)
		auth.PATCH("/user", api.UpdateProfile)
		auth.GET("/user/devotional-goal", api.GetSelectedGoal)
		auth.PUT("/user/devotional-goal", api.SelectGoal)

		auth.GET("/devotional-goals", api.ListGoals)
		auth.GET("/devotional-goals/:id", api.GetGoal)
		auth.GET("/devotional-goals/:id/progress", api.GoalProgress)
		auth.GET("/devotional-tasks/today", api.TodayDevotionalTask)
		auth.POST("/devotional-tasks/complete", api.CompleteDevotionalTask)
		auth.GET("/user-task-progress", api.CompletedDevotionalTasks)

		auth.POST("/ai-plans", api.GeneratePlan)
		auth.GET("/ai-plans/latest", api.LatestPlan)
		auth.GET("/ai-plans/:id", api.GetPlan)
		auth.GET("/ai-plans/:id/progress", api.PlanProgress)
		auth.POST("/ai-plans/:id/tasks/:taskId/complete", api.CompletePlanTask)
		auth.GET("/user-ai-task-progress", api.CompletedPlanTasks)

		auth.GET("/daily-tasks", api.ListDailyTasks)
		auth.POST("/daily-tasks", api.CreateDailyTask)
		auth.POST("/daily-tasks/ai", api.GenerateDailyTask)
		auth.DELETE("/daily-tasks/:id", api.DeleteDailyTask)

		auth.GET("/journals", api.ListJournals)
		auth.POST("/journals", api.CreateJournal)
		auth.GET("/journals/:id", api.GetJournal)
		auth.DELETE("/journals/:id", api.DeleteJournal)

		auth.GET("/reflections", api.ListMyReflections)
		auth.POST("/reflections", api.CreateReflection)
		auth.GET("/reflections/:id", api.GetReflection)
		auth.DELETE("/reflections/:id", api.DeleteReflection)
		auth.GET("/reflections/:id/like", api.LikeStatus)
		auth.POST("/reflections/:id/like", api.ToggleLike)
		auth.GET("/reflections/:id/comments", api.ListComments)
		auth.POST("/reflections/:id/comments", api.AddComment)
		auth.GET("/feed", api.Feed)

		auth.GET("/niche-tags", api.GetTags)
		auth.POST("/niche-tags", api.CreateTag)
		auth.GET("/tags/:id/reflections", api.ReflectionsByTag)
	}

	// 后台管理路由
	admin := r.Group("/api/admin")
	admin.Use(api.AuthRequired(), api.AdminRequired())
	{
		admin.GET("/pending-reflections", api.PendingReflections)
		admin.POST("/reflections/:id/:action", api.ModerateReflection)
		admin.GET("/pending-comments", api.PendingComments)
		admin.POST("/comments/:id/:action", api.ModerateComment)

		admin.POST("/devotional-goals", api.CreateGoal)

		admin.GET("/good-news", api.ListGoodNews)
		admin.POST("/good-news", api.CreateGoodNews)

		admin.GET("/settings", api.GetSystemSettings)
		admin.PUT("/settings", api.UpdateSystemSettings)
		admin.POST("/settings/test-ai", api.TestAIConnection)
	}

	return r
}

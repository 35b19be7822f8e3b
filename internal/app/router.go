package app

import (
	"online_exam_backend/docs"
	"online_exam_backend/internal/config"
	"online_exam_backend/internal/middleware"
	"online_exam_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 考生通过访问链接使用的路由
	a.registerCandidateLinkRoutes(router, c)

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerExamRoutes(authGroup, c)
	}

	// 4. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/ping", c.health.Ping)
		public.GET("/health", c.health.HealthCheck)

		public.GET("/test/ping", c.health.TestPing)
		public.GET("/test/version", c.health.Version)
		public.GET("/test/system-info", c.health.SystemInfo)

		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}
}

// registerCandidateLinkRoutes 链接即凭证，使用更严格的限流
func (a *App) registerCandidateLinkRoutes(router *gin.Engine, c *controllers) {
	link := router.Group("/api/candidates")
	link.Use(a.publicLimiter.Middleware())
	{
		link.GET("/access/:unique_link", c.candidate.AccessExam)
		link.POST("/submit/:unique_link", c.candidate.SubmitExam)
	}
}

func (a *App) registerExamRoutes(api *gin.RouterGroup, c *controllers) {
	api.GET("/auth/me", c.auth.Me)
	api.GET("/auth/validate-token", c.auth.ValidateToken)

	exams := api.Group("/exams")
	{
		exams.GET("", c.exam.ListExams)
		exams.POST("", c.exam.CreateExam)
		exams.GET("/:id", c.exam.GetExam)
		exams.PUT("/:id", c.exam.UpdateExam)
		exams.DELETE("/:id", c.exam.DeleteExam)
		exams.GET("/:id/questions", c.exam.ExamQuestions)
	}

	questions := api.Group("/questions")
	{
		questions.GET("", c.question.ListQuestions)
		questions.POST("", c.question.CreateQuestion)
		questions.POST("/bulk", c.question.BulkCreateQuestions)
		questions.GET("/:id", c.question.GetQuestion)
		questions.PUT("/:id", c.question.UpdateQuestion)
		questions.DELETE("/:id", c.question.DeleteQuestion)
	}

	candidates := api.Group("/candidates")
	{
		candidates.GET("", c.candidate.ListCandidates)
		candidates.POST("", c.candidate.CreateCandidate)
		candidates.GET("/exams/:exam_id/candidates", c.candidate.ListExamCandidates)
		candidates.GET("/:id", c.candidate.GetCandidate)
		candidates.PUT("/:id", c.candidate.UpdateCandidate)
		candidates.DELETE("/:id", c.candidate.DeleteCandidate)
		candidates.POST("/:id/send-invitation", c.candidate.SendInvitation)
	}

	results := api.Group("/results")
	{
		results.GET("", c.result.ListResults)
		results.GET("/exams/:exam_id", c.result.ListExamResults)
		results.GET("/candidates/:candidate_id", c.result.ListCandidateResults)
		results.GET("/:id", c.result.GetResult)
		results.PUT("/:id/review", c.result.ReviewResult)
		results.PUT("/:id/evaluate", c.result.EvaluateResult)
		results.GET("/:id/export", c.result.ExportResult)
		results.GET("/:id/exports/:filename", c.result.DownloadArchivedExport)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AdminMiddleware())
	{
		admin.GET("/users", c.auth.ListUsers)
	}
}

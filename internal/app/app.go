package app

import (
	"context"
	"log"
	"net/http"
	"online_exam_backend/internal/config"
	"online_exam_backend/internal/controller"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/service"
	"online_exam_backend/pkg/configwatcher"
	"online_exam_backend/pkg/database"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/mailer"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/queue"
	"online_exam_backend/pkg/security"
	"online_exam_backend/pkg/tracing"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ConfigDir         = "configs"
	notificationQueue = "exam:notifications"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)

	limiter       *security.RateLimiter
	publicLimiter *security.RateLimiter
	worker        *service.NotificationWorker
	direct        *service.DirectDispatcher
	tracer        *sdktrace.TracerProvider

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type repositories struct {
	user      *repository.UserRepository
	exam      *repository.ExamRepository
	question  *repository.QuestionRepository
	candidate *repository.CandidateRepository
	result    *repository.ResultRepository
}

type services struct {
	auth         *service.AuthService
	access       *service.AccessService
	storage      *service.StorageService
	notification *service.NotificationService
	exam         *service.ExamService
	question     *service.QuestionService
	candidate    *service.CandidateService
	submission   *service.SubmissionService
	evaluation   *service.EvaluationService
	result       *service.ResultService
	export       *service.ExportService
}

type controllers struct {
	auth      *controller.AuthController
	health    *controller.HealthController
	exam      *controller.ExamController
	question  *controller.QuestionController
	candidate *controller.CandidateController
	result    *controller.ResultController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		exam:      repository.NewExamRepository(db),
		question:  repository.NewQuestionRepository(db),
		candidate: repository.NewCandidateRepository(db),
		result:    repository.NewResultRepository(db),
	}
}

// initDispatcher Redis 可用时走队列，否则直接在后台发送
func (a *App) initDispatcher(cfg *config.Config, rdb *redis.Client) service.Dispatcher {
	m := mailer.New(cfg.Mail)
	if rdb != nil {
		q := queue.New(rdb, notificationQueue)
		a.worker = service.NewNotificationWorker(q, m)
		return service.NewQueueDispatcher(q)
	}
	a.direct = service.NewDirectDispatcher(m)
	return a.direct
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	access := service.NewAccessService(db)
	storage := service.NewStorageService(cfg)
	notification := service.NewNotificationService(a.initDispatcher(cfg, rdb), repos.user, cfg.Exam.LinkBaseURL, cfg.Exam.AdminBaseURL)

	return &services{
		auth:         service.NewAuthService(repos.user, cfg),
		access:       access,
		storage:      storage,
		notification: notification,
		exam:         service.NewExamService(db, repos.exam, repos.question, access),
		question:     service.NewQuestionService(db, repos.question, access),
		candidate:    service.NewCandidateService(db, repos.candidate, repos.exam, access, notification),
		submission:   service.NewSubmissionService(db, repos.exam, repos.result, repos.candidate, access, notification),
		evaluation:   service.NewEvaluationService(db, repos.result, repos.exam, repos.candidate, access, notification),
		result:       service.NewResultService(repos.result, repos.exam, repos.candidate, access),
		export:       service.NewExportService(repos.result, repos.exam, repos.candidate, repos.question, access, storage),
	}
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		health:    controller.NewHealthController(db, a.Redis, a.Config.Server.Mode),
		exam:      controller.NewExamController(s.exam),
		question:  controller.NewQuestionController(s.question),
		candidate: controller.NewCandidateController(s.candidate, s.submission),
		result:    controller.NewResultController(s.result, s.evaluation, s.export),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiter.Middleware())
	router.Use(monitoring.MetricsMiddleware())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
}

// New 在已打开的数据库和可选的 Redis 上组装路由与服务，不启动后台任务
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config:        cfg,
		DB:            db,
		Redis:         rdb,
		limiter:       security.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.RateWindow()),
		publicLimiter: security.NewRateLimiter(cfg.RateLimit.PublicMaxRequests, cfg.RateLimit.RateWindow()),
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(app.services, db)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	app.RegisterConfigCallback(logger.ApplyConfig)
	app.RegisterConfigCallback(func(c *config.Config) {
		window := c.RateLimit.RateWindow()
		app.limiter.Update(c.RateLimit.MaxRequests, window)
		app.publicLimiter.Update(c.RateLimit.PublicMaxRequests, window)
	})

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	// release 模式默认不自动迁移，需要 -migrate
	migrate := cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			// 通知队列不可用时退回直接发送
			logger.Log.Warn("Redis unavailable, notifications will be sent directly", zap.Error(err))
			rdb = nil
		}
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

// startBackgroundTasks 启动通知消费与配置热更新，ctx 取消时全部退出
func (a *App) startBackgroundTasks(ctx context.Context) {
	if a.worker != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.worker.Run(ctx)
		}()
	}

	err := configwatcher.WatchConfig(ctx, ConfigDir+"/config.yaml", func(cfg *config.Config) {
		for _, callback := range a.configCallbacks {
			callback(cfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

// Close 停止后台任务并释放连接
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.direct != nil {
		a.direct.Wait()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.publicLimiter != nil {
		a.publicLimiter.Stop()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

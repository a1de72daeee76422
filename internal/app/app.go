package app

import (
	"context"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/controller"
	"edu_progress_backend/internal/repository"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/database"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"edu_progress_backend/pkg/security"
	"edu_progress_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	scheduler       *cron.Cron
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	course     *repository.CourseRepository
	lesson     *repository.LessonRepository
	enrollment *repository.EnrollmentRepository
	completion *repository.LessonCompletionRepository
	quiz       *repository.QuizRepository
	analytics  *repository.AnalyticsRepository
}

type services struct {
	storage        *service.StorageService
	completion     *service.CompletionService
	learning       *service.LearningService
	analytics      *service.AnalyticsService
	analyticsCache *service.AnalyticsCache
	limiter        *security.IPLimiter
}

type controllers struct {
	learning      *controller.LearningController
	analytics     *controller.AnalyticsController
	progressAdmin *controller.ProgressAdminController
	health        *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，只处理可以在运行时生效的字段
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		course:     repository.NewCourseRepository(db),
		lesson:     repository.NewLessonRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
		completion: repository.NewLessonCompletionRepository(db),
		quiz:       repository.NewQuizRepository(db),
		analytics:  repository.NewAnalyticsRepository(db),
	}
}

func initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.completion = service.NewCompletionService(repos.lesson, repos.course, repos.enrollment, repos.completion, db)
	s.learning = service.NewLearningService(repos.course, repos.lesson, repos.enrollment, repos.completion, repos.quiz, s.completion, db)
	s.analyticsCache = service.NewAnalyticsCache(rdb, cfg.Analytics.CacheTTL())
	s.analytics = service.NewAnalyticsService(repos.analytics, repos.lesson, repos.enrollment, s.analyticsCache, s.storage, cfg.Analytics, db)

	return s
}

func initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		learning:      controller.NewLearningController(s.learning),
		analytics:     controller.NewAnalyticsController(s.analytics),
		progressAdmin: controller.NewProgressAdminController(s.completion),
		health:        controller.NewHealthController(db, rdb),
	}
}

func setupMiddlewares(router *gin.Engine, cfg *config.Config, s *services) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 && cfg.RateLimit.WindowMinutes > 0 {
		s.limiter = security.NewIPLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
		router.Use(s.limiter.Middleware())
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewRouter 组装路由，测试中直接传入 sqlite 库使用
func NewRouter(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*gin.Engine, *services) {
	repos := initRepositories(db)
	s := initServices(repos, cfg, db, rdb)
	c := initControllers(s, db, rdb)

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddlewares(router, cfg, s)
	registerRoutes(router, c, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}
	return router, s
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	gin.SetMode(cfg.Server.Mode)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式默认不自动迁移，需要 -migrate 显式开启
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存只服务统计查询，连接失败时降级为直接查库
		logger.Log.Error("Failed to initialize redis, analytics cache disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	router, s := NewRouter(cfg, db, rdb)
	app.Router = router
	app.services = s

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
		s.analyticsCache.SetTTL(newCfg.Analytics.CacheTTL())
		logger.Log.Info("Analytics cache TTL updated", zap.Duration("ttl", newCfg.Analytics.CacheTTL()))
	})

	if cfg.Reconcile.Enabled {
		scheduler, err := newReconcileScheduler(cfg.Reconcile.Schedule, s.completion)
		if err != nil {
			logger.Log.Fatal("Invalid reconcile schedule", zap.String("schedule", cfg.Reconcile.Schedule), zap.Error(err))
		}
		app.scheduler = scheduler
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if a.services.limiter != nil {
		go a.services.limiter.RunSweeper(sweepCtx)
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}

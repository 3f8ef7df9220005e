package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/controller"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/service"
	"tryout_backend/pkg/configwatcher"
	"tryout_backend/pkg/database"
	"tryout_backend/pkg/logger"
	"tryout_backend/pkg/monitoring"
	"tryout_backend/pkg/security"
	"tryout_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	sweeper         *service.AttemptSweeper
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	course  *repository.CourseRepository
	tryout  *repository.TryoutRepository
	attempt *repository.AttemptRepository
}

type services struct {
	auth    *service.AuthService
	course  *service.CourseService
	tryout  *service.TryoutService
	attempt *service.AttemptService
}

type controllers struct {
	auth    *controller.AuthController
	course  *controller.CourseController
	tryout  *controller.TryoutController
	attempt *controller.AttemptController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		course:  repository.NewCourseRepository(db),
		tryout:  repository.NewTryoutRepository(db),
		attempt: repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.course = service.NewCourseService(repos.course)
	s.tryout = service.NewTryoutService(repos.tryout, repos.course, repos.attempt, rdb, cfg)
	s.attempt = service.NewAttemptService(repos.attempt, repos.tryout, repos.course, cfg, db)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		course:  controller.NewCourseController(s.course),
		tryout:  controller.NewTryoutController(s.tryout),
		attempt: controller.NewAttemptController(s.tryout, s.attempt),
		health:  controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 6000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 启动到期自动交卷的定时扫描
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	interval := time.Duration(cfg.Tryout.SweepIntervalSeconds) * time.Second
	a.sweeper = service.NewAttemptSweeper(s.attempt, interval)
	go a.sweeper.Run()
}

func (a *App) restartSweeper(cfg *config.Config) {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	a.startBackgroundTasks(a.services, cfg)
}

// watchConfig 配置文件热更新，目前支持调整扫描间隔、宽限期与缓存 TTL。
// 回调只在 watcher 协程里跑；扫描/请求协程读到的值都走服务内部的原子存取，
// 不直接改写共享的 Config。
func (a *App) watchConfig() {
	current := a.Config.Tryout
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		if newCfg.Tryout.SweepIntervalSeconds != current.SweepIntervalSeconds {
			logger.Log.Info("sweep interval changed, restarting sweeper",
				zap.Int("seconds", newCfg.Tryout.SweepIntervalSeconds))
			a.restartSweeper(newCfg)
		}
		a.services.attempt.SetGraceSeconds(newCfg.Tryout.GraceSeconds)
		a.services.tryout.SetCacheTTLSeconds(newCfg.Tryout.CacheTTLSeconds)
		current = newCfg.Tryout
	})

	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("tryout-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks(services, cfg)
	app.watchConfig()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 先停掉自动交卷扫描，避免关闭过程中再触发写库
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

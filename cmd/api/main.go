package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-cms/internal/audit"
	"github.com/damoang/angple-cms/internal/config"
	"github.com/damoang/angple-cms/internal/event"
	"github.com/damoang/angple-cms/internal/handler"
	"github.com/damoang/angple-cms/internal/jobs"
	"github.com/damoang/angple-cms/internal/middleware"
	"github.com/damoang/angple-cms/internal/migration"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/damoang/angple-cms/internal/routes"
	"github.com/damoang/angple-cms/internal/service"
	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/damoang/angple-cms/pkg/jwt"
	pkglogger "github.com/damoang/angple-cms/pkg/logger"
	pkgredis "github.com/damoang/angple-cms/pkg/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	dotenvFiles := config.LoadDotEnv()

	// 로거 초기화
	env := config.Env()
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	// 설정 로드
	configPath := config.Path()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		pkglogger.Fatal("Failed to load config: %v", err)
	}
	if cfg.Environment == "" {
		cfg.Environment = env
	}
	config.LogResolved(cfg)

	// MySQL 연결 (필수: revision 저장소)
	db, err := initDB(cfg)
	if err != nil {
		pkglogger.Fatal("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db); err != nil {
		pkglogger.Fatal("Migration failed: %v", err)
	}

	instanceID := uuid.NewString()
	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// Event bus, relayed through Redis when enabled
	bus := event.NewBus()
	var publisher event.Publisher = bus
	var relay *event.RedisRelay
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(rootCtx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			pkglogger.Warn("Failed to connect to Redis: %v (events stay local)", err)
		} else {
			pkglogger.Info("Connected to Redis")
			publisher = event.Multi{bus, event.NewRedisPublisher(redisClient, cfg.Redis.Channel, instanceID)}
			relay = event.NewRedisRelay(redisClient, bus, cfg.Redis.Channel, instanceID)
			if err := relay.Start(rootCtx); err != nil {
				pkglogger.Warn("Event relay failed to start: %v", err)
				relay = nil
			}
		}
	}

	// Cache
	cacheManager := cache.NewManager(cache.WithOverrides(cfg.Cache.Overrides()))
	bus.Subscribe("cache", event.Wildcard, service.InvalidateOnEvent(cacheManager))
	pkglogger.GetLogger().Info().Interface("subscriptions", bus.Subscriptions()).Msg("event bus ready")

	// Repositories
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	blogPostRepo := repository.NewBlogPostRepository(db)
	pageRepo := repository.NewPageRepository(db)
	store := repository.NewStore(db, courseRepo, lessonRepo, packageRepo, blogPostRepo, pageRepo)

	// Audit (비동기 기록)
	auditSink := audit.NewDBSink(repository.NewAuditRepository(db))

	// Services
	workflow := service.NewWorkflowService(store, auditSink, publisher,
		service.WithPreviewTTL(cfg.Workflow.PreviewTTL),
		service.WithPreviewPath(cfg.Workflow.PreviewPath),
		service.WithPostPublishTimeout(cfg.Workflow.PostPublishTimeout),
		service.WithPostPublishHooks(service.CacheInvalidationHook(cacheManager)),
	)
	deps := service.ContentDeps{
		Workflow: workflow,
		Audit:    auditSink,
		Events:   publisher,
		Cache:    cacheManager,
	}
	courseService := service.NewCourseService(courseRepo, deps)
	lessonService := service.NewLessonService(lessonRepo, deps)
	packageService := service.NewPackageService(packageRepo, courseRepo, deps)
	blogPostService := service.NewBlogPostService(blogPostRepo, deps)
	pageService := service.NewPageService(pageRepo, deps)

	// Background jobs
	janitor, err := jobs.NewJanitor(workflow, cacheManager, jobs.Config{
		PreviewPurgeInterval: cfg.Jobs.PreviewPurgeInterval,
		CacheSweepInterval:   cfg.Jobs.CacheSweepInterval,
	})
	if err != nil {
		pkglogger.Fatal("Failed to create janitor: %v", err)
	}
	janitor.Start()
	// previews that expired while the service was down
	if err := janitor.RunNow(jobs.JobPurgePreviews); err != nil {
		pkglogger.Warn("Initial preview purge skipped: %v", err)
	}

	// Gin 라우터 생성
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":      dbStatus,
			"instance_id": instanceID,
			"redis":       relay != nil,
			"cache":       cacheManager.Stats(),
			"events":      bus.Subscriptions(),
			"time":        time.Now().UTC().Format(time.RFC3339),
		})
	})

	jwtManager := jwt.NewManager(cfg.JWT.Secret, "angple-cms")
	routes.Setup(router, routes.Handlers{
		Workflow:  handler.NewWorkflowHandler(workflow),
		Courses:   handler.NewContentHandler(courseService),
		Lessons:   handler.NewContentHandler(lessonService),
		Packages:  handler.NewPackageHandler(packageService),
		BlogPosts: handler.NewContentHandler(blogPostService),
		Pages:     handler.NewContentHandler(pageService),
	}, jwtManager, cfg.Workflow.PreviewPath)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pkglogger.Fatal("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	pkglogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		pkglogger.Error("Server shutdown error: %v", err)
	}

	// 진행 중인 작업 정리: jobs, hooks, audit writes, relay
	if err := janitor.Stop(); err != nil {
		pkglogger.Error("Janitor shutdown error: %v", err)
	}
	workflow.WaitForHooks()
	auditSink.Wait()
	if relay != nil {
		if err := relay.Stop(); err != nil {
			pkglogger.Error("Relay shutdown error: %v", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	stopRoot()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	pkglogger.Info("Server stopped")
}

func corsConfig(allowOrigins string) cors.Config {
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	var origins []string
	for _, o := range strings.Split(allowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           86400 * time.Second,
	}
}

// initDB MySQL 연결 초기화
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	// preview expiry and revision timestamps are compared in UTC
	mysqlCfg.Params["time_zone"] = "'+00:00'"

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

package app

import (
	"ai_support_backend/internal/config"
	"ai_support_backend/internal/controller"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/service"
	"ai_support_backend/pkg/database"
	"ai_support_backend/pkg/logger"
	"ai_support_backend/pkg/monitoring"
	"ai_support_backend/pkg/security"
	"ai_support_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
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
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	ticket    *repository.TicketRepository
	message   *repository.MessageRepository
	knowledge *repository.KnowledgeRepository
	qc        *repository.QCRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	ai        *service.AIService
	embedding *service.EmbeddingService
	index     *service.VectorIndex
	rag       *service.RAGService
	ingest    *service.IngestService
	knowledge *service.KnowledgeService
	engine    *service.AIEngine
	ticket    *service.TicketService
	assist    *service.AssistService
	qc        *service.QCService
}

type controllers struct {
	auth      *controller.AuthController
	knowledge *controller.KnowledgeController
	ticket    *controller.TicketController
	qc        *controller.QCController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，由配置文件监听器调用。
// 检索阈值与入库重试参数即时生效，其余字段重启后生效。
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Config reloaded",
		zap.Float64("qa_threshold", cfg.Retrieval.QAThreshold),
		zap.Int("vector_top_k", cfg.Retrieval.VectorTopK),
		zap.Float64("min_chunk_score", cfg.Retrieval.MinChunkScore))
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		ticket:    repository.NewTicketRepository(db),
		message:   repository.NewMessageRepository(db),
		knowledge: repository.NewKnowledgeRepository(db),
		qc:        repository.NewQCRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)

	s.ai = service.NewAIService(cfg.LLM)
	s.embedding = service.NewEmbeddingService(cfg.Embedding)
	s.index = service.NewVectorIndex()
	s.rag = service.NewRAGService(s.embedding, s.index, cfg.Retrieval, logger.Log)
	s.ingest = service.NewIngestService(repos.knowledge, s.embedding, s.ai, s.index, cfg.Retrieval, cfg.Ingest, logger.Log)
	s.knowledge = service.NewKnowledgeService(repos.knowledge, s.ingest, s.index, s.storage, rdb, logger.Log)

	s.engine = service.NewAIEngine(s.ai, s.rag, logger.Log)
	s.ticket = service.NewTicketService(repos.ticket, repos.message, s.engine, logger.Log)
	s.assist = service.NewAssistService(s.ai, s.rag, logger.Log)
	s.qc = service.NewQCService(repos.qc, repos.ticket, logger.Log)

	// 检索与入库参数支持热更新
	a.RegisterConfigCallback(func(cfg *config.Config) {
		s.rag.ApplyConfig(cfg.Retrieval)
		s.ingest.ApplyConfig(cfg.Retrieval, cfg.Ingest)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		knowledge: controller.NewKnowledgeController(s.knowledge),
		ticket:    controller.NewTicketController(s.ticket, s.assist),
		qc:        controller.NewQCController(s.qc),
		health:    controller.NewHealthController(db, s.index),
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

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis 只做文档列表缓存，连不上时降级为直查数据库
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Failed to initialize redis, doc list cache disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("ai-support-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	// 重启后从数据库恢复向量索引
	if err := services.knowledge.Warm(context.Background()); err != nil {
		logger.Log.Error("Failed to warm vector index", zap.Error(err))
	}

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

	// 等待在途的知识入库任务收尾
	if a.services != nil && a.services.ingest != nil {
		a.services.ingest.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Sync()
	log.Println("Server exiting")
}

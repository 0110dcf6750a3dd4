package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/api/handlers"
	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/cache"
	"github.com/BaSui01/mediaflow/internal/database"
	"github.com/BaSui01/mediaflow/internal/history"
	"github.com/BaSui01/mediaflow/internal/jobs"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/internal/pool"
	"github.com/BaSui01/mediaflow/internal/server"
	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/llm/generation"
	"github.com/BaSui01/mediaflow/llm/idempotency"
	"github.com/BaSui01/mediaflow/llm/image"
	"github.com/BaSui01/mediaflow/llm/multimodal"
	"github.com/BaSui01/mediaflow/llm/speech"
	"github.com/BaSui01/mediaflow/llm/video"
	"github.com/BaSui01/mediaflow/types"
)

// jobsPerBranchSlot 就绪检查允许的在途任务数 = 分支槽位 × 该系数
const jobsPerBranchSlot = 16

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 MediaFlow 的主服务器
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	level      zap.AtomicLevel

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 基础设施
	metricsCollector *metrics.Collector
	dbPool           *database.PoolManager
	cacheManager     *cache.Manager
	memIdempotency   *idempotency.MemoryManager
	branchPool       *pool.BranchPool

	// 生成
	orchestrator *generation.Orchestrator
	runner       *jobs.Runner
	store        *history.Store

	// Handlers
	healthHandler     *handlers.HealthHandler
	generationHandler *handlers.GenerationHandler

	// 后台 goroutine 生命周期
	bgCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, level zap.AtomicLevel) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		level:      level,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// 1. 指标收集器
	s.metricsCollector = metrics.NewCollector("mediaflow", s.logger)

	// 2. 存储与缓存
	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	// 3. 生成编排
	if err := s.initGeneration(bgCtx); err != nil {
		return fmt.Errorf("failed to init generation: %w", err)
	}

	// 4. Handlers
	s.initHandlers()

	// 5. 配置热更新
	s.startConfigWatcher(bgCtx)

	// 6. HTTP 服务器
	if err := s.startHTTPServer(bgCtx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 7. Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initStorage 打开数据库，连接 Redis（可选）
func (s *Server) initStorage() error {
	db, err := database.Open(s.cfg.Database)
	if err != nil {
		return err
	}

	poolCfg := database.PoolConfigFrom(s.cfg.Database)
	if s.cfg.Database.Driver == "sqlite" {
		// sqlite 只允许单写者
		poolCfg.MaxOpenConns = 1
		poolCfg.MaxIdleConns = 1
	}
	s.dbPool, err = database.NewPoolManager(db, poolCfg, s.metricsCollector, s.logger)
	if err != nil {
		return err
	}

	s.store = history.NewStore(s.dbPool.DB(), s.metricsCollector, s.logger)
	if s.cfg.Database.Driver == "sqlite" {
		if err := s.store.AutoMigrate(context.Background()); err != nil {
			return err
		}
	} else {
		s.logger.Info("postgres schema is managed by `mediaflow migrate`")
	}

	if s.cfg.Redis.Addr == "" {
		s.logger.Info("Redis not configured, using in-memory idempotency and no result cache")
		s.memIdempotency = idempotency.NewMemoryManager(s.logger)
		return nil
	}
	s.cacheManager, err = cache.NewManager(cache.ConfigFrom(s.cfg.Redis), s.logger)
	if err != nil {
		return err
	}
	return nil
}

// initGeneration 构建后端路由、编排器与后台任务执行器
func (s *Server) initGeneration(ctx context.Context) error {
	router, err := s.buildRouter(ctx)
	if err != nil {
		return err
	}

	g := s.cfg.Generation
	normalizer := image.NewNormalizer(image.NormalizerConfig{MaxBytes: g.MaxFetchBytes}, tlsutil.SecureHTTPClient(30*time.Second), s.logger)
	s.branchPool = pool.NewBranchPool(pool.BranchPoolConfig{
		MaxConcurrent: g.MaxConcurrentBranches,
		PanicHandler: func(v any) {
			s.logger.Error("generation branch panicked", zap.Any("panic", v))
		},
	})

	s.orchestrator = generation.New(generation.Config{
		MaxAttempts:    g.MaxAttempts,
		BaseDelay:      g.BaseDelay,
		Poll:           generation.PollerConfig{Interval: g.PollInterval, MaxWait: g.PollMaxWait},
		FallbackPrefix: g.FallbackPrefix,
	}, router, normalizer, s.branchPool, s.metricsCollector, s.logger)

	s.runner = jobs.NewRunner(s.orchestrator, s.store, g.JobTimeout, s.logger)
	if s.cacheManager != nil {
		s.runner.OnDone(func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cacheManager.Delete(ctx, "generation:"+id); err != nil {
				s.logger.Debug("failed to evict cached generation", zap.String("id", id), zap.Error(err))
			}
		})
	}
	return nil
}

// buildRouter 按已配置的凭证注册后端
func (s *Server) buildRouter(ctx context.Context) (*multimodal.Router, error) {
	router := multimodal.NewRouter()

	gc := s.cfg.Google
	if gc.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  gc.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		router.RegisterImage(types.ProviderGoogle, image.NewGeminiProvider(client.Models, image.GeminiConfig{Model: gc.ImageModel}))
		router.RegisterVideo(types.ProviderGoogle, video.NewVeoProvider(client.Models, client.Operations, video.VeoConfig{
			Model:           gc.VideoModel,
			DurationSeconds: gc.VideoDuration,
		}))
		router.RegisterTTS(types.ProviderGoogle, speech.NewGeminiSynthesizer(client.Models, speech.GeminiTTSConfig{
			Model: gc.TTSModel,
			Voice: gc.Voice,
		}))
		router.RegisterAnalyzer(types.ProviderGoogle, multimodal.NewGeminiAnalyzer(client.Models, multimodal.GeminiConfig{Model: gc.AnalysisModel}))
		s.logger.Info("Google backends registered")
	} else {
		s.logger.Warn("Google API key not configured, GOOGLE requests will fail")
	}

	ac := s.cfg.Alt
	if ac.FluxAPIKey != "" {
		router.RegisterImage(types.ProviderAlt, image.NewFluxProvider(image.FluxConfig{
			APIKey:  ac.FluxAPIKey,
			BaseURL: ac.FluxBaseURL,
			Model:   ac.FluxModel,
			Timeout: ac.Timeout,
		}))
		s.logger.Info("Flux image backend registered")
	}
	if ac.RunwayAPIKey != "" {
		router.RegisterVideo(types.ProviderAlt, video.NewRunwayProvider(video.RunwayConfig{
			APIKey:  ac.RunwayAPIKey,
			BaseURL: ac.RunwayBaseURL,
			Model:   ac.RunwayModel,
			Timeout: ac.Timeout,
		}))
		s.logger.Info("Runway video backend registered")
	}
	return router, nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewCheck("database", s.dbPool.Ping))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewCheck("redis", s.cacheManager.Ping))
	}
	s.healthHandler.RegisterCheck(handlers.ActiveJobsCheck(s.runner.Active, s.cfg.Generation.MaxConcurrentBranches*jobsPerBranchSlot))

	var (
		idem        idempotency.Manager
		resultCache handlers.ResultCache
	)
	if s.cacheManager != nil {
		idem = idempotency.NewRedisManager(s.cacheManager.Client(), "", s.logger)
		resultCache = s.cacheManager
	} else {
		idem = s.memIdempotency
	}

	s.generationHandler = handlers.NewGenerationHandler(s.store, s.runner, idem, resultCache, s.metricsCollector,
		handlers.GenerationConfig{
			MaxBodyBytes:   handlers.DefaultMaxBodyBytes * 32,
			IdempotencyTTL: s.cfg.Generation.IdempotencyTTL,
			CacheTTL:       time.Hour,
		}, s.logger)

	s.logger.Info("Handlers initialized")
}

// startConfigWatcher 监听配置文件，只热更新日志级别；其余字段需要重启
func (s *Server) startConfigWatcher(ctx context.Context) {
	if s.configPath == "" {
		return
	}
	watcher := config.NewWatcher(s.configPath, s.cfg, config.WithWatcherLogger(s.logger))
	watcher.OnReload(func(oldCfg, newCfg *config.Config) {
		if oldCfg.Log.Level != newCfg.Log.Level {
			s.level.SetLevel(parseLevel(newCfg.Log.Level))
			s.logger.Info("log level changed",
				zap.String("from", oldCfg.Log.Level),
				zap.String("to", newCfg.Log.Level))
		}
	})
	go watcher.Run(ctx)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// API 路由
	s.generationHandler.Register(mux)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		SecurityHeaders(),
		RequestLogger(s.logger),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	// 停止接收请求后等待在途生成任务写回结果
	s.httpManager.OnDrain(s.runner.Drain)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown(context.Background())
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务；重复调用安全
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	// 1. HTTP 服务器（含等待后台任务）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	} else if s.runner != nil {
		drainCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		if err := s.runner.Drain(drainCtx); err != nil {
			s.logger.Warn("job drain incomplete", zap.Error(err))
		}
		cancel()
	}

	// 2. Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 后台 goroutine（限流清理、配置监听）
	if s.bgCancel != nil {
		s.bgCancel()
	}

	// 4. 基础设施
	if s.branchPool != nil {
		s.branchPool.Close()
	}
	if s.memIdempotency != nil {
		s.memIdempotency.Close()
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Redis close error", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database close error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}

// =============================================================================
// MediaFlow 主入口
// =============================================================================
// 完整服务入口点，包含生成 API、健康检查、Prometheus 指标
//
// 使用方法:
//
//	mediaflow serve                       # 启动服务
//	mediaflow serve --config config.yaml  # 指定配置文件
//	mediaflow version                     # 显示版本信息
//	mediaflow health                      # 健康检查
//	mediaflow migrate up                  # 运行数据库迁移
//	mediaflow migrate down                # 回滚最后一次迁移
//	mediaflow migrate status              # 查看迁移状态
// =============================================================================

// @title MediaFlow API
// @version 1.0.0
// @description MediaFlow orchestrates image, video, speech and media analysis generation jobs.
// @description
// @description ## Features
// @description - Asynchronous generation jobs with Idempotency-Key support
// @description - Parallel variants with retry and video-to-image fallback
// @description - Health monitoring and metrics

// @contact.name MediaFlow Team
// @contact.url https://github.com/BaSui01/mediaflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, level := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting MediaFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}()

	srv := NewServer(cfg, *configPath, logger, level)
	if err := srv.Start(); err != nil {
		srv.Shutdown()
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()
	logger.Info("MediaFlow stopped")
}

// loadConfig 加载并验证配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("MediaFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`MediaFlow - generation job orchestration

Usage:
  mediaflow <command> [options]

Commands:
  serve     Start the MediaFlow server
  migrate   Database migration commands (postgres)
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Migration subcommands:
  migrate up         Apply all pending migrations
  migrate down       Rollback the last migration
  migrate steps <n>  Apply (n>0) or rollback (n<0) n migrations
  migrate status     Show migration status
  migrate version    Show current migration version
  migrate info       Show migration summary
  migrate force <v>  Force set migration version

Examples:
  mediaflow serve
  mediaflow serve --config /etc/mediaflow/config.yaml
  mediaflow migrate up --config /etc/mediaflow/config.yaml
  mediaflow health --addr http://localhost:8080
  mediaflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

// parseLevel 解析日志级别，未知值按 info 处理
func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// initLogger 构建 logger，返回的 AtomicLevel 供配置热更新调整级别
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger, level
}

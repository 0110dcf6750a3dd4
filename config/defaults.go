// =============================================================================
// 📦 MediaFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Generation: DefaultGenerationConfig(),
		Google:     DefaultGoogleConfig(),
		Alt:        DefaultAltConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultGenerationConfig 返回默认编排配置
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxAttempts:           3,
		BaseDelay:             2 * time.Second,
		PollInterval:          5 * time.Second,
		PollMaxWait:           10 * time.Minute,
		MaxConcurrentBranches: 8,
		FallbackPrefix:        "Cinematic still frame, ",
		JobTimeout:            15 * time.Minute,
		IdempotencyTTL:        24 * time.Hour,
		MaxFetchBytes:         20 << 20,
	}
}

// DefaultGoogleConfig 返回默认 Google 后端配置
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		ImageModel:    "gemini-2.5-flash-image",
		VideoModel:    "veo-3.1-generate-preview",
		TTSModel:      "gemini-2.5-flash-preview-tts",
		Voice:         "Kore",
		AnalysisModel: "gemini-2.5-flash",
		VideoDuration: 8,
	}
}

// DefaultAltConfig 返回默认备选后端配置
func DefaultAltConfig() AltConfig {
	return AltConfig{
		FluxBaseURL:   "https://api.bfl.ai",
		FluxModel:     "flux-2-pro",
		RunwayBaseURL: "https://api.dev.runwayml.com",
		RunwayModel:   "gen4_turbo",
		Timeout:       2 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "mediaflow",
		Name:            "mediaflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mediaflow",
		SampleRate:   0.1,
	}
}

// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// 编排层默认值
	assert.Equal(t, 3, cfg.Generation.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Generation.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.Generation.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Generation.PollMaxWait)
	assert.Equal(t, 8, cfg.Generation.MaxConcurrentBranches)
	assert.Equal(t, "Cinematic still frame, ", cfg.Generation.FallbackPrefix)

	assert.Equal(t, "veo-3.1-generate-preview", cfg.Google.VideoModel)
	assert.Equal(t, "Kore", cfg.Google.Voice)
	assert.Equal(t, "https://api.bfl.ai", cfg.Alt.FluxBaseURL)

	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "mediaflow", cfg.Telemetry.ServiceName)

	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

generation:
  max_attempts: 5
  poll_interval: 2s
  poll_max_wait: 3m

google:
  api_key: "g-key"
  video_model: "veo-3.0-fast-generate-001"

database:
  driver: postgres
  name: media
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o600))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, 5, cfg.Generation.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Generation.PollInterval)
	assert.Equal(t, 3*time.Minute, cfg.Generation.PollMaxWait)
	// 未设置的字段保留默认值
	assert.Equal(t, 2*time.Second, cfg.Generation.BaseDelay)
	assert.Equal(t, "g-key", cfg.Google.APIKey)
	assert.Equal(t, "veo-3.0-fast-generate-001", cfg.Google.VideoModel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unterminated"), 0o600))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0o600))

	t.Setenv("MEDIAFLOW_SERVER_HTTP_PORT", "9999")
	t.Setenv("MEDIAFLOW_GENERATION_BASE_DELAY", "500ms")
	t.Setenv("MEDIAFLOW_GOOGLE_API_KEY", "env-key")
	t.Setenv("MEDIAFLOW_LOG_OUTPUT_PATHS", "stdout, /tmp/mediaflow.log")
	t.Setenv("MEDIAFLOW_TELEMETRY_ENABLED", "true")
	t.Setenv("MEDIAFLOW_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Generation.BaseDelay)
	assert.Equal(t, "env-key", cfg.Google.APIKey)
	assert.Equal(t, []string{"stdout", "/tmp/mediaflow.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MF_REDIS_ADDR", "redis:6379")
	cfg, err := NewLoader().WithEnvPrefix("MF").Load()
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoader_BadEnvValue(t *testing.T) {
	t.Setenv("MEDIAFLOW_GENERATION_MAX_ATTEMPTS", "three")
	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_Validator(t *testing.T) {
	t.Setenv("MEDIAFLOW_SERVER_HTTP_PORT", "70000")
	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero attempts", func(c *Config) { c.Generation.MaxAttempts = 0 }, "max_attempts"},
		{"zero poll interval", func(c *Config) { c.Generation.PollInterval = 0 }, "poll_interval"},
		{"max wait below interval", func(c *Config) { c.Generation.PollMaxWait = time.Second }, "poll_max_wait"},
		{"no branches", func(c *Config) { c.Generation.MaxConcurrentBranches = 0 }, "max_concurrent_branches"},
		{"mysql", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported database driver"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "file.db"}
	assert.Equal(t, "file.db", lite.DSN())

	assert.Empty(t, (&DatabaseConfig{Driver: "oracle"}).DSN())
}

package video

import "time"

// VeoConfig配置了谷歌Veo视频生成供应商.
type VeoConfig struct {
	Model           string `json:"model,omitempty" yaml:"model,omitempty"` // veo-3.1-generate-preview
	DurationSeconds int    `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
}

// Runway Config 配置了 Runway ML 视频生成提供者.
type RunwayConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // gen4_turbo, gen3a_turbo
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// 默认 VeoConfig 返回默认 Veo 配置 。
func DefaultVeoConfig() VeoConfig {
	return VeoConfig{
		Model:           "veo-3.1-generate-preview",
		DurationSeconds: 8,
	}
}

// 默认 Runway Config 返回默认 Runway 配置 。
func DefaultRunwayConfig() RunwayConfig {
	return RunwayConfig{
		BaseURL: "https://api.dev.runwayml.com",
		Model:   "gen4_turbo",
		Version: "2024-11-06",
		Timeout: 60 * time.Second,
	}
}

package image

import "time"

// FluxConfig配置了黑森林实验室Flux供应商.
type FluxConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"` // flux-2-pro, flux-kontext-pro
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// 默认FluxConfig 返回默认Flux配置 。
func DefaultFluxConfig() FluxConfig {
	return FluxConfig{
		BaseURL:      "https://api.bfl.ai",
		Model:        "flux-2-pro",
		Timeout:      120 * time.Second,
		PollInterval: 2 * time.Second,
	}
}

// GeminiConfig configures the Google image provider.
type GeminiConfig struct {
	Model string `json:"model,omitempty" yaml:"model,omitempty"` // gemini-2.5-flash-image, imagen-4.0-generate-001
}

// 默认GeminiConfig返回默认双子星图像配置.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model: "gemini-2.5-flash-image",
	}
}

// NormalizerConfig bounds remote reference fetching.
type NormalizerConfig struct {
	MaxBytes     int64         `json:"max_bytes" yaml:"max_bytes"`
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
}

// DefaultNormalizerConfig returns a 20 MiB / 30s fetch budget.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		MaxBytes:     20 << 20,
		FetchTimeout: 30 * time.Second,
	}
}

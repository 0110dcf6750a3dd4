package speech

// GeminiTTSConfig 配置了 Google 语音合成提供者.
type GeminiTTSConfig struct {
	Model      string `json:"model,omitempty" yaml:"model,omitempty"` // gemini-2.5-flash-preview-tts
	Voice      string `json:"voice,omitempty" yaml:"voice,omitempty"` // Kore, Puck, Charon ...
	SampleRate int    `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// DefaultGeminiTTSConfig 返回默认配置，服务端输出 24kHz PCM.
func DefaultGeminiTTSConfig() GeminiTTSConfig {
	return GeminiTTSConfig{
		Model:      "gemini-2.5-flash-preview-tts",
		Voice:      "Kore",
		SampleRate: 24000,
	}
}

// 软件包语音提供语音合成接口与 WAV 封装.
package speech

import (
	"context"
	"time"
)

// SynthesizeRequest 代表一次文本转语音请求.
type SynthesizeRequest struct {
	Text     string            `json:"text"`
	Model    string            `json:"model,omitempty"`
	Voice    string            `json:"voice,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SynthesizeResponse 携带原始 PCM 分片，由调用方封装为容器格式.
type SynthesizeResponse struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Chunks     [][]byte  `json:"-"`
	SampleRate int       `json:"sample_rate"`
	CreatedAt  time.Time `json:"created_at"`
}

// Synthesizer 定义了语音合成提供者接口.
type Synthesizer interface {
	// Synthesize 返回 16-bit little-endian mono PCM 分片.
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// Name 返回提供者名称 。
	Name() string
}

package speech

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/types"
)

// ContentGenerator is the subset of *genai.Models used for speech.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSynthesizer 使用 Gemini TTS 模型合成语音.
type GeminiSynthesizer struct {
	cfg    GeminiTTSConfig
	models ContentGenerator
}

// NewGeminiSynthesizer creates a synthesizer. Pass client.Models.
func NewGeminiSynthesizer(models ContentGenerator, cfg GeminiTTSConfig) *GeminiSynthesizer {
	defaults := DefaultGeminiTTSConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = defaults.Voice
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaults.SampleRate
	}
	return &GeminiSynthesizer{cfg: cfg, models: models}
}

func (s *GeminiSynthesizer) Name() string { return "gemini-tts" }

// Synthesize 返回按响应顺序排列的 PCM 分片.
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := s.models.GenerateContent(ctx, model, genai.Text(req.Text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini tts: %w", err)
	}

	out := &SynthesizeResponse{
		Provider:   s.Name(),
		Model:      model,
		SampleRate: s.cfg.SampleRate,
		CreatedAt:  time.Now(),
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if rate := sampleRateFromMIME(part.InlineData.MIMEType); rate > 0 {
				out.SampleRate = rate
			}
			out.Chunks = append(out.Chunks, part.InlineData.Data)
		}
	}
	if len(out.Chunks) == 0 {
		return nil, types.NewError(types.ErrContentFiltered, "gemini returned no audio").WithProvider(s.Name())
	}
	return out, nil
}

// sampleRateFromMIME reads the rate parameter of e.g. "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(k, "rate") {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

var _ Synthesizer = (*GeminiSynthesizer)(nil)

package multimodal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/types"
)

// ContentGenerator is the subset of *genai.Models used for understanding.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini analyzer.
type GeminiConfig struct {
	Model string `json:"model,omitempty" yaml:"model,omitempty"` // gemini-2.5-flash
}

// DefaultGeminiConfig returns the default analyzer model.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{Model: "gemini-2.5-flash"}
}

const transcribeInstruction = "Transcribe the speech in this media verbatim. Return only the transcript text."

// GeminiAnalyzer 使用 Gemini 多模态能力理解图像、音频与视频.
type GeminiAnalyzer struct {
	cfg    GeminiConfig
	models ContentGenerator
}

// NewGeminiAnalyzer creates an analyzer. Pass client.Models.
func NewGeminiAnalyzer(models ContentGenerator, cfg GeminiConfig) *GeminiAnalyzer {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig().Model
	}
	return &GeminiAnalyzer{cfg: cfg, models: models}
}

func (a *GeminiAnalyzer) Name() string { return "gemini-analyzer" }

// Analyze sends the media followed by the prompt.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, req *AnalyzeRequest) (*TextResponse, error) {
	parts := make([]*genai.Part, 0, len(req.Media)+1)
	for _, m := range req.Media {
		parts = append(parts, genai.NewPartFromBytes(m.Data, m.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return a.generate(ctx, req.Model, parts)
}

// Transcribe returns the spoken content of one audio or video item.
func (a *GeminiAnalyzer) Transcribe(ctx context.Context, req *TranscribeRequest) (*TextResponse, error) {
	instruction := transcribeInstruction
	if req.Language != "" {
		instruction += " The spoken language is " + req.Language + "."
	}
	if req.Prompt != "" {
		instruction += " " + req.Prompt
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Media.Data, req.Media.MimeType),
		genai.NewPartFromText(instruction),
	}
	return a.generate(ctx, req.Model, parts)
}

func (a *GeminiAnalyzer) generate(ctx context.Context, model string, parts []*genai.Part) (*TextResponse, error) {
	if model == "" {
		model = a.cfg.Model
	}

	resp, err := a.models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: parts}}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini analyze: %w", err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, types.NewError(types.ErrContentFiltered, "gemini returned no text").WithProvider(a.Name())
	}

	return &TextResponse{
		Provider:  a.Name(),
		Model:     model,
		Text:      text,
		CreatedAt: time.Now(),
	}, nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)

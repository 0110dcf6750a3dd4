package image

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/types"
)

// GeminiModels is the subset of *genai.Models used for image generation.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiProvider generates images with Google's generative service. Imagen
// models go through GenerateImages; Gemini image models go through
// GenerateContent, which also accepts reference images.
type GeminiProvider struct {
	cfg    GeminiConfig
	models GeminiModels
}

// NewGeminiProvider creates a new Google image provider. Pass client.Models.
func NewGeminiProvider(models GeminiModels, cfg GeminiConfig) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig().Model
	}
	return &GeminiProvider{cfg: cfg, models: models}
}

func (p *GeminiProvider) Name() string { return "gemini-image" }

// Generate creates one image.
func (p *GeminiProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	refs, err := referencesFor(req)
	if err != nil {
		return nil, err
	}

	var images []ImageData
	if strings.HasPrefix(model, "imagen") && len(refs) == 0 {
		images, err = p.generateImagen(ctx, model, req)
	} else {
		images, err = p.generateContent(ctx, model, req, refs)
	}
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, types.NewError(types.ErrContentFiltered, "gemini returned no image").WithProvider(p.Name())
	}

	return &GenerateResponse{
		Provider:  p.Name(),
		Model:     model,
		Images:    images,
		CreatedAt: time.Now(),
	}, nil
}

func (p *GeminiProvider) generateImagen(ctx context.Context, model string, req *GenerateRequest) ([]ImageData, error) {
	resp, err := p.models.GenerateImages(ctx, model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("imagen generate: %w", err)
	}

	var images []ImageData
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		images = append(images, ImageData{Data: gi.Image.ImageBytes, MimeType: mime})
	}
	return images, nil
}

func (p *GeminiProvider) generateContent(ctx context.Context, model string, req *GenerateRequest, refs []types.NormalizedAsset) ([]ImageData, error) {
	parts := make([]*genai.Part, 0, len(refs)+1)
	for _, ref := range refs {
		parts = append(parts, genai.NewPartFromBytes(ref.RawBytes, ref.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if req.AspectRatio != "" || req.Resolution != "" {
		cfg.ImageConfig = &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.Resolution,
		}
	}

	resp, err := p.models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: parts}}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini image generate: %w", err)
	}

	var images []ImageData
	var revised string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			switch {
			case part.InlineData != nil && len(part.InlineData.Data) > 0:
				images = append(images, ImageData{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				})
			case part.Text != "":
				revised = part.Text
			}
		}
	}
	for i := range images {
		images[i].RevisedPrompt = revised
	}
	return images, nil
}

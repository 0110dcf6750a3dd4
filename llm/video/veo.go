package video

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/types"
)

// VeoModels is the subset of *genai.Models used to start Veo jobs.
type VeoModels interface {
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// VeoOperations is the subset of *genai.Operations used to refresh Veo jobs.
type VeoOperations interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// VeoProvider使用Google Veo执行视频生成.
type VeoProvider struct {
	cfg    VeoConfig
	models VeoModels
	ops    VeoOperations
}

// NewVeoProvider创建了一个新的Veo视频提供商. Pass client.Models and client.Operations.
func NewVeoProvider(models VeoModels, ops VeoOperations, cfg VeoConfig) *VeoProvider {
	defaults := DefaultVeoConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.DurationSeconds <= 0 {
		cfg.DurationSeconds = defaults.DurationSeconds
	}
	return &VeoProvider{cfg: cfg, models: models, ops: ops}
}

func (p *VeoProvider) Name() string { return "veo" }

// Start submits one Veo job.
func (p *VeoProvider) Start(ctx context.Context, req *GenerateRequest) (*Operation, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	duration := req.Duration
	if duration <= 0 {
		duration = p.cfg.DurationSeconds
	}
	d := int32(duration)

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos:  1,
		AspectRatio:     req.AspectRatio,
		Resolution:      req.Resolution,
		NegativePrompt:  req.NegativePrompt,
		DurationSeconds: &d,
	}
	if req.Seed != 0 {
		seed := int32(req.Seed)
		cfg.Seed = &seed
	}

	frame, err := inputFrame(req)
	if err != nil {
		return nil, err
	}
	var img *genai.Image
	if frame != nil {
		gi := &genai.Image{ImageBytes: frame.RawBytes, MIMEType: frame.MimeType}
		if req.Mode == types.ModeReferencesToVideo {
			cfg.ReferenceImages = []*genai.VideoGenerationReferenceImage{{
				Image:         gi,
				ReferenceType: genai.VideoGenerationReferenceTypeAsset,
			}}
		} else {
			img = gi
		}
	}

	gop, err := p.models.GenerateVideos(ctx, model, req.Prompt, img, cfg)
	if err != nil {
		return nil, fmt.Errorf("veo start: %w", err)
	}

	op := &Operation{
		ID:        gop.Name,
		Provider:  p.Name(),
		Model:     model,
		StartedAt: time.Now(),
	}
	p.apply(op, gop)
	return op, nil
}

// Query refreshes a Veo job.
func (p *VeoProvider) Query(ctx context.Context, op *Operation) (*Operation, error) {
	gop, ok := op.handle.(*genai.GenerateVideosOperation)
	if !ok {
		gop = &genai.GenerateVideosOperation{Name: op.ID}
	}

	latest, err := p.ops.GetVideosOperation(ctx, gop, nil)
	if err != nil {
		return nil, fmt.Errorf("veo query %s: %w", op.ID, err)
	}

	next := *op
	p.apply(&next, latest)
	return &next, nil
}

func (p *VeoProvider) apply(op *Operation, gop *genai.GenerateVideosOperation) {
	op.handle = gop
	switch {
	case gop.Error != nil:
		op.Status = StatusFailed
		op.Error = fmt.Sprint(gop.Error["message"])
	case !gop.Done:
		op.Status = StatusRunning
	default:
		op.Status = StatusDone
		op.Videos = nil
		if gop.Response != nil {
			for _, gv := range gop.Response.GeneratedVideos {
				if gv == nil || gv.Video == nil {
					continue
				}
				mime := gv.Video.MIMEType
				if mime == "" {
					mime = "video/mp4"
				}
				op.Videos = append(op.Videos, VideoData{
					URL:      gv.Video.URI,
					Data:     gv.Video.VideoBytes,
					MimeType: mime,
				})
			}
		}
		if len(op.Videos) == 0 {
			// 安全过滤会让任务完成但不返回视频
			op.Status = StatusFailed
			op.Error = "no video returned"
			if gop.Response != nil && len(gop.Response.RAIMediaFilteredReasons) > 0 {
				op.Error = gop.Response.RAIMediaFilteredReasons[0]
			}
		}
	}
}

var _ Provider = (*VeoProvider)(nil)

var (
	_ VeoModels     = (*genai.Models)(nil)
	_ VeoOperations = (*genai.Operations)(nil)
)

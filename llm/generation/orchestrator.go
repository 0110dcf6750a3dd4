package generation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/internal/pool"
	"github.com/BaSui01/mediaflow/llm/image"
	"github.com/BaSui01/mediaflow/llm/multimodal"
	"github.com/BaSui01/mediaflow/llm/retry"
	"github.com/BaSui01/mediaflow/llm/speech"
	"github.com/BaSui01/mediaflow/llm/video"
	"github.com/BaSui01/mediaflow/types"
)

const instrumentationName = "github.com/BaSui01/mediaflow/llm/generation"

// MaxVariants is the largest accepted VariantCount.
const MaxVariants = 4

// Config configures an Orchestrator.
type Config struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay      time.Duration `json:"base_delay" yaml:"base_delay"`
	Poll           PollerConfig  `json:"poll" yaml:"poll"`
	FallbackPrefix string        `json:"fallback_prefix" yaml:"fallback_prefix"`
}

// DefaultConfig returns 3 attempts, 2s base delay, 5s/10m polling.
func DefaultConfig() Config {
	p := retry.DefaultRetryPolicy()
	return Config{
		MaxAttempts:    p.MaxAttempts,
		BaseDelay:      p.BaseDelay,
		Poll:           DefaultPollerConfig(),
		FallbackPrefix: DefaultFallbackPrefix,
	}
}

// Orchestrator turns a GenerationRequest into delivered artifacts.
// It is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	cfg        Config
	backends   *multimodal.Router
	normalizer *image.Normalizer
	pool       *pool.BranchPool
	poller     *Poller
	metrics    *metrics.Collector
	logger     *zap.Logger
	tracer     trace.Tracer
}

// New creates an Orchestrator. branchPool and collector may be nil.
func New(cfg Config, backends *multimodal.Router, normalizer *image.Normalizer, branchPool *pool.BranchPool, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.FallbackPrefix == "" {
		cfg.FallbackPrefix = defaults.FallbackPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = image.NewNormalizer(image.NormalizerConfig{}, nil, logger)
	}
	return &Orchestrator{
		cfg:        cfg,
		backends:   backends,
		normalizer: normalizer,
		pool:       branchPool,
		poller:     NewPoller(cfg.Poll, collector, logger),
		metrics:    collector,
		logger:     logger.With(zap.String("component", "orchestrator")),
		tracer:     otel.Tracer(instrumentationName),
	}
}

// Submit runs one request to completion. It returns a result with at least
// one artifact, or an error; never an empty result.
func (o *Orchestrator) Submit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "generation.submit", trace.WithAttributes(
		attribute.String("generation.id", req.ID),
		attribute.String("generation.modality", string(req.Modality)),
		attribute.String("generation.provider", string(req.Provider)),
		attribute.String("generation.model", req.Model),
		attribute.Int("generation.variant_count", req.VariantCount),
	))
	defer span.End()

	var (
		result *types.GenerationResult
		err    error
	)
	switch req.Modality {
	case types.ModalityImage:
		result, err = o.submitImage(ctx, req)
	case types.ModalityVideo:
		result, err = o.submitVideo(ctx, req)
	case types.ModalityAudio:
		result, err = o.submitAudio(ctx, req)
	case types.ModalityAnalysis:
		result, err = o.submitAnalysis(ctx, req)
	case types.ModalityTranscribe:
		result, err = o.submitTranscription(ctx, req)
	}

	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = StatusLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		o.logger.Warn("generation failed",
			zap.String("id", req.ID),
			zap.String("modality", string(req.Modality)),
			zap.String("provider", string(req.Provider)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	} else {
		span.SetAttributes(
			attribute.Int("generation.artifacts", len(result.Artifacts)),
			attribute.Bool("generation.used_fallback", result.UsedFallback),
		)
		o.logger.Info("generation completed",
			zap.String("id", req.ID),
			zap.String("modality", string(req.Modality)),
			zap.Int("artifacts", len(result.Artifacts)),
			zap.Bool("used_fallback", result.UsedFallback),
			zap.Duration("elapsed", elapsed),
		)
	}
	o.metrics.RecordGeneration(string(req.Modality), string(req.Provider), status, elapsed)
	return result, err
}

// Validate rejects malformed requests. Values are reported, never clamped.
func Validate(req *types.GenerationRequest) error {
	if req == nil {
		return types.NewInvalidRequestError("request is required")
	}
	if !req.Modality.Valid() {
		return types.NewInvalidRequestError("unknown modality %q", req.Modality)
	}
	if req.VariantCount < 1 || req.VariantCount > MaxVariants {
		return types.NewInvalidRequestError("variant_count must be between 1 and %d, got %d", MaxVariants, req.VariantCount)
	}
	if !req.Mode.ValidFor(req.Modality) {
		return types.NewInvalidRequestError("mode %q is not supported for %s", req.Mode, req.Modality)
	}
	if req.Prompt == "" && req.Modality != types.ModalityTranscribe {
		return types.NewInvalidRequestError("prompt is required for %s", req.Modality)
	}
	return nil
}

// =============================================================================
// IMAGE
// =============================================================================

func (o *Orchestrator) submitImage(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	artifacts, err := o.generateImages(ctx, req)
	if err != nil {
		var agg *types.Error
		if errors.As(err, &agg) && agg.Code == types.ErrAggregateFailure {
			return nil, types.NewError(types.ErrGenerationFailed, "image generation failed: "+agg.Message).
				WithCause(agg).
				WithHTTPStatus(agg.HTTPStatus)
		}
		return nil, err
	}
	return newResult(req, artifacts, false), nil
}

// generateImages fans out req.VariantCount synchronous image calls.
func (o *Orchestrator) generateImages(ctx context.Context, req *types.GenerationRequest) ([]types.Artifact, error) {
	refs, err := o.normalizer.NormalizeAll(ctx, req.InputAssets)
	if err != nil {
		return nil, err
	}
	provider, err := o.backends.Image(req.Provider)
	if err != nil {
		return nil, err
	}

	outcomes := o.fanOut(ctx, req, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		r := o.retryer(req.Modality)
		return retry.DoWithResultTyped(r, ctx, func() (*types.Artifact, error) {
			b.Attempt()
			resp, err := provider.Generate(ctx, &image.GenerateRequest{
				Prompt:      req.Prompt,
				Model:       req.Model,
				AspectRatio: req.AspectRatio,
				Resolution:  req.Resolution,
				Mode:        req.Mode,
				References:  refs,
				Metadata:    branchMetadata(req, b),
			})
			if err != nil {
				return nil, err
			}
			if len(resp.Images) == 0 {
				return nil, types.NewError(types.ErrContentFiltered, "no image returned").WithProvider(resp.Provider)
			}
			img := resp.Images[0]
			mime := img.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return &types.Artifact{
				URI:      img.URL,
				Data:     img.Data,
				MimeType: mime,
				Text:     img.RevisedPrompt,
				Metadata: map[string]string{
					"provider": resp.Provider,
					"model":    resp.Model,
				},
			}, nil
		})
	})

	artifacts := Successful(outcomes)
	if len(artifacts) == 0 {
		return nil, aggregateError(req.Modality, outcomes)
	}
	return artifacts, nil
}

// =============================================================================
// VIDEO
// =============================================================================

func (o *Orchestrator) submitVideo(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	var startFrame *types.NormalizedAsset
	if asset, ok := req.FirstAsset(types.AssetImage); ok {
		na, err := o.normalizer.Normalize(ctx, asset)
		if err != nil {
			return nil, err
		}
		startFrame = na
	}
	provider, err := o.backends.Video(req.Provider)
	if err != nil {
		return nil, err
	}

	outcomes := o.fanOut(ctx, req, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		r := o.retryer(req.Modality)
		return retry.DoWithResultTyped(r, ctx, func() (*types.Artifact, error) {
			b.Attempt()
			op, err := provider.Start(ctx, &video.GenerateRequest{
				Prompt:      req.Prompt,
				Model:       req.Model,
				AspectRatio: req.AspectRatio,
				Resolution:  req.Resolution,
				Mode:        req.Mode,
				Image:       startFrame,
				Metadata:    branchMetadata(req, b),
			})
			if err != nil {
				return nil, err
			}
			op, err = o.poller.Poll(ctx, provider, op)
			if err != nil {
				return nil, err
			}
			if len(op.Videos) == 0 {
				return nil, types.NewOperationError(op.ID, "finished without a video")
			}
			v := op.Videos[0]
			return &types.Artifact{
				URI:      v.URL,
				Data:     v.Data,
				MimeType: v.MimeType,
				Metadata: map[string]string{
					"provider":  op.Provider,
					"model":     op.Model,
					"operation": op.ID,
				},
			}, nil
		})
	})

	if artifacts := Successful(outcomes); len(artifacts) > 0 {
		return newResult(req, artifacts, false), nil
	}

	primaryErr := aggregateError(req.Modality, outcomes)
	if ctx.Err() != nil {
		return nil, primaryErr
	}

	o.logger.Info("all video variants failed, falling back to image",
		zap.String("id", req.ID),
		zap.Error(primaryErr),
	)
	ctx, span := o.tracer.Start(ctx, "generation.fallback")
	defer span.End()

	art, err := WithFallback(ctx, primaryErr, DegradedRequest(req, o.cfg.FallbackPrefix),
		func(ctx context.Context, degraded *types.GenerationRequest) (*types.Artifact, error) {
			arts, err := o.generateImages(ctx, degraded)
			if err != nil {
				return nil, err
			}
			return &arts[0], nil
		})
	o.metrics.RecordFallback(err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback failed")
		return nil, err
	}
	return newResult(req, []types.Artifact{*art}, true), nil
}

// =============================================================================
// AUDIO
// =============================================================================

func (o *Orchestrator) submitAudio(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	synth, err := o.backends.TTS(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := retry.DoWithResultTyped(o.retryer(req.Modality), ctx, func() (*speech.SynthesizeResponse, error) {
		return synth.Synthesize(ctx, &speech.SynthesizeRequest{
			Text:  req.Prompt,
			Model: req.Model,
			Voice: req.Voice,
		})
	})
	if err != nil {
		return nil, err
	}

	art := types.Artifact{
		Data:     speech.EncodeWAV(resp.Chunks, resp.SampleRate),
		MimeType: "audio/wav",
		Metadata: map[string]string{
			"provider":    resp.Provider,
			"model":       resp.Model,
			"sample_rate": strconv.Itoa(resp.SampleRate),
		},
	}
	return newResult(req, []types.Artifact{art}, false), nil
}

// =============================================================================
// ANALYSIS / TRANSCRIBE
// =============================================================================

func (o *Orchestrator) submitAnalysis(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	media, err := embeddedMedia(req.InputAssets, "analysis")
	if err != nil {
		return nil, err
	}
	analyzer, err := o.backends.Analyzer(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := retry.DoWithResultTyped(o.retryer(req.Modality), ctx, func() (*multimodal.TextResponse, error) {
		return analyzer.Analyze(ctx, &multimodal.AnalyzeRequest{
			Prompt: req.Prompt,
			Model:  req.Model,
			Media:  media,
		})
	})
	if err != nil {
		return nil, err
	}
	return newResult(req, []types.Artifact{textArtifact(resp)}, false), nil
}

func (o *Orchestrator) submitTranscription(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	media, err := embeddedMedia(req.InputAssets, "transcription")
	if err != nil {
		return nil, err
	}
	var target *multimodal.Media
	for i, a := range req.InputAssets {
		if a.Kind == types.AssetAudio || a.Kind == types.AssetVideo {
			target = &media[i]
			break
		}
	}
	if target == nil {
		return nil, types.NewInvalidRequestError("transcription requires an audio or video input")
	}
	analyzer, err := o.backends.Analyzer(req.Provider)
	if err != nil {
		return nil, err
	}

	resp, err := retry.DoWithResultTyped(o.retryer(req.Modality), ctx, func() (*multimodal.TextResponse, error) {
		return analyzer.Transcribe(ctx, &multimodal.TranscribeRequest{
			Model:  req.Model,
			Prompt: req.Prompt,
			Media:  *target,
		})
	})
	if err != nil {
		return nil, err
	}
	return newResult(req, []types.Artifact{textArtifact(resp)}, false), nil
}

// embeddedMedia converts every input asset, rejecting remote references
// before any call is made. The result is index-aligned with assets.
func embeddedMedia(assets []types.Asset, purpose string) ([]multimodal.Media, error) {
	media := make([]multimodal.Media, 0, len(assets))
	for _, a := range assets {
		m, err := multimodal.MediaFromAsset(a, purpose)
		if err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, nil
}

func textArtifact(resp *multimodal.TextResponse) types.Artifact {
	return types.Artifact{
		Text:     resp.Text,
		MimeType: "text/plain",
		Metadata: map[string]string{
			"provider": resp.Provider,
			"model":    resp.Model,
		},
	}
}

// =============================================================================
// helpers
// =============================================================================

func (o *Orchestrator) fanOut(ctx context.Context, req *types.GenerationRequest, fn BranchFunc) []VariantOutcome {
	outcomes := FanOut(ctx, o.pool, req.VariantCount, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		ctx, span := o.tracer.Start(ctx, "generation.branch", trace.WithAttributes(
			attribute.Int("branch.index", b.Index),
		))
		defer span.End()

		if o.pool != nil {
			st := o.pool.Stats()
			o.metrics.RecordPool(st.Active, st.Waiting)
		}

		art, err := fn(ctx, b)
		span.SetAttributes(attribute.Int("branch.attempts", b.attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "branch failed")
		}
		return art, err
	})

	for _, out := range outcomes {
		o.metrics.RecordBranch(string(req.Modality), out.OK())
		if !out.OK() {
			o.logger.Debug("variant failed",
				zap.String("id", req.ID),
				zap.Int("index", out.Index),
				zap.Int("attempts", out.Attempts),
				zap.Error(out.Err),
			)
		}
	}
	return outcomes
}

// branchMetadata tags a provider request with its generation and variant.
func branchMetadata(req *types.GenerationRequest, b *Branch) map[string]string {
	return map[string]string{
		"generation_id": req.ID,
		"variant":       strconv.Itoa(b.Index),
	}
}

func (o *Orchestrator) retryer(modality types.Modality) retry.Retryer {
	return retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxAttempts: o.cfg.MaxAttempts,
		BaseDelay:   o.cfg.BaseDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			o.metrics.RecordRetry(string(modality))
		},
	}, o.logger)
}

func newResult(req *types.GenerationRequest, artifacts []types.Artifact, usedFallback bool) *types.GenerationResult {
	return &types.GenerationResult{
		RequestID:    req.ID,
		Primary:      artifacts[0],
		Artifacts:    artifacts,
		UsedFallback: usedFallback,
	}
}

// aggregateError summarizes a fan-out in which every branch failed.
// The first branch error is kept as the cause.
func aggregateError(modality types.Modality, outcomes []VariantOutcome) *types.Error {
	var first error
	for _, o := range outcomes {
		if o.Err != nil {
			first = o.Err
			break
		}
	}
	e := types.NewError(types.ErrAggregateFailure,
		fmt.Sprintf("all %d %s variants failed", len(outcomes), modality)).
		WithCause(first)
	return e.WithHTTPStatus(HTTPStatus(first))
}

// HTTPStatus picks an HTTP status for an upstream failure.
func HTTPStatus(err error) int {
	if err == nil {
		return 502
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return 504
	}
	var te *types.Error
	if errors.As(err, &te) {
		switch te.Code {
		case types.ErrInvalidRequest, types.ErrConversion:
			return 400
		case types.ErrUpstreamTimeout:
			return 504
		case types.ErrRateLimit, types.ErrRateLimited:
			return 429
		case types.ErrServiceUnavailable, types.ErrModelOverloaded:
			return 503
		case types.ErrAggregateFailure, types.ErrGenerationFailed:
			if te.HTTPStatus != 0 {
				return te.HTTPStatus
			}
		}
	}
	return 502
}

// StatusLabel names the outcome of a failed Submit for metrics and job records.
func StatusLabel(err error) string {
	var ce *CombinedError
	if errors.As(err, &ce) {
		return string(types.ErrFallbackFailed)
	}
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return string(types.ErrInternalError)
}

package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

// DefaultFallbackPrefix is prepended to the prompt of a degraded request.
const DefaultFallbackPrefix = "Cinematic still frame, "

// CombinedError reports that both the primary path and the fallback failed.
// errors.Is / errors.As see the primary error.
type CombinedError struct {
	Primary  error
	Fallback error
}

func (e *CombinedError) Error() string {
	return fmt.Sprintf("video generation failed and the image fallback also failed: primary: %v; fallback: %v",
		e.Primary, e.Fallback)
}

// Unwrap returns the primary error.
func (e *CombinedError) Unwrap() error { return e.Primary }

// DegradedRequest derives the image request used when every video branch
// failed. Input assets are carried forward; the original is not modified.
func DegradedRequest(req *types.GenerationRequest, prefix string) *types.GenerationRequest {
	if prefix == "" {
		prefix = DefaultFallbackPrefix
	}
	d := req.Clone()
	d.Modality = types.ModalityImage
	d.VariantCount = 1
	if !strings.HasPrefix(d.Prompt, prefix) {
		d.Prompt = prefix + d.Prompt
	}
	// 视频模型名对图像后端无意义
	d.Model = ""
	d.Mode = stillMode(req)
	return d
}

// stillMode maps a video mode to the image mode that yields a comparable still.
func stillMode(req *types.GenerationRequest) types.Mode {
	switch req.Mode {
	case types.ModeTextToVideo:
		return types.ModeTextToImage
	case types.ModeFramesToVideo, types.ModeReferencesToVideo:
		if _, ok := req.FirstAsset(types.AssetImage); ok {
			return types.ModeEditImage
		}
		return types.ModeTextToImage
	}
	return ""
}

// FallbackFunc produces the single degraded artifact.
type FallbackFunc func(ctx context.Context, req *types.GenerationRequest) (*types.Artifact, error)

// WithFallback runs fn once for the degraded request. On success the artifact
// is marked IsFallback; on failure a *CombinedError carrying primaryErr is
// returned.
func WithFallback(ctx context.Context, primaryErr error, degraded *types.GenerationRequest, fn FallbackFunc) (*types.Artifact, error) {
	art, err := fn(ctx, degraded)
	if err == nil && art == nil {
		err = errNoArtifact
	}
	if err != nil {
		return nil, &CombinedError{Primary: primaryErr, Fallback: err}
	}

	out := *art
	out.IsFallback = true
	out.Metadata = make(map[string]string, len(art.Metadata)+1)
	for k, v := range art.Metadata {
		out.Metadata[k] = v
	}
	if code := types.GetErrorCode(primaryErr); code != "" {
		out.Metadata["fallback_reason"] = string(code)
	}
	return &out, nil
}

package multimodal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/mediaflow/llm/image"
	"github.com/BaSui01/mediaflow/llm/speech"
	"github.com/BaSui01/mediaflow/llm/video"
	"github.com/BaSui01/mediaflow/types"
)

// Capability represents a type of generation capability.
type Capability string

const (
	CapabilityImage    Capability = "image"
	CapabilityVideo    Capability = "video"
	CapabilityTTS      Capability = "tts"
	CapabilityAnalysis Capability = "analysis"
)

// Router holds the backends for each provider family. It is filled once at
// startup from configuration and then only read.
type Router struct {
	mu sync.RWMutex

	imageProviders    map[types.Provider]image.Provider
	videoProviders    map[types.Provider]video.Provider
	ttsProviders      map[types.Provider]speech.Synthesizer
	analysisProviders map[types.Provider]Analyzer
}

// NewRouter creates an empty registry.
func NewRouter() *Router {
	return &Router{
		imageProviders:    make(map[types.Provider]image.Provider),
		videoProviders:    make(map[types.Provider]video.Provider),
		ttsProviders:      make(map[types.Provider]speech.Synthesizer),
		analysisProviders: make(map[types.Provider]Analyzer),
	}
}

// ============================================================
// Registration methods
// ============================================================

// RegisterImage registers an image provider for a provider family.
func (r *Router) RegisterImage(p types.Provider, provider image.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imageProviders[p] = provider
}

// RegisterVideo registers a video provider.
func (r *Router) RegisterVideo(p types.Provider, provider video.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videoProviders[p] = provider
}

// RegisterTTS registers a speech synthesizer.
func (r *Router) RegisterTTS(p types.Provider, provider speech.Synthesizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttsProviders[p] = provider
}

// RegisterAnalyzer registers a media analyzer.
func (r *Router) RegisterAnalyzer(p types.Provider, provider Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analysisProviders[p] = provider
}

// ============================================================
// Lookup methods
// ============================================================

// Image returns the image provider for p.
func (r *Router) Image(p types.Provider) (image.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.imageProviders[p]; ok {
		return v, nil
	}
	return nil, unavailable(CapabilityImage, p)
}

// Video returns the video provider for p.
func (r *Router) Video(p types.Provider) (video.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.videoProviders[p]; ok {
		return v, nil
	}
	return nil, unavailable(CapabilityVideo, p)
}

// TTS returns the synthesizer for p.
func (r *Router) TTS(p types.Provider) (speech.Synthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.ttsProviders[p]; ok {
		return v, nil
	}
	return nil, unavailable(CapabilityTTS, p)
}

// Analyzer returns the analyzer for p.
func (r *Router) Analyzer(p types.Provider) (Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.analysisProviders[p]; ok {
		return v, nil
	}
	return nil, unavailable(CapabilityAnalysis, p)
}

func unavailable(c Capability, p types.Provider) error {
	return types.NewError(types.ErrProviderUnavailable,
		fmt.Sprintf("no %s backend registered for provider %s", c, p)).
		WithHTTPStatus(501)
}

// ============================================================
// Utility methods
// ============================================================

// ListProviders returns the registered provider families by capability.
func (r *Router) ListProviders() map[Capability][]types.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[Capability][]types.Provider)
	for p := range r.imageProviders {
		result[CapabilityImage] = append(result[CapabilityImage], p)
	}
	for p := range r.videoProviders {
		result[CapabilityVideo] = append(result[CapabilityVideo], p)
	}
	for p := range r.ttsProviders {
		result[CapabilityTTS] = append(result[CapabilityTTS], p)
	}
	for p := range r.analysisProviders {
		result[CapabilityAnalysis] = append(result[CapabilityAnalysis], p)
	}
	for _, ps := range result {
		sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	}
	return result
}

// HasCapability checks if a capability is available for any provider.
func (r *Router) HasCapability(c Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch c {
	case CapabilityImage:
		return len(r.imageProviders) > 0
	case CapabilityVideo:
		return len(r.videoProviders) > 0
	case CapabilityTTS:
		return len(r.ttsProviders) > 0
	case CapabilityAnalysis:
		return len(r.analysisProviders) > 0
	}
	return false
}

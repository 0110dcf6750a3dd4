package types

import (
	"strings"
)

// Modality selects which generation path a request takes.
type Modality string

const (
	ModalityImage      Modality = "IMAGE"
	ModalityVideo      Modality = "VIDEO"
	ModalityAudio      Modality = "AUDIO"
	ModalityAnalysis   Modality = "ANALYSIS"
	ModalityTranscribe Modality = "TRANSCRIBE"
)

// Valid reports whether m is one of the known modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityImage, ModalityVideo, ModalityAudio, ModalityAnalysis, ModalityTranscribe:
		return true
	}
	return false
}

// Mode selects how a backend uses the prompt and input images.
// An empty Mode lets the backend decide from the inputs.
type Mode string

const (
	// IMAGE
	ModeTextToImage Mode = "TEXT_TO_IMAGE"
	ModeEditImage   Mode = "EDIT_IMAGE"

	// VIDEO
	ModeTextToVideo       Mode = "TEXT_TO_VIDEO"
	ModeFramesToVideo     Mode = "FRAMES_TO_VIDEO"
	ModeReferencesToVideo Mode = "REFERENCES_TO_VIDEO"
)

// ValidFor reports whether m can be used with modality. Modalities without
// modes only accept the empty Mode.
func (m Mode) ValidFor(modality Modality) bool {
	if m == "" {
		return true
	}
	switch modality {
	case ModalityImage:
		return m == ModeTextToImage || m == ModeEditImage
	case ModalityVideo:
		return m == ModeTextToVideo || m == ModeFramesToVideo || m == ModeReferencesToVideo
	}
	return false
}

// AssetKind is the media type of an input asset.
type AssetKind string

const (
	AssetImage AssetKind = "IMAGE"
	AssetVideo AssetKind = "VIDEO"
	AssetAudio AssetKind = "AUDIO"
)

// Provider identifies the backend family that serves a request.
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderAlt    Provider = "ALT_PROVIDER"
)

// ResolveProvider maps a model identifier to its provider family.
// It is called once when a request is built.
func ResolveProvider(model string) Provider {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == "":
		return ProviderGoogle
	case strings.HasPrefix(m, "flux"), strings.HasPrefix(m, "gen4"), strings.HasPrefix(m, "gen3"),
		strings.HasPrefix(m, "runway"):
		return ProviderAlt
	default:
		return ProviderGoogle
	}
}

// Asset is one input media item supplied with a request.
// Exactly one of Data, DataURI or URL is expected to be set.
type Asset struct {
	Kind     AssetKind `json:"kind"`
	Data     []byte    `json:"data,omitempty"`
	DataURI  string    `json:"data_uri,omitempty"`
	URL      string    `json:"url,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
}

// IsRemote reports whether the asset is a reference that must be fetched.
func (a Asset) IsRemote() bool {
	return len(a.Data) == 0 && a.DataURI == "" && a.URL != ""
}

// NormalizedAsset is an input image in a form the service accepts.
type NormalizedAsset struct {
	RawBytes []byte
	MimeType string
	Base64   string
}

// GenerationRequest is the immutable description of one user request.
type GenerationRequest struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Modality     Modality `json:"modality"`
	Model        string   `json:"model,omitempty"`
	Provider     Provider `json:"provider"`
	InputAssets  []Asset  `json:"input_assets,omitempty"`
	VariantCount int      `json:"variant_count"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
	Mode         Mode     `json:"mode,omitempty"`
	Voice        string   `json:"voice,omitempty"`
}

// Clone returns a copy whose asset slice can be modified independently.
func (r *GenerationRequest) Clone() *GenerationRequest {
	c := *r
	c.InputAssets = append([]Asset(nil), r.InputAssets...)
	return &c
}

// FirstAsset returns the first input asset of the given kind.
func (r *GenerationRequest) FirstAsset(kind AssetKind) (Asset, bool) {
	for _, a := range r.InputAssets {
		if a.Kind == kind {
			return a, true
		}
	}
	return Asset{}, false
}

// Artifact is one finished media item.
type Artifact struct {
	URI        string            `json:"uri,omitempty"`
	Data       []byte            `json:"data,omitempty"`
	MimeType   string            `json:"mime_type,omitempty"`
	Text       string            `json:"text,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IsFallback bool              `json:"is_fallback"`
}

// GenerationResult is handed back to the caller; the orchestrator keeps no reference to it.
type GenerationResult struct {
	RequestID    string     `json:"request_id"`
	Primary      Artifact   `json:"primary"`
	Artifacts    []Artifact `json:"artifacts"`
	UsedFallback bool       `json:"used_fallback"`
}

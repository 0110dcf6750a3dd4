// Package multimodal provides media understanding and the provider registry
// used by the generation orchestrator.
package multimodal

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/mediaflow/llm/image"
	"github.com/BaSui01/mediaflow/types"
)

// Media is one embedded input item for analysis or transcription.
type Media struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// AnalyzeRequest asks the model to describe or answer a question about media.
type AnalyzeRequest struct {
	Prompt string  `json:"prompt"`
	Model  string  `json:"model,omitempty"`
	Media  []Media `json:"-"`
}

// TranscribeRequest asks for a verbatim transcript of audio or video.
type TranscribeRequest struct {
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"` // 可选提示，例如语言或术语
	Media    Media  `json:"-"`
	Language string `json:"language,omitempty"`
}

// TextResponse is the textual result of Analyze or Transcribe.
type TextResponse struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Analyzer understands embedded media.
type Analyzer interface {
	Analyze(ctx context.Context, req *AnalyzeRequest) (*TextResponse, error)
	Transcribe(ctx context.Context, req *TranscribeRequest) (*TextResponse, error)
	Name() string
}

// MediaFromAsset converts an embedded asset. Remote references are rejected
// with an INVALID_REQUEST error naming purpose ("analysis", "transcription");
// the service is never asked to fetch media on our behalf.
func MediaFromAsset(a types.Asset, purpose string) (Media, error) {
	switch {
	case len(a.Data) > 0:
		return Media{Data: a.Data, MimeType: a.MimeType}, nil
	case a.DataURI != "":
		data, mime, err := image.ParseDataURI(a.DataURI)
		if err != nil {
			return Media{}, types.NewInvalidRequestError("invalid embedded media: %v", err)
		}
		if a.MimeType != "" {
			mime = a.MimeType
		}
		return Media{Data: data, MimeType: mime}, nil
	case a.URL != "":
		return Media{}, types.NewInvalidRequestError(
			"remote reference inputs are not supported for %s; embed the media instead", purpose).
			WithCause(ErrRemoteReference)
	default:
		return Media{}, types.NewInvalidRequestError("input asset has no content")
	}
}

// ErrRemoteReference is the cause of every rejected URL-only input.
var ErrRemoteReference = errors.New("remote reference input")

// Package video provides asynchronous video generation providers.
package video

import (
	"context"
	"time"

	"github.com/BaSui01/mediaflow/types"
)

// OperationStatus is the coarse state of a long-running generation job.
type OperationStatus string

const (
	StatusRunning OperationStatus = "RUNNING"
	StatusDone    OperationStatus = "DONE"
	StatusFailed  OperationStatus = "FAILED"
)

// GenerateRequest represents a video generation request.
type GenerateRequest struct {
	Prompt         string                 `json:"prompt"`
	NegativePrompt string                 `json:"negative_prompt,omitempty"`
	Model          string                 `json:"model,omitempty"`
	Duration       int                    `json:"duration,omitempty"`     // seconds
	AspectRatio    string                 `json:"aspect_ratio,omitempty"` // 16:9, 9:16, 1:1
	Resolution     string                 `json:"resolution,omitempty"`   // 720p, 1080p
	Seed           int64                  `json:"seed,omitempty"`
	Mode           types.Mode             `json:"mode,omitempty"`
	Image          *types.NormalizedAsset `json:"-"` // image-to-video 起始帧
	Metadata       map[string]string      `json:"metadata,omitempty"`
}

// VideoData represents a generated video.
type VideoData struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// Operation is an opaque handle to a provider job. Only the provider that
// created it can refresh it.
type Operation struct {
	ID        string
	Provider  string
	Model     string
	Status    OperationStatus
	Videos    []VideoData
	Error     string
	StartedAt time.Time

	// provider-specific state
	handle any
}

// Terminal reports whether the operation reached DONE or FAILED.
func (op *Operation) Terminal() bool {
	return op.Status == StatusDone || op.Status == StatusFailed
}

// inputFrame 按 Mode 返回要发送的输入图；TEXT_TO_VIDEO 不发送
func inputFrame(req *GenerateRequest) (*types.NormalizedAsset, error) {
	switch req.Mode {
	case types.ModeTextToVideo:
		return nil, nil
	case types.ModeFramesToVideo, types.ModeReferencesToVideo:
		if req.Image == nil {
			return nil, types.NewInvalidRequestError("mode %s needs an input image", req.Mode)
		}
	}
	return req.Image, nil
}

// Provider starts video jobs and reports their progress.
type Provider interface {
	// Start submits a generation job and returns its handle.
	Start(ctx context.Context, req *GenerateRequest) (*Operation, error)

	// Query refreshes the job state. It never blocks waiting for completion.
	Query(ctx context.Context, op *Operation) (*Operation, error)

	// Name returns the provider name.
	Name() string
}

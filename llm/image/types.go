// 包图像提供统一的图像生成提供者接口.
package image

import (
	"context"
	"time"

	"github.com/BaSui01/mediaflow/types"
)

// 生成请求代表单张图像生成请求 。
type GenerateRequest struct {
	Prompt         string                  `json:"prompt"`
	NegativePrompt string                  `json:"negative_prompt,omitempty"`
	Model          string                  `json:"model,omitempty"`
	AspectRatio    string                  `json:"aspect_ratio,omitempty"` // 1:1, 16:9, 9:16 ...
	Resolution     string                  `json:"resolution,omitempty"`   // 1K, 2K
	Seed           int64                   `json:"seed,omitempty"`
	Mode           types.Mode              `json:"mode,omitempty"`
	References     []types.NormalizedAsset `json:"-"` // reference images, already normalized
	Metadata       map[string]string       `json:"metadata,omitempty"`
}

// 生成响应(Generate Response)代表图像生成的响应.
type GenerateResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Images    []ImageData `json:"images"`
	CreatedAt time.Time   `json:"created_at"`
}

// ImageData代表生成的图像.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	Data          []byte `json:"-"`
	MimeType      string `json:"mime_type,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Seed          int64  `json:"seed,omitempty"`
}

// 提供方定义了图像生成提供者接口.
// Generate is synchronous from the caller's point of view.
type Provider interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// 名称返回提供者名称 。
	Name() string
}

// referencesFor 按 Mode 决定实际发送的参考图
func referencesFor(req *GenerateRequest) ([]types.NormalizedAsset, error) {
	switch req.Mode {
	case types.ModeTextToImage:
		return nil, nil
	case types.ModeEditImage:
		if len(req.References) == 0 {
			return nil, types.NewInvalidRequestError("mode %s needs a reference image", req.Mode)
		}
	}
	return req.References, nil
}

package api

import (
	"time"

	"github.com/BaSui01/mediaflow/internal/history"
	"github.com/BaSui01/mediaflow/types"
)

// =============================================================================
// 生成任务类型
// =============================================================================

// CreateGenerationRequest 表示提交生成任务的请求体。
// @Description 生成任务请求结构
type CreateGenerationRequest struct {
	// 提示词（TRANSCRIBE 可为空）
	Prompt string `json:"prompt" example:"a lighthouse at dusk"`
	// IMAGE、VIDEO、AUDIO、ANALYSIS 或 TRANSCRIBE
	Modality types.Modality `json:"modality" example:"IMAGE"`
	// 模型名称，为空时使用后端默认模型
	Model string `json:"model,omitempty" example:"gemini-2.5-flash-image"`
	// 后端，为空时按模型名推断
	Provider types.Provider `json:"provider,omitempty" example:"GOOGLE"`
	// 输入素材
	InputAssets []types.Asset `json:"input_assets,omitempty"`
	// 变体数量（1-4），0 视为 1
	VariantCount int `json:"variant_count,omitempty" example:"2"`
	// 宽高比
	AspectRatio string `json:"aspect_ratio,omitempty" example:"16:9"`
	// 分辨率
	Resolution string `json:"resolution,omitempty" example:"1080p"`
	// 生成模式
	Mode types.Mode `json:"mode,omitempty"`
	// 语音名称（AUDIO）
	Voice string `json:"voice,omitempty" example:"Kore"`
}

// ToDomain 转换为编排层请求，补全默认值
func (r *CreateGenerationRequest) ToDomain(id string) *types.GenerationRequest {
	req := &types.GenerationRequest{
		ID:           id,
		Prompt:       r.Prompt,
		Modality:     r.Modality,
		Model:        r.Model,
		Provider:     r.Provider,
		InputAssets:  r.InputAssets,
		VariantCount: r.VariantCount,
		AspectRatio:  r.AspectRatio,
		Resolution:   r.Resolution,
		Mode:         r.Mode,
		Voice:        r.Voice,
	}
	if req.VariantCount == 0 {
		req.VariantCount = 1
	}
	if req.Provider == "" {
		req.Provider = types.ResolveProvider(req.Model)
	}
	return req
}

// GenerationJob 表示一个生成任务的当前状态。
// @Description 生成任务状态结构
type GenerationJob struct {
	// 任务 ID
	ID string `json:"id" example:"4f9c1f0e-8d0a-4c61-9d43-6b1f2e7f3a10"`
	// PENDING、RUNNING、SUCCEEDED 或 FAILED
	Status       history.Status `json:"status" example:"PENDING"`
	Modality     types.Modality `json:"modality" example:"VIDEO"`
	Provider     types.Provider `json:"provider" example:"GOOGLE"`
	Model        string         `json:"model,omitempty"`
	VariantCount int            `json:"variant_count"`
	// 是否以图片降级交付
	UsedFallback bool `json:"used_fallback"`
	// 失败原因
	Error *JobError `json:"error,omitempty"`
	// 成功结果
	Result      *types.GenerationResult `json:"result,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// JobError 任务失败信息
type JobError struct {
	Code    string `json:"code" example:"FALLBACK_FAILED"`
	Message string `json:"message"`
}

// GenerationJobList 任务列表
type GenerationJobList struct {
	Items []GenerationJob `json:"items"`
	Count int             `json:"count"`
}

// JobFromRecord 由持久化记录构造任务视图
func JobFromRecord(rec *history.Record) (GenerationJob, error) {
	job := GenerationJob{
		ID:           rec.ID,
		Status:       rec.Status,
		Modality:     types.Modality(rec.Modality),
		Provider:     types.Provider(rec.Provider),
		Model:        rec.Model,
		VariantCount: rec.VariantCount,
		UsedFallback: rec.UsedFallback,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		CompletedAt:  rec.CompletedAt,
	}
	if rec.Status == history.StatusFailed {
		job.Error = &JobError{Code: rec.ErrorCode, Message: rec.ErrorMessage}
	}
	result, err := rec.DecodeResult()
	if err != nil {
		return job, err
	}
	job.Result = result
	return job, nil
}

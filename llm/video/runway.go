package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
)

// Runway Provider执行视频生成,使用Runway ML Gen-4.
// API 文件: https://docs.dev.runwayml.com/api/
type RunwayProvider struct {
	cfg    RunwayConfig
	client *http.Client
}

// NewRunway Provider创建了新的跑道视频提供商.
func NewRunwayProvider(cfg RunwayConfig) *RunwayProvider {
	defaults := DefaultRunwayConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		// 可用: gen4_turbo, gen3a_turbo
		cfg.Model = defaults.Model
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &RunwayProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func (p *RunwayProvider) WithHTTPClient(c *http.Client) *RunwayProvider {
	p.client = c
	return p
}

func (p *RunwayProvider) Name() string { return "runway" }

type runwayRequest struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"` // HTTPS URL or data URI
	Ratio       string `json:"ratio,omitempty"`       // e.g., "1280:720", "720:1280"
	Duration    int    `json:"duration,omitempty"`    // 5 or 10 seconds
	Seed        int64  `json:"seed,omitempty"`
}

type runwayTask struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"` // PENDING, THROTTLED, RUNNING, SUCCEEDED, FAILED, CANCELLED
	Output      []string `json:"output,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	FailureCode string   `json:"failureCode,omitempty"`
}

// Start submits a task.
// 终点: POST /v1/image_to_video (有起始帧) 或 /v1/text_to_video
// Auth: Bearer 令牌 + X-Runway-Version 信头
func (p *RunwayProvider) Start(ctx context.Context, req *GenerateRequest) (*Operation, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	duration := req.Duration
	if duration <= 5 {
		duration = 5
	} else {
		duration = 10
	}

	body := runwayRequest{
		Model:      model,
		PromptText: req.Prompt,
		Ratio:      runwayRatio(req.AspectRatio),
		Duration:   duration,
		Seed:       req.Seed,
	}
	if req.Mode == types.ModeReferencesToVideo {
		return nil, types.NewInvalidRequestError("runway does not support mode %s", req.Mode)
	}
	frame, err := inputFrame(req)
	if err != nil {
		return nil, err
	}
	path := "/v1/text_to_video"
	if frame != nil {
		body.PromptImage = fmt.Sprintf("data:%s;base64,%s", frame.MimeType, frame.Base64)
		path = "/v1/image_to_video"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode runway request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var task runwayTask
	if err := p.do(httpReq, &task); err != nil {
		return nil, err
	}

	op := &Operation{
		ID:        task.ID,
		Provider:  p.Name(),
		Model:     model,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	return op, nil
}

// Query fetches GET /v1/tasks/{id}.
func (p *RunwayProvider) Query(ctx context.Context, op *Operation) (*Operation, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/tasks/%s", p.cfg.BaseURL, op.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var task runwayTask
	if err := p.do(httpReq, &task); err != nil {
		return nil, err
	}

	next := *op
	switch task.Status {
	case "SUCCEEDED":
		next.Status = StatusDone
		next.Videos = make([]VideoData, 0, len(task.Output))
		for _, url := range task.Output {
			next.Videos = append(next.Videos, VideoData{URL: url, MimeType: "video/mp4"})
		}
	case "FAILED", "CANCELLED":
		next.Status = StatusFailed
		next.Error = task.Failure
		if next.Error == "" {
			next.Error = strings.ToLower(task.Status)
		}
	default:
		// PENDING, THROTTLED, RUNNING
		next.Status = StatusRunning
	}
	return &next, nil
}

func (p *RunwayProvider) do(httpReq *http.Request, out any) error {
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("X-Runway-Version", p.cfg.Version)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("runway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.NewUpstreamError(p.Name(), resp.StatusCode, string(errBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode runway response: %w", err)
	}
	return nil
}

// 转换宽比格式
func runwayRatio(aspect string) string {
	switch aspect {
	case "", "16:9":
		return "1280:720"
	case "9:16":
		return "720:1280"
	case "1:1":
		return "960:960"
	default:
		return aspect
	}
}

var _ Provider = (*RunwayProvider)(nil)

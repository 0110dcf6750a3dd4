package image

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

// FluxProvider implements image generation using Black Forest Labs Flux.
// The service is asynchronous; Generate submits and polls internally so the
// provider stays synchronous for callers.
// API Docs: https://docs.bfl.ai/quick_start/generating_images
type FluxProvider struct {
	cfg    FluxConfig
	client *http.Client
}

// NewFluxProvider creates a new Flux image provider.
func NewFluxProvider(cfg FluxConfig) *FluxProvider {
	defaults := DefaultFluxConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}

	return &FluxProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func (p *FluxProvider) WithHTTPClient(c *http.Client) *FluxProvider {
	p.client = c
	return p
}

func (p *FluxProvider) Name() string { return "flux" }

type fluxRequest struct {
	Prompt       string `json:"prompt"`
	InputImage   string `json:"input_image,omitempty"` // base64, kontext models
	AspectRatio  string `json:"aspect_ratio,omitempty"`
	Seed         int64  `json:"seed,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

type fluxResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PollingURL string `json:"polling_url,omitempty"`
	Result     struct {
		Sample string `json:"sample"` // Signed URL (valid 10 min)
	} `json:"result,omitempty"`
}

// Generate creates an image using Flux.
// Endpoint: POST /v1/{model}
// Auth: x-key header
func (p *FluxProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := fluxRequest{
		Prompt:       req.Prompt,
		AspectRatio:  req.AspectRatio,
		Seed:         req.Seed,
		OutputFormat: "png",
	}
	if body.AspectRatio == "" {
		body.AspectRatio = "1:1"
	}
	refs, err := referencesFor(req)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		body.InputImage = refs[0].Base64
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flux request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/%s", strings.TrimRight(p.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("accept", "application/json")

	fResp, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}

	if fResp.Status != "Ready" {
		pollingURL := fResp.PollingURL
		if pollingURL == "" {
			pollingURL = fmt.Sprintf("%s/v1/get_result?id=%s", strings.TrimRight(p.cfg.BaseURL, "/"), fResp.ID)
		}
		if fResp, err = p.pollResult(ctx, pollingURL); err != nil {
			return nil, err
		}
	}

	return &GenerateResponse{
		Provider: p.Name(),
		Model:    model,
		Images: []ImageData{{
			URL:  fResp.Result.Sample,
			Seed: req.Seed,
		}},
		CreatedAt: time.Now(),
	}, nil
}

func (p *FluxProvider) do(httpReq *http.Request) (*fluxResponse, error) {
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("flux request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewUpstreamError(p.Name(), resp.StatusCode, string(errBody))
	}

	var fResp fluxResponse
	if err := json.NewDecoder(resp.Body).Decode(&fResp); err != nil {
		return nil, fmt.Errorf("failed to decode flux response: %w", err)
	}
	return &fResp, nil
}

// pollResult polls the polling URL until the task is ready or failed.
// The overall wait is bounded by the caller's context.
func (p *FluxProvider) pollResult(ctx context.Context, pollingURL string) (*fluxResponse, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pollingURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("x-key", p.cfg.APIKey)
		httpReq.Header.Set("accept", "application/json")

		fResp, err := p.do(httpReq)
		if err != nil {
			return nil, err
		}

		switch fResp.Status {
		case "Ready":
			return fResp, nil
		case "Error", "Failed", "Content Moderated", "Request Moderated":
			return nil, types.NewOperationError(fResp.ID, strings.ToLower(fResp.Status))
		}
		// Pending, Processing: keep polling
	}
}

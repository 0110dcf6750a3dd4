package generation

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/internal/pool"
	"github.com/BaSui01/mediaflow/llm/image"
	"github.com/BaSui01/mediaflow/llm/multimodal"
	"github.com/BaSui01/mediaflow/llm/retry"
	"github.com/BaSui01/mediaflow/llm/speech"
	"github.com/BaSui01/mediaflow/llm/video"
	"github.com/BaSui01/mediaflow/types"
)

type harness struct {
	orch     *Orchestrator
	images   *fakeImage
	videos   *fakeVideo
	tts      *fakeSynth
	analyzer *fakeAnalyzer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		images:   &fakeImage{},
		videos:   &fakeVideo{},
		tts:      &fakeSynth{},
		analyzer: &fakeAnalyzer{},
	}
	router := multimodal.NewRouter()
	router.RegisterImage(types.ProviderGoogle, h.images)
	router.RegisterVideo(types.ProviderGoogle, h.videos)
	router.RegisterTTS(types.ProviderGoogle, h.tts)
	router.RegisterAnalyzer(types.ProviderGoogle, h.analyzer)

	cfg := Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Poll:        PollerConfig{Interval: time.Millisecond, MaxWait: time.Second},
	}
	h.orch = New(cfg, router, nil, pool.NewBranchPool(pool.DefaultBranchPoolConfig()), nil, zap.NewNop())
	return h
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *types.GenerationRequest
		wantErr bool
	}{
		{"nil", nil, true},
		{"unknown modality", &types.GenerationRequest{Prompt: "x", Modality: "SCULPTURE", VariantCount: 1}, true},
		{"zero variants", &types.GenerationRequest{Prompt: "x", Modality: types.ModalityImage}, true},
		{"too many variants", &types.GenerationRequest{Prompt: "x", Modality: types.ModalityImage, VariantCount: 5}, true},
		{"empty prompt", &types.GenerationRequest{Modality: types.ModalityVideo, VariantCount: 1}, true},
		{"transcribe without prompt", &types.GenerationRequest{Modality: types.ModalityTranscribe, VariantCount: 1}, false},
		{"four variants", &types.GenerationRequest{Prompt: "x", Modality: types.ModalityImage, VariantCount: 4}, false},
		{"video mode on image", &types.GenerationRequest{Prompt: "x", Modality: types.ModalityImage, VariantCount: 1, Mode: types.ModeFramesToVideo}, true},
		{"mode on audio", &types.GenerationRequest{Prompt: "x", Modality: types.ModalityAudio, VariantCount: 1, Mode: types.ModeEditImage}, true},
		{"frames mode on video", &types.GenerationRequest{Prompt: "x", Modality: types.ModalityVideo, VariantCount: 1, Mode: types.ModeFramesToVideo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSubmit_ImageVariants(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		ID: "img", Prompt: "a red kite", Modality: types.ModalityImage,
		Provider: types.ProviderGoogle, VariantCount: 3,
	})
	require.NoError(t, err)
	assert.Len(t, res.Artifacts, 3)
	assert.Equal(t, res.Artifacts[0], res.Primary)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 3, h.images.calls())
}

func TestSubmit_ImageAllFail(t *testing.T) {
	h := newHarness(t)
	h.images.generate = func(call int, req *image.GenerateRequest) (*image.GenerateResponse, error) {
		return nil, types.NewInvalidRequestError("prompt rejected")
	}

	_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		ID: "img", Prompt: "x", Modality: types.ModalityImage,
		Provider: types.ProviderGoogle, VariantCount: 2,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
	assert.True(t, types.IsErrorCode(err, types.ErrAggregateFailure))
	// 致命错误不重试
	assert.Equal(t, 2, h.images.calls())
	assert.Equal(t, int32(0), h.videos.starts.Load())
}

func TestSubmit_UnregisteredProvider(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		Prompt: "x", Modality: types.ModalityImage, Provider: types.ProviderAlt, VariantCount: 1,
	})
	assert.Equal(t, types.ErrProviderUnavailable, types.GetErrorCode(err))
}

func TestSubmit_VideoOneBranchRecovers(t *testing.T) {
	h := newHarness(t)
	// 第一次 Start 过载，其余成功
	h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
		if n == 1 {
			return nil, overloaded()
		}
		return &video.Operation{ID: "op", Provider: "fake-video", Status: video.StatusRunning}, nil
	}

	res, err := h.orch.Submit(context.Background(), videoRequest())
	require.NoError(t, err)
	assert.Len(t, res.Artifacts, 2)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, int32(3), h.videos.starts.Load())
	assert.Equal(t, 0, h.images.calls())
	assert.Equal(t, "video/mp4", res.Primary.MimeType)
}

func TestSubmit_VideoPartialSuccessSkipsFallback(t *testing.T) {
	h := newHarness(t)
	// 一个分支致命失败，另一个成功
	h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
		if n == 1 {
			return nil, types.NewInvalidRequestError("bad seed")
		}
		return &video.Operation{ID: "op", Status: video.StatusRunning}, nil
	}

	res, err := h.orch.Submit(context.Background(), videoRequest())
	require.NoError(t, err)
	assert.Len(t, res.Artifacts, 1)
	assert.False(t, res.UsedFallback)
	assert.False(t, res.Primary.IsFallback)
	assert.Equal(t, int32(2), h.videos.starts.Load())
	assert.Equal(t, 0, h.images.calls())
}

func TestSubmit_VideoFallsBackToImage(t *testing.T) {
	h := newHarness(t)
	h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
		return nil, overloaded()
	}

	req := videoRequest()
	res, err := h.orch.Submit(context.Background(), req)
	require.NoError(t, err)

	// 2 branches x 3 attempts
	assert.Equal(t, int32(6), h.videos.starts.Load())
	require.Equal(t, 1, h.images.calls())
	assert.True(t, res.UsedFallback)
	require.Len(t, res.Artifacts, 1)
	assert.True(t, res.Primary.IsFallback)
	assert.Equal(t, string(types.ErrAggregateFailure), res.Primary.Metadata["fallback_reason"])

	got := h.images.last()
	assert.Equal(t, "Cinematic still frame, a fox running through snow", got.Prompt)
	assert.Empty(t, got.Model)
	require.Len(t, got.References, 1)
	assert.Equal(t, req.InputAssets[0].Data, got.References[0].RawBytes)
	assert.Equal(t, "image/png", got.References[0].MimeType)
}

func TestSubmit_VideoSingleVariantFallsBack(t *testing.T) {
	h := newHarness(t)
	h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
		return nil, overloaded()
	}

	req := videoRequest()
	req.VariantCount = 1
	res, err := h.orch.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(3), h.videos.starts.Load())
	require.Equal(t, 1, h.images.calls())
	assert.True(t, res.UsedFallback)
	require.Len(t, res.Artifacts, 1)
	assert.True(t, res.Primary.IsFallback)
	require.Len(t, h.images.last().References, 1)
	assert.Equal(t, req.InputAssets[0].Data, h.images.last().References[0].RawBytes)
}

func TestSubmit_VideoOneBranchExhaustsRetries(t *testing.T) {
	h := newHarness(t)
	// variant 1 每次都过载，variant 0 一次成功
	h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
		if req.Metadata["variant"] == "1" {
			return nil, overloaded()
		}
		return &video.Operation{ID: "op-0", Provider: "fake-video", Status: video.StatusRunning}, nil
	}

	res, err := h.orch.Submit(context.Background(), videoRequest())
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "https://vid/op-0.mp4", res.Primary.URI)
	assert.False(t, res.UsedFallback)
	assert.False(t, res.Primary.IsFallback)
	assert.Equal(t, 0, h.images.calls())
	// 1 + 3 attempts
	assert.Equal(t, int32(4), h.videos.starts.Load())
}

func TestSubmit_ForwardsMode(t *testing.T) {
	t.Run("image", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
			ID: "img", Prompt: "make it blue", Modality: types.ModalityImage, Provider: types.ProviderGoogle,
			VariantCount: 2, Mode: types.ModeEditImage,
			InputAssets: []types.Asset{{Kind: types.AssetImage, Data: []byte("\x89PNG\r\n\x1a\nfake"), MimeType: "image/png"}},
		})
		require.NoError(t, err)
		require.Equal(t, 2, h.images.calls())
		assert.Equal(t, types.ModeEditImage, h.images.last().Mode)
		assert.Equal(t, "img", h.images.last().Metadata["generation_id"])
	})

	t.Run("video", func(t *testing.T) {
		h := newHarness(t)
		req := videoRequest()
		req.Mode = types.ModeFramesToVideo
		_, err := h.orch.Submit(context.Background(), req)
		require.NoError(t, err)

		starts := h.videos.startRequests()
		require.Len(t, starts, 2)
		variants := map[string]bool{}
		for _, r := range starts {
			assert.Equal(t, types.ModeFramesToVideo, r.Mode)
			require.NotNil(t, r.Image)
			variants[r.Metadata["variant"]] = true
		}
		assert.Equal(t, map[string]bool{"0": true, "1": true}, variants)
	})

	t.Run("fallback", func(t *testing.T) {
		h := newHarness(t)
		h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
			return nil, types.NewInvalidRequestError("rejected")
		}
		req := videoRequest()
		req.Mode = types.ModeFramesToVideo
		res, err := h.orch.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.UsedFallback)
		assert.Equal(t, types.ModeEditImage, h.images.last().Mode)
	})
}

func TestSubmit_VideoPollFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.videos.query = func(op *video.Operation) (*video.Operation, error) {
		next := *op
		next.Status = video.StatusFailed
		next.Error = "blocked"
		return &next, nil
	}

	res, err := h.orch.Submit(context.Background(), videoRequest())
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	// operation failures are not retried
	assert.Equal(t, int32(2), h.videos.starts.Load())
}

func TestSubmit_VideoAndFallbackFail(t *testing.T) {
	h := newHarness(t)
	h.videos.start = func(n int32, req *video.GenerateRequest) (*video.Operation, error) {
		return nil, types.NewError(types.ErrQuotaExceeded, "quota").WithHTTPStatus(403)
	}
	h.images.generate = func(call int, req *image.GenerateRequest) (*image.GenerateResponse, error) {
		return nil, types.NewError(types.ErrContentFiltered, "filtered")
	}

	_, err := h.orch.Submit(context.Background(), videoRequest())
	var ce *CombinedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, types.ErrAggregateFailure, types.GetErrorCode(ce.Primary))
	assert.True(t, types.IsErrorCode(ce.Fallback, types.ErrContentFiltered))
	assert.Equal(t, 1, h.images.calls())
	assert.Equal(t, string(types.ErrFallbackFailed), StatusLabel(err))
}

func TestSubmit_VideoCancelledSkipsFallback(t *testing.T) {
	h := newHarness(t)
	h.videos.query = func(op *video.Operation) (*video.Operation, error) {
		next := *op
		return &next, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.orch.Submit(ctx, videoRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrAggregateFailure, types.GetErrorCode(err))
	assert.Equal(t, 0, h.images.calls())
}

func TestSubmit_AudioProducesWAV(t *testing.T) {
	h := newHarness(t)
	h.tts.fail = 1

	res, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		ID: "tts", Prompt: "hello", Modality: types.ModalityAudio,
		Provider: types.ProviderGoogle, VariantCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.tts.calls)

	wav := res.Primary.Data
	assert.Equal(t, "audio/wav", res.Primary.MimeType)
	require.Len(t, wav, speech.WAVHeaderSize+6)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, wav[44:])
	assert.Equal(t, "24000", res.Primary.Metadata["sample_rate"])
}

func TestSubmit_AudioRetryExhausted(t *testing.T) {
	h := newHarness(t)
	h.tts.fail = 10

	_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		Prompt: "hello", Modality: types.ModalityAudio, Provider: types.ProviderGoogle, VariantCount: 1,
	})
	var re *retry.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Attempts)
	assert.Len(t, re.Delays, 2)
	assert.Equal(t, 3, h.tts.calls)
}

func TestSubmit_AnalysisRejectsRemoteReference(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		Prompt: "describe", Modality: types.ModalityAnalysis, Provider: types.ProviderGoogle, VariantCount: 1,
		InputAssets: []types.Asset{{Kind: types.AssetImage, URL: "https://example.com/cat.jpg"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, multimodal.ErrRemoteReference)
	assert.Contains(t, err.Error(), "not supported for analysis")
	assert.Equal(t, 0, h.analyzer.analyzeCalls)
}

func TestSubmit_Analysis(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
		Prompt: "describe", Modality: types.ModalityAnalysis, Provider: types.ProviderGoogle, VariantCount: 1,
		InputAssets: []types.Asset{{Kind: types.AssetImage, DataURI: "data:image/png;base64,iVBORw0KGgo="}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a description", res.Primary.Text)
	assert.Equal(t, "text/plain", res.Primary.MimeType)
	require.Len(t, h.analyzer.lastMedia, 1)
	assert.Equal(t, "image/png", h.analyzer.lastMedia[0].MimeType)
}

func TestSubmit_Transcribe(t *testing.T) {
	h := newHarness(t)

	t.Run("requires audio or video", func(t *testing.T) {
		_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
			Modality: types.ModalityTranscribe, Provider: types.ProviderGoogle, VariantCount: 1,
			InputAssets: []types.Asset{{Kind: types.AssetImage, Data: []byte{1}, MimeType: "image/png"}},
		})
		assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		assert.Equal(t, 0, h.analyzer.transcribeCalls)
	})

	t.Run("remote reference", func(t *testing.T) {
		_, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
			Modality: types.ModalityTranscribe, Provider: types.ProviderGoogle, VariantCount: 1,
			InputAssets: []types.Asset{{Kind: types.AssetAudio, URL: "https://example.com/a.mp3"}},
		})
		assert.ErrorIs(t, err, multimodal.ErrRemoteReference)
		assert.Contains(t, err.Error(), "not supported for transcription")
		assert.Equal(t, 0, h.analyzer.transcribeCalls)
	})

	t.Run("audio", func(t *testing.T) {
		res, err := h.orch.Submit(context.Background(), &types.GenerationRequest{
			Modality: types.ModalityTranscribe, Provider: types.ProviderGoogle, VariantCount: 1,
			InputAssets: []types.Asset{
				{Kind: types.AssetImage, Data: []byte{9}, MimeType: "image/png"},
				{Kind: types.AssetAudio, Data: []byte{1, 2, 3}, MimeType: "audio/mpeg"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello there", res.Primary.Text)
		require.Len(t, h.analyzer.lastMedia, 1)
		assert.Equal(t, "audio/mpeg", h.analyzer.lastMedia[0].MimeType)
	})
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 502, HTTPStatus(nil))
	assert.Equal(t, 504, HTTPStatus(context.DeadlineExceeded))
	assert.Equal(t, 503, HTTPStatus(overloaded()))
	assert.Equal(t, 400, HTTPStatus(types.NewConversionError("bad", nil)))
	assert.Equal(t, 502, HTTPStatus(errors.New("other")))
}

package generation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/mediaflow/llm/image"
	"github.com/BaSui01/mediaflow/llm/multimodal"
	"github.com/BaSui01/mediaflow/llm/speech"
	"github.com/BaSui01/mediaflow/llm/video"
	"github.com/BaSui01/mediaflow/types"
)

func overloaded() error {
	return types.NewError(types.ErrModelOverloaded, "model is overloaded").WithHTTPStatus(503)
}

type fakeImage struct {
	mu       sync.Mutex
	requests []*image.GenerateRequest
	generate func(call int, req *image.GenerateRequest) (*image.GenerateResponse, error)
}

func (f *fakeImage) Name() string { return "fake-image" }

func (f *fakeImage) Generate(_ context.Context, req *image.GenerateRequest) (*image.GenerateResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()
	if f.generate != nil {
		return f.generate(call, req)
	}
	return &image.GenerateResponse{
		Provider: f.Name(),
		Model:    "fake",
		Images:   []image.ImageData{{URL: fmt.Sprintf("https://img/%d.png", call), MimeType: "image/png"}},
	}, nil
}

func (f *fakeImage) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeImage) last() *image.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakeVideo serves operations whose behavior is chosen per start call.
type fakeVideo struct {
	starts   atomic.Int32
	mu       sync.Mutex
	requests []*video.GenerateRequest
	// start decides the outcome of the n-th Start call (1-based).
	start func(n int32, req *video.GenerateRequest) (*video.Operation, error)
	// query refreshes an operation.
	query func(op *video.Operation) (*video.Operation, error)
}

func (f *fakeVideo) Name() string { return "fake-video" }

func (f *fakeVideo) Start(_ context.Context, req *video.GenerateRequest) (*video.Operation, error) {
	n := f.starts.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.start != nil {
		return f.start(n, req)
	}
	return &video.Operation{ID: fmt.Sprintf("op-%d", n), Provider: f.Name(), Status: video.StatusRunning}, nil
}

func (f *fakeVideo) Query(_ context.Context, op *video.Operation) (*video.Operation, error) {
	if f.query != nil {
		return f.query(op)
	}
	next := *op
	next.Status = video.StatusDone
	next.Videos = []video.VideoData{{URL: "https://vid/" + op.ID + ".mp4", MimeType: "video/mp4"}}
	return &next, nil
}

func (f *fakeVideo) startRequests() []*video.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*video.GenerateRequest(nil), f.requests...)
}

type fakeSynth struct {
	fail  int // number of leading overloaded failures
	calls int
}

func (f *fakeSynth) Name() string { return "fake-tts" }

func (f *fakeSynth) Synthesize(_ context.Context, req *speech.SynthesizeRequest) (*speech.SynthesizeResponse, error) {
	f.calls++
	if f.calls <= f.fail {
		return nil, overloaded()
	}
	return &speech.SynthesizeResponse{
		Provider:   f.Name(),
		Model:      "tts",
		Chunks:     [][]byte{{1, 0, 2, 0}, {3, 0}},
		SampleRate: 24000,
		CreatedAt:  time.Now(),
	}, nil
}

type fakeAnalyzer struct {
	analyzeCalls    int
	transcribeCalls int
	lastMedia       []multimodal.Media
}

func (f *fakeAnalyzer) Name() string { return "fake-analyzer" }

func (f *fakeAnalyzer) Analyze(_ context.Context, req *multimodal.AnalyzeRequest) (*multimodal.TextResponse, error) {
	f.analyzeCalls++
	f.lastMedia = req.Media
	return &multimodal.TextResponse{Provider: f.Name(), Model: "m", Text: "a description"}, nil
}

func (f *fakeAnalyzer) Transcribe(_ context.Context, req *multimodal.TranscribeRequest) (*multimodal.TextResponse, error) {
	f.transcribeCalls++
	f.lastMedia = []multimodal.Media{req.Media}
	return &multimodal.TextResponse{Provider: f.Name(), Model: "m", Text: "hello there"}, nil
}

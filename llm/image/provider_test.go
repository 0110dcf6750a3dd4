package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/types"
)

type fakeGeminiModels struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	imagen   *genai.GenerateImagesResponse

	imagenCalls int
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents, f.config = contents, config
	return f.resp, nil
}

func (f *fakeGeminiModels) GenerateImages(_ context.Context, _ string, _ string, _ *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.imagenCalls++
	return f.imagen, nil
}

func TestGeminiProvider_GenerateWithReferences(t *testing.T) {
	fake := &fakeGeminiModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{Text: "a red fox"},
			{InlineData: &genai.Blob{Data: []byte{0x89, 'P'}, MIMEType: "image/png"}},
		}}}},
	}}
	p := NewGeminiProvider(fake, GeminiConfig{})

	resp, err := p.Generate(context.Background(), &GenerateRequest{
		Prompt:      "fox",
		AspectRatio: "16:9",
		References:  []types.NormalizedAsset{{RawBytes: []byte{1}, MimeType: "image/jpeg"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "image/png", resp.Images[0].MimeType)
	assert.Equal(t, "a red fox", resp.Images[0].RevisedPrompt)
	assert.Equal(t, "gemini-2.5-flash-image", resp.Model)

	require.Len(t, fake.contents, 1)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, "fox", parts[1].Text)
	require.NotNil(t, fake.config.ImageConfig)
	assert.Equal(t, "16:9", fake.config.ImageConfig.AspectRatio)
}

func TestGeminiProvider_Imagen(t *testing.T) {
	fake := &fakeGeminiModels{imagen: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte{1, 2, 3}}}},
	}}
	p := NewGeminiProvider(fake, GeminiConfig{Model: "imagen-4.0-generate-001"})

	resp, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "tree"})
	require.NoError(t, err)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "image/png", resp.Images[0].MimeType)
}

func TestGeminiProvider_Mode(t *testing.T) {
	refs := []types.NormalizedAsset{{RawBytes: []byte{1}, MimeType: "image/png"}}

	t.Run("text to image ignores references", func(t *testing.T) {
		fake := &fakeGeminiModels{imagen: &genai.GenerateImagesResponse{
			GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte{1}}}},
		}}
		p := NewGeminiProvider(fake, GeminiConfig{Model: "imagen-4.0-generate-001"})

		_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "tree", Mode: types.ModeTextToImage, References: refs})
		require.NoError(t, err)
		assert.Equal(t, 1, fake.imagenCalls)
		assert.Nil(t, fake.contents)
	})

	t.Run("edit sends the reference", func(t *testing.T) {
		fake := &fakeGeminiModels{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: []byte{2}, MIMEType: "image/png"}},
			}}}},
		}}
		p := NewGeminiProvider(fake, GeminiConfig{})

		_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "make it blue", Mode: types.ModeEditImage, References: refs})
		require.NoError(t, err)
		require.Len(t, fake.contents, 1)
		assert.Len(t, fake.contents[0].Parts, 2)
	})

	t.Run("edit without reference", func(t *testing.T) {
		fake := &fakeGeminiModels{}
		p := NewGeminiProvider(fake, GeminiConfig{})

		_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "make it blue", Mode: types.ModeEditImage})
		assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		assert.Nil(t, fake.contents)
	})
}

func TestGeminiProvider_NoImage(t *testing.T) {
	fake := &fakeGeminiModels{resp: &genai.GenerateContentResponse{}}
	p := NewGeminiProvider(fake, GeminiConfig{})

	_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, types.ErrContentFiltered, types.GetErrorCode(err))
}

func TestFluxProvider_SubmitAndPoll(t *testing.T) {
	var srv *httptest.Server
	polls := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-key"))
		if r.Method == http.MethodPost {
			var body fluxRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ref64", body.InputImage)
			_ = json.NewEncoder(w).Encode(fluxResponse{ID: "f1", PollingURL: srv.URL + "/poll"})
			return
		}
		polls++
		status := "Pending"
		if polls > 1 {
			status = "Ready"
		}
		resp := fluxResponse{ID: "f1", Status: status}
		resp.Result.Sample = "https://cdn/f1.png"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewFluxProvider(FluxConfig{APIKey: "k", BaseURL: srv.URL, PollInterval: time.Millisecond}).WithHTTPClient(srv.Client())
	resp, err := p.Generate(context.Background(), &GenerateRequest{
		Prompt:     "city",
		References: []types.NormalizedAsset{{Base64: "ref64"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "https://cdn/f1.png", resp.Images[0].URL)
	assert.Equal(t, 2, polls)
}

func TestFluxProvider_TextToImageDropsReference(t *testing.T) {
	var got fluxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := fluxResponse{ID: "f3", Status: "Ready"}
		resp.Result.Sample = "https://cdn/f3.png"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewFluxProvider(FluxConfig{BaseURL: srv.URL}).WithHTTPClient(srv.Client())
	_, err := p.Generate(context.Background(), &GenerateRequest{
		Prompt:     "city",
		Mode:       types.ModeTextToImage,
		References: []types.NormalizedAsset{{Base64: "ref64"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "city", got.Prompt)
	assert.Empty(t, got.InputImage)
}

func TestFluxProvider_Moderated(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(fluxResponse{ID: "f2", PollingURL: srv.URL + "/poll"})
			return
		}
		_ = json.NewEncoder(w).Encode(fluxResponse{ID: "f2", Status: "Content Moderated"})
	}))
	defer srv.Close()

	p := NewFluxProvider(FluxConfig{BaseURL: srv.URL, PollInterval: time.Millisecond}).WithHTTPClient(srv.Client())
	_, err := p.Generate(context.Background(), &GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, types.ErrOperationFailed, types.GetErrorCode(err))
}

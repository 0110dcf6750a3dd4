package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
)

// passthroughMIME lists encodings the service accepts as-is.
var passthroughMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Normalizer turns arbitrary image inputs into (raw bytes, mime) pairs the
// generative service accepts. Already compliant embedded payloads pass
// through untouched; everything else is decoded and re-encoded as PNG.
type Normalizer struct {
	cfg    NormalizerConfig
	client *http.Client
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer. client is used for remote references.
func NewNormalizer(cfg NormalizerConfig, client *http.Client, logger *zap.Logger) *Normalizer {
	defaults := DefaultNormalizerConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaults.MaxBytes
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.FetchTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{cfg: cfg, client: client, logger: logger.With(zap.String("component", "normalizer"))}
}

// Normalize converts one input asset. Failures are *types.Error with code
// CONVERSION_FAILED and are never retried here.
func (n *Normalizer) Normalize(ctx context.Context, asset types.Asset) (*types.NormalizedAsset, error) {
	var (
		data     []byte
		mime     string
		embedded = true
		err      error
	)

	switch {
	case asset.DataURI != "":
		data, mime, err = ParseDataURI(asset.DataURI)
		if err != nil {
			return nil, types.NewConversionError("invalid embedded image payload", err)
		}
	case len(asset.Data) > 0:
		data, mime = asset.Data, asset.MimeType
	case asset.URL != "":
		embedded = false
		data, mime, err = n.fetch(ctx, asset.URL)
		if err != nil {
			return nil, types.NewConversionError("cannot fetch remote image reference", err)
		}
	default:
		return nil, types.NewConversionError("image asset has no content", nil)
	}

	if mime == "" {
		mime = http.DetectContentType(data)
	}
	mime = canonicalMIME(mime)

	if embedded && passthroughMIME[mime] {
		return newNormalized(data, mime), nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewConversionError(fmt.Sprintf("cannot decode %s image", mime), err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, types.NewConversionError("cannot encode png", err)
	}

	n.logger.Debug("image re-encoded",
		zap.String("from", format),
		zap.Int("in_bytes", len(data)),
		zap.Int("out_bytes", buf.Len()),
	)
	return newNormalized(buf.Bytes(), "image/png"), nil
}

// NormalizeAll normalizes every image asset in order; non-image assets are skipped.
func (n *Normalizer) NormalizeAll(ctx context.Context, assets []types.Asset) ([]types.NormalizedAsset, error) {
	var out []types.NormalizedAsset
	for i, a := range assets {
		if a.Kind != types.AssetImage {
			continue
		}
		na, err := n.Normalize(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("input asset %d: %w", i, err)
		}
		out = append(out, *na)
	}
	return out, nil
}

func (n *Normalizer) fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, n.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > n.cfg.MaxBytes {
		return nil, "", fmt.Errorf("remote image exceeds %d bytes", n.cfg.MaxBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ParseDataURI splits a base64 data URI into its payload and mime type.
func ParseDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("data uri has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("data uri is not base64 encoded")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

func canonicalMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "image/jpg" {
		return "image/jpeg"
	}
	return mime
}

func newNormalized(data []byte, mime string) *types.NormalizedAsset {
	return &types.NormalizedAsset{
		RawBytes: data,
		MimeType: mime,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}
}

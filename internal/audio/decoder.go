package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// Decoder produces mono samples for a resource at targetRate. A targetRate of zero keeps the native rate.
type Decoder interface {
	Decode(ctx context.Context, res models.AudioResource, targetRate int) (*Buffer, error)
}

// DecoderFunc adapts a function to [Decoder].
type DecoderFunc func(ctx context.Context, res models.AudioResource, targetRate int) (*Buffer, error)

func (f DecoderFunc) Decode(ctx context.Context, res models.AudioResource, targetRate int) (*Buffer, error) {
	return f(ctx, res, targetRate)
}

// ResourceDecoder reads WAV or MP3 audio from local files or HTTP(S) URLs.
type ResourceDecoder struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
}

// NewResourceDecoder creates a decoder that bounds remote fetches by cfg. A nil client uses [http.DefaultClient].
func NewResourceDecoder(cfg shared.FetchConfig, client *http.Client) *ResourceDecoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &ResourceDecoder{httpClient: client, timeout: cfg.Timeout, maxBytes: cfg.MaxBytes}
}

// Decode loads, parses and resamples res.
func (d *ResourceDecoder) Decode(ctx context.Context, res models.AudioResource, targetRate int) (*Buffer, error) {
	var (
		data []byte
		err  error
	)
	switch res.Type {
	case models.ResourceLocalFile:
		data, err = d.readFile(res.Path)
	case models.ResourceURL:
		data, err = d.fetch(ctx, res.URL)
	default:
		return nil, fmt.Errorf("%w: resource type %q", shared.ErrUnsupportedResource, res.Type)
	}
	if err != nil {
		return nil, err
	}

	buf, err := DecodeBytes(data, res.Location())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", res.Location(), err)
	}
	if targetRate > 0 && targetRate != buf.SampleRate {
		buf.Samples = Resample(buf.Samples, buf.SampleRate, targetRate)
		buf.SampleRate = targetRate
	}
	return buf, nil
}

// DecodeBytes picks the container from the leading magic bytes, falling back to the extension of name.
func DecodeBytes(data []byte, name string) (*Buffer, error) {
	switch {
	case isWAV(data):
		return DecodeWAV(data)
	case isMP3(data):
		return DecodeMP3(data)
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".wav", ".wave":
		return DecodeWAV(data)
	case ".mp3":
		return DecodeMP3(data)
	}
	return nil, fmt.Errorf("%w: unrecognized audio container", shared.ErrUnsupportedResource)
}

func (d *ResourceDecoder) readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", shared.ErrUnreadableResource)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnreadableResource, err)
	}
	defer f.Close()
	return d.readAll(f, path)
}

// fetch performs a GET with the configured timeout and returns the body.
func (d *ResourceDecoder) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", shared.ErrUnreadableResource)
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrUnreadableResource, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrUnreadableResource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s returned %d", shared.ErrUnreadableResource, url, resp.StatusCode)
	}
	return d.readAll(resp.Body, url)
}

func (d *ResourceDecoder) readAll(r io.Reader, name string) ([]byte, error) {
	if d.maxBytes > 0 {
		r = io.LimitReader(r, d.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", shared.ErrUnreadableResource, name, err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", shared.ErrUnreadableResource, name, d.maxBytes)
	}
	return data, nil
}

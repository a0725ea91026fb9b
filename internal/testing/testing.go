// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/audiotap/internal/audio"
	"github.com/desertthunder/audiotap/internal/models"
)

// RecordingSink keeps every update it receives; it satisfies tasks.Sink.
type RecordingSink struct {
	mu      sync.Mutex
	updates []models.Update
}

func (r *RecordingSink) Emit(u models.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

// Updates returns a copy of every update received so far.
func (r *RecordingSink) Updates() []models.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Update(nil), r.updates...)
}

// Incremental returns the updates that carry results.
func (r *RecordingSink) Incremental() []models.Update {
	var out []models.Update
	for _, u := range r.Updates() {
		if u.Results != nil {
			out = append(out, u)
		}
	}
	return out
}

// Terminal returns the terminal updates.
func (r *RecordingSink) Terminal() []models.Update {
	var out []models.Update
	for _, u := range r.Updates() {
		if u.Terminal() {
			out = append(out, u)
		}
	}
	return out
}

// StaticDecoder returns the same samples for every resource, or Err when set.
type StaticDecoder struct {
	Samples    []float64
	SampleRate int
	Err        error
}

func (d *StaticDecoder) Decode(ctx context.Context, res models.AudioResource, targetRate int) (*audio.Buffer, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	rate := d.SampleRate
	if targetRate > 0 {
		rate = targetRate
	}
	return &audio.Buffer{Samples: append([]float64(nil), d.Samples...), SampleRate: rate}, nil
}

// Ramp returns n samples 0, 1, ..., n-1.
func Ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// BlockingDecoder holds every Decode call until Release is closed or ctx ends.
type BlockingDecoder struct {
	StaticDecoder
	Release chan struct{}
}

func NewBlockingDecoder(samples []float64) *BlockingDecoder {
	return &BlockingDecoder{StaticDecoder: StaticDecoder{Samples: samples}, Release: make(chan struct{})}
}

func (d *BlockingDecoder) Decode(ctx context.Context, res models.AudioResource, targetRate int) (*audio.Buffer, error) {
	select {
	case <-d.Release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.StaticDecoder.Decode(ctx, res, targetRate)
}

// WriteToneWAV writes a 440 Hz tone of the given length to dir and returns its path.
func WriteToneWAV(t *testing.T, dir string, rate int, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create WAV fixture: %v", err)
	}
	defer f.Close()
	if err := audio.WriteWAV(f, audio.Tone(440, 0.5, seconds, rate), rate); err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}
	return path
}

// Eventually polls cond every 5ms until it holds or timeout passes.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return dir
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

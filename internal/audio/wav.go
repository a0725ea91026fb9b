package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/desertthunder/audiotap/internal/shared"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// DecodeWAV parses a RIFF/WAVE byte stream into a mono buffer at its native rate.
//
// Supported encodings are integer PCM at 8, 16, 24 and 32 bits.
func DecodeWAV(data []byte) (*Buffer, error) {
	if !isWAV(data) {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", shared.ErrUnsupportedResource)
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrUnreadableResource, err)
		}
		return nil, fmt.Errorf("%w: invalid WAV header or empty data chunk", shared.ErrUnreadableResource)
	}
	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return nil, fmt.Errorf("%w: WAV format %d with %d bits per sample",
			shared.ErrUnsupportedResource, d.WavAudioFormat, d.BitDepth)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PCM data: %v", shared.ErrUnreadableResource, err)
	}

	samples, err := downmix(pcm.Data, int(d.NumChans), int(d.BitDepth))
	if err != nil {
		return nil, err
	}
	return &Buffer{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

// downmix converts interleaved integer frames to mono by averaging channels.
func downmix(data []int, channels, bits int) ([]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: zero channels", shared.ErrUnreadableResource)
	}

	var norm func(int) float64
	switch bits {
	case 8:
		// 8-bit WAV is unsigned.
		norm = func(v int) float64 { return float64(v-128) / 128 }
	case 16, 24, 32:
		scale := float64(int64(1) << (bits - 1))
		norm = func(v int) float64 { return float64(v) / scale }
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", shared.ErrUnsupportedResource, bits)
	}

	samples := make([]float64, len(data)/channels)
	for i := range samples {
		var sum float64
		for c := range channels {
			sum += norm(data[i*channels+c])
		}
		samples[i] = sum / float64(channels)
	}
	return samples, nil
}

// WriteWAV encodes samples in [-1, 1] as 16-bit PCM mono WAV. Values outside the range are clipped.
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		pcm[i] = int(math.Round(s * 32767))
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, formatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           pcm,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return nil
}

// Tone generates a sine wave of the given frequency, amplitude and duration in seconds.
func Tone(freq, amplitude, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, max(n, 0))
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

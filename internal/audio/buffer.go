package audio

import "time"

// Buffer is decoded mono audio normalized to [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Duration is the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// ChunkCount returns ceil(n / size), or zero when size is not positive.
func ChunkCount(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Chunks partitions samples into consecutive windows of size samples. The last window holds the
// remainder and is not padded. The windows share the backing array of samples.
func Chunks(samples []float64, size int) [][]float64 {
	count := ChunkCount(len(samples), size)
	chunks := make([][]float64, 0, count)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		chunks = append(chunks, samples[start:end:end])
	}
	return chunks
}

// Resample converts samples from one rate to another by linear interpolation.
//
// The input is returned unchanged when either rate is not positive or the rates match.
func Resample(samples []float64, from, to int) []float64 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		n = 1
	}
	out := make([]float64, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

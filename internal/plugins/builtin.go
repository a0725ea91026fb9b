package plugins

import (
	"errors"
	"math"

	"github.com/desertthunder/audiotap/internal/models"
)

// SilenceFloorDB is reported instead of -Inf for digital silence.
const SilenceFloorDB = -120.0

var errEmptyChunk = errors.New("empty chunk")

// Builtin returns a registry holding the built-in plugins.
func Builtin() *Registry {
	return NewRegistry().MustRegister(BuiltinDescriptors()...)
}

// BuiltinDescriptors lists the built-in plugins, for callers that compose their own registry.
func BuiltinDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "energy",
			Invoke:      Energy,
			Description: "Mean square energy and RMS amplitude of the chunk",
		},
		{
			Name:          "noise_level_detection",
			Invoke:        NoiseLevel,
			DefaultParams: Params{"threshold_db": -30.0},
			Description:   "RMS level in dBFS and whether it exceeds threshold_db",
		},
		{
			Name:          "voice_activity_detection",
			Invoke:        VoiceActivity,
			DefaultParams: Params{"energy_threshold": 0.1},
			Description:   "Energy-based voice activity: is_voice when energy exceeds energy_threshold",
		},
		{
			Name:        "zero_crossing_rate",
			Invoke:      ZeroCrossingRate,
			Description: "Sign changes per sample, a rough noisiness and pitch indicator",
		},
		{
			Name:        "peak",
			Invoke:      Peak,
			Description: "Peak absolute amplitude, peak dBFS and crest factor",
		},
	}
}

func meanSquare(chunk []float64) float64 {
	var sum float64
	for _, s := range chunk {
		sum += s * s
	}
	return sum / float64(len(chunk))
}

func toDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return SilenceFloorDB
	}
	return math.Max(20*math.Log10(amplitude), SilenceFloorDB)
}

// Energy reports mean square energy and RMS.
func Energy(chunk []float64, _ Params) (models.Values, error) {
	if len(chunk) == 0 {
		return nil, errEmptyChunk
	}
	ms := meanSquare(chunk)
	return models.Values{"energy": ms, "rms": math.Sqrt(ms)}, nil
}

// NoiseLevel converts RMS to dBFS and compares it against threshold_db.
func NoiseLevel(chunk []float64, params Params) (models.Values, error) {
	if len(chunk) == 0 {
		return nil, errEmptyChunk
	}
	threshold, err := params.Float("threshold_db", -30)
	if err != nil {
		return nil, err
	}
	db := toDB(math.Sqrt(meanSquare(chunk)))
	return models.Values{
		"noise_level_db": db,
		"is_noisy":       db > threshold,
		"threshold_db":   threshold,
	}, nil
}

// VoiceActivity flags chunks whose energy exceeds energy_threshold.
func VoiceActivity(chunk []float64, params Params) (models.Values, error) {
	if len(chunk) == 0 {
		return nil, errEmptyChunk
	}
	threshold, err := params.Float("energy_threshold", 0.1)
	if err != nil {
		return nil, err
	}
	energy := meanSquare(chunk)
	return models.Values{
		"is_voice":  energy > threshold,
		"energy":    energy,
		"threshold": threshold,
	}, nil
}

// ZeroCrossingRate counts sign changes between adjacent samples, normalized by the number of pairs.
func ZeroCrossingRate(chunk []float64, _ Params) (models.Values, error) {
	if len(chunk) == 0 {
		return nil, errEmptyChunk
	}
	crossings := 0
	for i := 1; i < len(chunk); i++ {
		if (chunk[i-1] >= 0) != (chunk[i] >= 0) {
			crossings++
		}
	}
	rate := 0.0
	if len(chunk) > 1 {
		rate = float64(crossings) / float64(len(chunk)-1)
	}
	return models.Values{"crossings": crossings, "rate": rate}, nil
}

// Peak reports the largest absolute sample and the crest factor (peak over RMS).
func Peak(chunk []float64, _ Params) (models.Values, error) {
	if len(chunk) == 0 {
		return nil, errEmptyChunk
	}
	var peak float64
	for _, s := range chunk {
		peak = math.Max(peak, math.Abs(s))
	}
	rms := math.Sqrt(meanSquare(chunk))
	crest := 0.0
	if rms > 0 {
		crest = peak / rms
	}
	return models.Values{"peak": peak, "peak_db": toDB(peak), "crest_factor": crest}, nil
}

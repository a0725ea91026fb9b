package plugins

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/desertthunder/audiotap/internal/shared"
)

// Params is a plugin parameter mapping. Values arrive from JSON, YAML or Go callers, so numbers may be any numeric type.
type Params map[string]any

// Clone returns a shallow copy; nil stays nil.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns defaults overlaid with overrides. Neither input is modified.
func Merge(defaults Params, overrides map[string]any) Params {
	out := make(Params, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Float reads key as a float64, returning fallback when the key is absent.
func (p Params) Float(key string, fallback float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not a number", shared.ErrInvalidParam, key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", shared.ErrInvalidParam, key, v)
	}
}

// Int reads key as an int, returning fallback when the key is absent.
func (p Params) Int(key string, fallback int) (int, error) {
	f, err := p.Float(key, float64(fallback))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s=%v is not an integer", shared.ErrInvalidParam, key, f)
	}
	return int(f), nil
}

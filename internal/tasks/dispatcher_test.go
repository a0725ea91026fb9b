package tasks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/plugins"
)

// testRegistry holds deterministic plugins for dispatcher and manager tests.
func testRegistry() *plugins.Registry {
	return plugins.NewRegistry().MustRegister(
		plugins.Descriptor{
			Name: "a",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				return models.Values{"v": "a"}, nil
			},
		},
		plugins.Descriptor{
			Name: "b",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				return models.Values{"v": "b"}, nil
			},
		},
		plugins.Descriptor{
			Name: "first",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				return models.Values{"first": chunk[0], "len": len(chunk)}, nil
			},
		},
		plugins.Descriptor{
			Name: "fail",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				return nil, errors.New("always fails")
			},
		},
		plugins.Descriptor{
			Name: "panic",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				panic("kaboom")
			},
		},
		plugins.Descriptor{
			Name: "scale",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				factor, err := params.Float("factor", 0)
				if err != nil {
					return nil, err
				}
				offset, _ := params.Float("offset", 0)
				return models.Values{"value": chunk[0]*factor + offset}, nil
			},
			DefaultParams: plugins.Params{"factor": 2.0, "offset": 1.0},
		},
		plugins.Descriptor{
			Name: "mutate",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				for i := range chunk {
					chunk[i] = -999
				}
				return models.Values{}, nil
			},
		},
		plugins.Descriptor{
			Name: "nil",
			Invoke: func(chunk []float64, params plugins.Params) (models.Values, error) {
				return nil, nil
			},
		},
	)
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	chunk := []float64{1, 2, 3}

	t.Run("missing plugins contribute nothing", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		result := d.Dispatch(ctx, chunk, []models.PluginInvocation{{Name: "a"}, {Name: "missing"}, {Name: "b"}})

		if len(result) != 2 {
			t.Fatalf("expected keys {a, b}, got %v", result.Plugins())
		}
		if result["a"]["v"] != "a" || result["b"]["v"] != "b" {
			t.Errorf("unexpected result %v", result)
		}
		if _, ok := result["missing"]; ok {
			t.Error("missing plugin should not appear in result")
		}
	})

	t.Run("failures are isolated", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		result := d.Dispatch(ctx, chunk, []models.PluginInvocation{{Name: "fail"}, {Name: "panic"}, {Name: "a"}})

		if got := result["fail"].Error(); got != "always fails" {
			t.Errorf("fail entry = %v", result["fail"])
		}
		if !result["panic"].IsError() || !strings.Contains(result["panic"].Error(), "kaboom") {
			t.Errorf("panic entry = %v", result["panic"])
		}
		if result["a"]["v"] != "a" {
			t.Errorf("plugin after failures did not run: %v", result)
		}
		if result.Failed() != 2 {
			t.Errorf("Failed() = %d, want 2", result.Failed())
		}
	})

	t.Run("params override defaults", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		tc := []struct {
			name   string
			params map[string]any
			want   float64
		}{
			{name: "defaults", params: nil, want: 3},
			{name: "override one", params: map[string]any{"factor": 10}, want: 11},
			{name: "override all", params: map[string]any{"factor": 0, "offset": 5}, want: 5},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				result := d.Dispatch(ctx, chunk, []models.PluginInvocation{{Name: "scale", Params: tt.params}})
				if result["scale"]["value"] != tt.want {
					t.Errorf("value = %v, want %v", result["scale"]["value"], tt.want)
				}
			})
		}
	})

	t.Run("invalid param becomes error entry", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		result := d.Dispatch(ctx, chunk, []models.PluginInvocation{{Name: "scale", Params: map[string]any{"factor": "big"}}})
		if !result["scale"].IsError() {
			t.Errorf("expected error entry, got %v", result["scale"])
		}
	})

	t.Run("plugins cannot corrupt the chunk for later plugins", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		input := []float64{4, 5}
		result := d.Dispatch(ctx, input, []models.PluginInvocation{{Name: "mutate"}, {Name: "first"}})
		if result["first"]["first"] != 4.0 {
			t.Errorf("first saw mutated chunk: %v", result["first"])
		}
		if input[0] != 4 {
			t.Error("caller chunk was mutated")
		}
	})

	t.Run("duplicate invocations keep the last outcome", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		result := d.Dispatch(ctx, chunk, []models.PluginInvocation{
			{Name: "scale", Params: map[string]any{"factor": 1, "offset": 0}},
			{Name: "scale", Params: map[string]any{"factor": 3, "offset": 0}},
		})
		if len(result) != 1 || result["scale"]["value"] != 3.0 {
			t.Errorf("unexpected result %v", result)
		}
	})

	t.Run("nil values become an empty entry", func(t *testing.T) {
		d := NewDispatcher(testRegistry(), nil, nil)
		result := d.Dispatch(ctx, chunk, []models.PluginInvocation{{Name: "nil"}})
		if v, ok := result["nil"]; !ok || v == nil || len(v) != 0 {
			t.Errorf("expected empty entry, got %v (present=%v)", v, ok)
		}
	})

	t.Run("not found is logged and counted", func(t *testing.T) {
		var buf bytes.Buffer
		logger := log.New(&buf)
		m := metrics.New(prometheus.NewRegistry())
		d := NewDispatcher(testRegistry(), log.New(&bytes.Buffer{}), m)

		d.Dispatch(log.WithContext(ctx, logger), chunk, []models.PluginInvocation{{Name: "ghost"}, {Name: "a"}})

		if !strings.Contains(buf.String(), "ghost") {
			t.Errorf("expected warning naming the plugin in context logger, got %q", buf.String())
		}
		if got := testutil.ToFloat64(m.PluginsNotFound.WithLabelValues("ghost")); got != 1 {
			t.Errorf("not found counter = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.PluginInvocations.WithLabelValues("a", metrics.OutcomeOK)); got != 1 {
			t.Errorf("ok counter = %v, want 1", got)
		}
	})
}

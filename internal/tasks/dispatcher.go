package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/plugins"
	"github.com/desertthunder/audiotap/internal/shared"
)

// Dispatcher runs one chunk through an ordered list of plugin invocations.
type Dispatcher struct {
	registry *plugins.Registry
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher resolving plugins from registry. logger and m may be nil.
func NewDispatcher(registry *plugins.Registry, logger *log.Logger, m *metrics.Metrics) *Dispatcher {
	if registry == nil {
		registry = plugins.NewRegistry()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: m}
}

// Dispatch invokes every registered plugin in order and collects one entry per found invocation.
//
// A logger stored in ctx with [log.WithContext] takes precedence over the dispatcher's own.
// Repeated invocations of one name all run; the last outcome is the one kept.
func (d *Dispatcher) Dispatch(ctx context.Context, chunk []float64, invocations []models.PluginInvocation) models.ChunkResult {
	logger := d.logger
	if l, ok := ctx.Value(log.ContextKey).(*log.Logger); ok && l != nil {
		logger = l
	}

	result := make(models.ChunkResult, len(invocations))
	for _, inv := range invocations {
		desc, ok := d.registry.Get(inv.Name)
		if !ok {
			logger.Warn("skipping invocation", "plugin", inv.Name, "err", shared.ErrPluginNotFound)
			d.metrics.RecordPluginNotFound(inv.Name)
			continue
		}

		params := plugins.Merge(desc.DefaultParams, inv.Params)
		start := time.Now()
		values, outcome, err := invoke(desc, chunk, params)
		d.metrics.RecordPlugin(desc.Name, outcome, time.Since(start))

		if err != nil {
			logger.Debug("plugin failed", "plugin", desc.Name, "err", err)
			result[desc.Name] = models.ErrorValues(err.Error())
			continue
		}
		if values == nil {
			values = models.Values{}
		}
		result[desc.Name] = values
	}
	return result
}

// invoke calls the plugin on a private copy of chunk and converts a panic into an error.
func invoke(desc plugins.Descriptor, chunk []float64, params plugins.Params) (values models.Values, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, outcome, err = nil, metrics.OutcomePanic, fmt.Errorf("panic: %v", r)
		}
	}()

	values, err = desc.Invoke(append([]float64(nil), chunk...), params)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	return values, metrics.OutcomeOK, nil
}

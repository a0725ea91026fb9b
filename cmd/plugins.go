package main

import (
	"context"
	"maps"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/audiotap/internal/formatter"
)

type pluginListing struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	DefaultParams map[string]any `json:"default_params,omitempty"`
}

// Plugins lists the registered plugins with their default parameters.
func (r *Runner) Plugins(ctx context.Context, cmd *cli.Command) error {
	names := r.registry.Names()
	listing := make([]pluginListing, 0, len(names))
	for _, name := range names {
		desc, _ := r.registry.Get(name)
		listing = append(listing, pluginListing{
			Name:          desc.Name,
			Description:   desc.Description,
			DefaultParams: desc.DefaultParams,
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(listing, true)
	}

	r.writePlainHeader("Plugins")
	for _, p := range listing {
		r.writePlain("%-20s %s\n", p.Name, p.Description)
		for _, key := range slices.Sorted(maps.Keys(p.DefaultParams)) {
			r.writePlain("  %-18s default %s\n", key, formatter.FormatValue(p.DefaultParams[key]))
		}
	}
	return nil
}

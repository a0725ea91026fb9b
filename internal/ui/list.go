package ui

import (
	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/audiotap/internal/plugins"
)

var _ list.DefaultItem = pluginItem{}

// pluginItem wraps a registered plugin to implement [list.Item]. Selection is shown as a checkbox.
type pluginItem struct {
	name        string
	description string
	selected    bool
}

func (i pluginItem) FilterValue() string { return i.name }
func (i pluginItem) Description() string { return i.description }
func (i pluginItem) Title() string {
	if i.selected {
		return "[x] " + i.name
	}
	return "[ ] " + i.name
}

// pluginItems lists the registry in name order, pre-selecting names in chosen.
func pluginItems(r *plugins.Registry, chosen []string) []list.Item {
	selected := make(map[string]bool, len(chosen))
	for _, n := range chosen {
		selected[n] = true
	}

	descriptions := r.List()
	names := r.Names()
	items := make([]list.Item, len(names))
	for i, name := range names {
		items[i] = pluginItem{name: name, description: descriptions[name], selected: selected[name]}
	}
	return items
}

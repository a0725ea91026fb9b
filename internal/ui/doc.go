// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for running one analysis:
//  1. [PluginListView] : Pick plugins from the registry (space toggles)
//  2. [ConfirmView] : Review the resolved configuration
//  3. [AnalysisView] : Follow chunk results live, press s to stop
//  4. [ResultView] : Per-plugin counts and means, w writes an HTML report
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Updates flow from the task executor through a tasks.ChannelSink; a tea.Cmd blocks on the channel and
// re-arms itself after every incremental update until the terminal one arrives.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

package ui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/audiotap/internal/formatter"
	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PluginListView ViewState = iota
	ConfirmView
	AnalysisView
	ResultView
)

const (
	barWidth      = 40
	defaultBuffer = 64
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	manager *tasks.Manager
	base    models.AnalysisConfig
	buffer  int
	width   int
	height  int

	pluginList list.Model
	selected   []string

	taskID   string
	sink     *tasks.ChannelSink
	last     models.Update
	received int
	stopping bool

	report *models.Report
	saved  string
	err    error

	help help.Model
	keys keyMap
}

// NewModel creates a TUI that runs base (with the plugins picked in the list) on manager.
//
// Plugins already named in base start out selected. buffer sizes the update channel; zero uses a default.
func NewModel(ctx context.Context, manager *tasks.Manager, base models.AnalysisConfig, buffer int) *Model {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	l := list.New(pluginItems(manager.Registry(), base.PluginNames()), list.NewDefaultDelegate(), 0, 0)
	l.Title = "Plugins for " + base.AudioResource.Location()
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return &Model{
		ctx:        ctx,
		view:       PluginListView,
		manager:    manager,
		base:       base.Clone(),
		buffer:     buffer,
		pluginList: l,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init implements [tea.Model]. The plugin list is built up front so there is nothing to fetch.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Report returns the final report, or nil before the task finishes.
func (m *Model) Report() *models.Report {
	return m.report
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pluginList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PluginListView:
			return m.handlePluginListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case AnalysisView:
			return m.handleAnalysisKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ConfirmView
			return m, nil
		}
		m.taskID = msg.taskID
		m.sink = msg.sink
		m.view = AnalysisView
		return m, m.waitForUpdate()

	case updateMsg:
		u := models.Update(msg)
		if u.Terminal() {
			return m, m.fetchReport()
		}
		m.last = u
		m.received++
		return m, m.waitForUpdate()

	case finishedMsg:
		m.report = &msg.report
		m.view = ResultView
		return m, nil

	case savedMsg:
		m.saved = msg.path
		m.err = msg.err
		return m, nil
	}

	if m.view == PluginListView {
		var cmd tea.Cmd
		m.pluginList, cmd = m.pluginList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PluginListView:
		return m.renderPluginList()
	case ConfirmView:
		return m.renderConfirm()
	case AnalysisView:
		return m.renderAnalysis()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePluginListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		m.toggleCurrent()
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.selected = m.selection()
		if len(m.selected) == 0 {
			m.toggleCurrent()
			m.selected = m.selection()
		}
		if len(m.selected) > 0 {
			m.err = nil
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.pluginList, cmd = m.pluginList.Update(msg)
	return m, cmd
}

func (m *Model) toggleCurrent() {
	idx := m.pluginList.Index()
	item, ok := m.pluginList.SelectedItem().(pluginItem)
	if !ok {
		return
	}
	item.selected = !item.selected
	m.pluginList.SetItem(idx, item)
}

// selection returns the checked plugin names in list order.
func (m *Model) selection() []string {
	var names []string
	for _, it := range m.pluginList.Items() {
		if p, ok := it.(pluginItem); ok && p.selected {
			names = append(names, p.name)
		}
	}
	return names
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.startAnalysis()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PluginListView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleAnalysisKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.stop):
		if !m.stopping {
			m.stopping = m.manager.Stop(m.taskID)
		}
		return m, nil
	case key.Matches(msg, m.keys.quit):
		m.manager.Stop(m.taskID)
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.save):
		return m, m.saveReport()
	case key.Matches(msg, m.keys.restart):
		m.reset()
		return m, nil
	}
	return m, nil
}

func (m *Model) reset() {
	m.view = PluginListView
	m.taskID = ""
	m.sink = nil
	m.last = models.Update{}
	m.received = 0
	m.stopping = false
	m.report = nil
	m.saved = ""
	m.err = nil
}

// config is the base config with the selected plugins, keeping any params base carried.
func (m *Model) config() models.AnalysisConfig {
	cfg := m.base.Clone()
	params := make(map[string]map[string]any, len(cfg.Plugins))
	for _, inv := range cfg.Plugins {
		params[inv.Name] = inv.Params
	}

	cfg.Plugins = make([]models.PluginInvocation, len(m.selected))
	for i, name := range m.selected {
		cfg.Plugins[i] = models.PluginInvocation{Name: name, Params: params[name]}
	}
	return cfg
}

func (m *Model) startAnalysis() tea.Cmd {
	cfg := m.config()
	return func() tea.Msg {
		sink := tasks.NewChannelSink(m.buffer, nil)
		id, err := m.manager.Start(cfg, sink)
		return startedMsg{taskID: id, sink: sink, err: err}
	}
}

// waitForUpdate blocks on the sink. The sink is never closed; the terminal update ends the loop.
func (m *Model) waitForUpdate() tea.Cmd {
	sink := m.sink
	return func() tea.Msg {
		select {
		case u := <-sink.Updates():
			return updateMsg(u)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) fetchReport() tea.Cmd {
	id := m.taskID
	return func() tea.Msg {
		report, err := m.manager.Wait(m.ctx, id)
		if err != nil {
			report, _ = m.manager.Report(id)
		}
		return finishedMsg{report: report}
	}
}

func (m *Model) saveReport() tea.Cmd {
	report := m.report
	return func() tea.Msg {
		if report == nil {
			return savedMsg{err: fmt.Errorf("no report to save")}
		}
		path, err := formatter.WriteReport(*report, formatter.FormatHTML, "")
		return savedMsg{path: path, err: err}
	}
}

func (m *Model) renderPluginList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.pluginList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	cfg := m.config().WithDefaults(models.StandardDefaults())
	title := styles.title.Render("Start analysis?")

	var b strings.Builder
	fmt.Fprintf(&b, "Resource:    %s\n", cfg.AudioResource.String())
	fmt.Fprintf(&b, "Plugins:     %s\n", strings.Join(m.selected, ", "))
	fmt.Fprintf(&b, "Sample rate: %d Hz\n", cfg.SampleRate)
	fmt.Fprintf(&b, "Chunk size:  %d samples\n", cfg.ChunkSize)
	fmt.Fprintf(&b, "Pacing:      %s\n", cfg.Pacing())

	errLine := ""
	if m.err != nil {
		errLine = "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	return fmt.Sprintf("%s\n%s%s\n%s", title, b.String(), errLine, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderAnalysis() string {
	title := styles.title.Render("Analyzing " + m.base.AudioResource.Location())

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", m.taskID)
	if m.last.Total > 0 {
		done := m.last.Chunk + 1
		fmt.Fprintf(&b, "%s %d/%d chunks\n", progressBar(done, m.last.Total, barWidth), done, m.last.Total)
	} else {
		b.WriteString("Decoding audio...\n")
	}
	if m.received > 0 && m.received < m.last.Chunk+1 {
		b.WriteString(styles.warn.Render(fmt.Sprintf("%d updates skipped", m.last.Chunk+1-m.received)) + "\n")
	}

	for _, name := range m.last.Results.Plugins() {
		values := m.last.Results[name]
		if values.IsError() {
			fmt.Fprintf(&b, "  %-26s %s\n", name, styles.err.Render(values.Error()))
			continue
		}
		fmt.Fprintf(&b, "  %-26s %s\n", name, formatter.FormatValues(values))
	}

	if m.stopping {
		b.WriteString("\n" + styles.warn.Render("Stopping at the next chunk boundary...") + "\n")
	}

	helpKeys := []key.Binding{m.keys.stop, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderResult() string {
	if m.report == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}
	r := m.report

	title := styles.status(r.Status).Render(fmt.Sprintf("Analysis %s", r.Status))

	var b strings.Builder
	fmt.Fprintf(&b, "Task:     %s\n", r.TaskID)
	fmt.Fprintf(&b, "Chunks:   %d", len(r.Results))
	if r.TotalChunks > 0 {
		fmt.Fprintf(&b, " of %d", r.TotalChunks)
	}
	b.WriteString("\n")
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", d.Round(time.Millisecond))
	}
	if r.Error != "" {
		b.WriteString(styles.err.Render("Error: "+r.Error) + "\n")
	}

	if stats := formatter.Summarize(*r); len(stats) > 0 {
		b.WriteString("\n")
		for _, s := range stats {
			line := fmt.Sprintf("  %-26s %d chunks", s.Name, s.Chunks)
			if s.Errors > 0 {
				line += styles.warn.Render(fmt.Sprintf(", %d errors", s.Errors))
			}
			b.WriteString(line + "\n")
			for _, k := range slices.Sorted(maps.Keys(s.Means)) {
				fmt.Fprintf(&b, "      mean %-18s %s\n", k, formatter.FormatValue(s.Means[k]))
			}
		}
	}

	if m.saved != "" {
		b.WriteString("\n" + styles.ok.Render("Report written to "+m.saved) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}

	helpKeys := []key.Binding{m.keys.save, m.keys.restart, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}

// progressBar renders a fixed-width bar for done out of total.
func progressBar(done, total, width int) string {
	if total <= 0 {
		return ""
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return "[" + styles.bar.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled) + "]"
}

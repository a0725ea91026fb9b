// package formatter renders analysis reports as JSON, CSV, Markdown or HTML and writes them to disk.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

// DefaultReportDir is where reports land when no path is given.
const DefaultReportDir = "reports"

// Format is an output format for reports.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name or a common alias ("md", "htm"). Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, html)", shared.ErrInvalidFlag, s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".json"
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Render converts r to the given format.
func Render(r models.Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ReportToJSON(r)
	case FormatCSV:
		return ReportToCSV(r)
	case FormatMarkdown:
		return ReportToMarkdown(r)
	case FormatHTML:
		return ReportToHTML(r)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
	}
}

// ReportToJSON renders r as indented JSON.
func ReportToJSON(r models.Report) ([]byte, error) {
	if r.Results == nil {
		r.Results = []models.ChunkResult{}
	}
	return shared.MarshalJSON(r, true)
}

// ReportToCSV flattens r to one row per chunk, plugin and value with columns: chunk, offset, plugin, key, value
func ReportToCSV(r models.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"chunk", "offset", "plugin", "key", "value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, chunk := range r.Results {
		offset := strconv.Itoa(i * r.Config.ChunkSize)
		for _, plugin := range chunk.Plugins() {
			values := chunk[plugin]
			for _, key := range sortedKeys(values) {
				record := []string{strconv.Itoa(i), offset, plugin, key, FormatValue(values[key])}
				if err := writer.Write(record); err != nil {
					return nil, fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportToMarkdown renders a summary and a per-chunk table.
func ReportToMarkdown(r models.Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Analysis report %s\n\n", r.TaskID)
	fmt.Fprintf(&buf, "**Status**: %s\n", r.Status)
	fmt.Fprintf(&buf, "**Resource**: %s\n", r.Config.AudioResource.Location())
	fmt.Fprintf(&buf, "**Sample rate**: %d Hz\n", r.Config.SampleRate)
	fmt.Fprintf(&buf, "**Chunk size**: %d samples\n", r.Config.ChunkSize)
	fmt.Fprintf(&buf, "**Chunks**: %d", len(r.Results))
	if r.TotalChunks > 0 {
		fmt.Fprintf(&buf, " of %d", r.TotalChunks)
	}
	buf.WriteString("\n")
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&buf, "**Duration**: %s\n", d.Round(time.Millisecond))
	}
	if r.Error != "" {
		fmt.Fprintf(&buf, "**Error**: %s\n", r.Error)
	}
	buf.WriteString("\n")

	stats := Summarize(r)
	if len(stats) > 0 {
		buf.WriteString("## Plugins\n\n")
		buf.WriteString("| Plugin | Chunks | Errors | Means |\n")
		buf.WriteString("|---|---|---|---|\n")
		for _, s := range stats {
			fmt.Fprintf(&buf, "| %s | %d | %d | %s |\n", s.Name, s.Chunks, s.Errors, formatMeans(s.Means))
		}
		buf.WriteString("\n")
	}

	if len(r.Results) > 0 {
		buf.WriteString("## Chunks\n\n")
		buf.WriteString("| # | Offset | Plugin | Result |\n")
		buf.WriteString("|---|---|---|---|\n")
		for i, chunk := range r.Results {
			for _, plugin := range chunk.Plugins() {
				fmt.Fprintf(&buf, "| %d | %d | %s | %s |\n", i, i*r.Config.ChunkSize, plugin, FormatValues(chunk[plugin]))
			}
		}
	}

	return buf.Bytes(), nil
}

// PluginStat aggregates one plugin's outcomes across a report.
type PluginStat struct {
	Name   string
	Chunks int
	Errors int
	Means  map[string]float64
}

// Summarize computes per-plugin counts and the mean of every numeric value, sorted by plugin name.
func Summarize(r models.Report) []PluginStat {
	type acc struct {
		stat   PluginStat
		sums   map[string]float64
		counts map[string]int
	}
	byName := map[string]*acc{}

	for _, chunk := range r.Results {
		for name, values := range chunk {
			a, ok := byName[name]
			if !ok {
				a = &acc{stat: PluginStat{Name: name}, sums: map[string]float64{}, counts: map[string]int{}}
				byName[name] = a
			}
			a.stat.Chunks++
			if values.IsError() {
				a.stat.Errors++
				continue
			}
			for key, v := range values {
				if f, ok := numeric(v); ok {
					a.sums[key] += f
					a.counts[key]++
				}
			}
		}
	}

	stats := make([]PluginStat, 0, len(byName))
	for _, a := range byName {
		a.stat.Means = make(map[string]float64, len(a.sums))
		for key, sum := range a.sums {
			a.stat.Means[key] = sum / float64(a.counts[key])
		}
		stats = append(stats, a.stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// FormatValue renders a single result value compactly.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'g', 6, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', 6, 32)
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	default:
		data, err := shared.MarshalJSON(n, false)
		if err != nil {
			return fmt.Sprint(n)
		}
		return string(data)
	}
}

// FormatValues renders a plugin result as "k=v, k=v" with sorted keys.
func FormatValues(values models.Values) string {
	parts := make([]string, 0, len(values))
	for _, key := range sortedKeys(values) {
		parts = append(parts, key+"="+FormatValue(values[key]))
	}
	return strings.Join(parts, ", ")
}

func formatMeans(means map[string]float64) string {
	keys := make([]string, 0, len(means))
	for k := range means {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+FormatValue(means[k]))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(values models.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteReport renders r and writes it to path.
//
// Defaults to reports/report_{task_id}{ext}. Parent directories are created.
func WriteReport(r models.Report, f Format, path string) (string, error) {
	if path == "" {
		path = filepath.Join(DefaultReportDir, "report_"+r.TaskID+f.Extension())
	}

	data, err := Render(r, f)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// WriteManifest writes a batch manifest as indented JSON.
func WriteManifest(m *models.BatchManifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

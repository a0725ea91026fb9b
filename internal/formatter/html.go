package formatter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/desertthunder/audiotap/internal/models"
	"github.com/desertthunder/audiotap/internal/shared"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"json": func(v any) (string, error) {
			data, err := shared.MarshalJSON(v, true)
			return string(data), err
		},
		"values": FormatValues,
		"value":  FormatValue,
		"offset": func(i, size int) int { return i * size },
		"round":  func(d time.Duration) time.Duration { return d.Round(time.Millisecond) },
	}).ParseFS(templateFiles, "templates/report.html.tmpl"),
)

type htmlReport struct {
	models.Report
	Stats []PluginStat
}

// ReportToHTML renders a self-contained HTML page for r.
func ReportToHTML(r models.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, htmlReport{Report: r, Stats: Summarize(r)}); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buf.Bytes(), nil
}

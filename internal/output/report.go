package output

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/k6lunge/internal/metrics"
	"github.com/wesleyorama2/k6lunge/internal/runner"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*runner.RunResult
	Fields        []metrics.Field
	EndpointsJSON template.JS
}

type chartPoint struct {
	Label  string `json:"label"`
	MeanMs int64  `json:"meanMs"`
	P95Ms  int64  `json:"p95Ms"`
	Errors int64  `json:"errors"`
}

// GenerateHTML renders the report of res and writes it to outputPath.
func GenerateHTML(res *runner.RunResult, outputPath string) error {
	html, err := GenerateHTMLString(res)
	if err != nil {
		return errors.Wrap(err, "failed to generate HTML")
	}

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return errors.Wrap(err, "failed to write HTML file")
	}
	return nil
}

// GenerateHTMLString renders the report of res.
func GenerateHTMLString(res *runner.RunResult) (string, error) {
	if res == nil {
		return "", errors.New("result cannot be nil")
	}

	points := make([]chartPoint, 0, len(res.URLMetrics))
	for _, e := range res.URLMetrics {
		points = append(points, chartPoint{Label: e.Label, MeanMs: e.MeanDurationMs, P95Ms: e.P95DurationMs, Errors: e.ErrorCount})
	}
	endpointsJSON, err := json.Marshal(points)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode endpoints")
	}

	data := ReportData{
		RunResult:     res,
		Fields:        res.Metrics.Fields(),
		EndpointsJSON: template.JS(endpointsJSON),
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to execute template")
	}
	return buf.String(), nil
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": FormatDuration,
	"formatNumber":   FormatNumber,
}).Parse(htmlTemplate))

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>k6 run {{.RunID}} - Load Test Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
        }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: var(--bg-secondary); color: var(--text-primary); margin: 0; padding: 2rem; }
        .card { background: var(--bg-primary); border: 1px solid var(--border-color); border-radius: 8px; padding: 1.5rem; margin-bottom: 1.5rem; }
        h1 { margin: 0 0 .5rem 0; }
        .status { display: inline-block; padding: .25rem .75rem; border-radius: 999px; color: #fff; font-weight: 600; }
        .status.ok { background: var(--accent-success); }
        .status.warn { background: var(--accent-warning); }
        .meta { color: var(--text-secondary); }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: .5rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 500; }
        td.num { text-align: right; font-variant-numeric: tabular-nums; }
        td.err { color: var(--accent-error); }
        pre { background: var(--bg-secondary); padding: 1rem; overflow-x: auto; font-size: .85rem; }
    </style>
</head>
<body>
    <div class="card">
        <h1>k6 {{.Mode}} run</h1>
        {{if .ThresholdViolated}}<span class="status warn">{{.Message}}</span>{{else}}<span class="status ok">{{.Message}}</span>{{end}}
        <p class="meta">
            Run {{.RunID}}{{if .Environment}} &middot; {{.Environment}}/{{.Application}}{{end}}
            &middot; started {{.StartedAt.Format "2006-01-02 15:04:05"}}
            &middot; took {{formatDuration .Duration}}
        </p>
    </div>

    {{if .Fields}}
    <div class="card">
        <h2>Summary</h2>
        <table>
            {{range .Fields}}<tr><th>{{.Name}}</th><td>{{.Value}}</td></tr>
            {{end}}
        </table>
    </div>
    {{end}}

    {{if .URLMetrics}}
    <div class="card">
        <h2>Endpoints</h2>
        <canvas id="endpoints" height="120"></canvas>
        <table>
            <tr><th>URL</th><th>Requests</th><th>Mean</th><th>p95</th><th>Errors</th></tr>
            {{range .URLMetrics}}<tr>
                <td>{{.Label}}</td>
                <td class="num">{{formatNumber .RequestsTotal}}</td>
                <td class="num">{{.MeanDurationMs}}ms</td>
                <td class="num">{{.P95DurationMs}}ms</td>
                <td class="num{{if .ErrorCount}} err{{end}}">{{formatNumber .ErrorCount}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}

    {{if .Output}}
    <div class="card">
        <h2>k6 output</h2>
        <pre>{{.Output}}</pre>
    </div>
    {{end}}

    <script>
        const endpoints = {{.EndpointsJSON}};
        if (endpoints.length && window.Chart) {
            new Chart(document.getElementById('endpoints'), {
                type: 'bar',
                data: {
                    labels: endpoints.map(e => e.label),
                    datasets: [
                        { label: 'mean (ms)', data: endpoints.map(e => e.meanMs), backgroundColor: '#3b82f6' },
                        { label: 'p95 (ms)', data: endpoints.map(e => e.p95Ms), backgroundColor: '#f59e0b' },
                    ],
                },
                options: { indexAxis: 'y', responsive: true },
            });
        }
    </script>
</body>
</html>
`

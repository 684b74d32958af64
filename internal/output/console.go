package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wesleyorama2/k6lunge/internal/metrics"
	"github.com/wesleyorama2/k6lunge/internal/runner"
)

const ruleWidth = 56

// stderrTailLines limits how much k6 output a failure prints.
const stderrTailLines = 20

// Console prints run results for humans.
type Console struct {
	w       io.Writer
	scheme  *ColorScheme
	noColor bool
}

// NewConsole returns a Console writing to w. Colours are used only when
// UseColors allows it.
func NewConsole(w io.Writer, noColor bool) *Console {
	useColors := UseColors(w, noColor)

	scheme := NoColorScheme()
	if useColors {
		scheme = ForcedColorScheme()
	}
	return &Console{w: w, scheme: scheme, noColor: !useColors}
}

// PrintResult writes a summary of res.
func (c *Console) PrintResult(res *runner.RunResult) {
	rule := c.scheme.Rule.Sprint(strings.Repeat("━", ruleWidth))

	status := c.scheme.Success.Sprint(SuccessIcon(c.noColor) + " " + res.Message)
	if res.ThresholdViolated {
		status = c.scheme.Warning.Sprint(WarningIcon(c.noColor) + " " + res.Message)
	}

	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.scheme.Title.Sprintf("k6 %s run", res.Mode), status))
	c.writeln(rule)
	c.writeln("")

	c.field("Run ID", res.RunID)
	if res.Environment != "" {
		c.field("Script", fmt.Sprintf("%s/%s", res.Environment, res.Application))
	}
	c.field("Duration", FormatDuration(res.Duration()))

	switch res.Mode {
	case runner.ModeCluster:
		c.field("Namespace", res.Namespace)
		c.field("TestRun", res.JobID)
		c.field("ConfigMap", res.ConfigMap)
		c.writeln("")
	default:
		c.writeln("")
		c.printAggregate(res.Metrics)
		c.printEndpoints(res.URLMetrics)
	}
}

func (c *Console) printAggregate(agg *metrics.Aggregate) {
	fields := agg.Fields()
	if len(fields) == 0 {
		return
	}

	c.writeln(c.scheme.Title.Sprint("Summary:"))
	for _, f := range fields {
		c.writeln(fmt.Sprintf("  %-24s %s", f.Name, c.scheme.Value.Sprint(f.Value)))
	}
	c.writeln("")
}

func (c *Console) printEndpoints(endpoints []metrics.EndpointMetric) {
	if len(endpoints) == 0 {
		return
	}

	c.writeln(c.scheme.Title.Sprint("Endpoints:"))
	c.writeln(c.scheme.Muted.Sprintf("  %10s %10s %10s %8s  %s", "requests", "mean", "p95", "errors", "url"))
	for _, e := range endpoints {
		errs := c.scheme.Success.Sprintf("%8d", e.ErrorCount)
		if e.ErrorCount > 0 {
			errs = c.scheme.Error.Sprintf("%8d", e.ErrorCount)
		}
		c.writeln(fmt.Sprintf("  %10s %10s %10s %s  %s",
			FormatNumber(e.RequestsTotal),
			fmt.Sprintf("%dms", e.MeanDurationMs),
			fmt.Sprintf("%dms", e.P95DurationMs),
			errs,
			c.scheme.URL.Sprint(e.Label)))
	}
	c.writeln("")
}

// PrintError writes a failed run. Process failures include the tail of
// k6's stderr.
func (c *Console) PrintError(err error) {
	re, ok := runner.AsError(err)
	if !ok {
		c.writeln(fmt.Sprintf("%s %s", ErrorIcon(c.noColor), c.scheme.Error.Sprint(err.Error())))
		return
	}

	c.writeln(fmt.Sprintf("%s %s", ErrorIcon(c.noColor), c.scheme.Error.Sprint(re.Message)))
	c.field("Kind", string(re.Kind))
	if re.Detail != "" {
		c.field("Detail", re.Detail)
	}
	if tail := lastLines(re.Stderr, stderrTailLines); tail != "" {
		c.writeln(c.scheme.Label.Sprint("k6 stderr:"))
		c.writeln(c.scheme.Muted.Sprint(tail))
	}
}

func (c *Console) field(label, value string) {
	c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprintf("%-11s", label+":"), value))
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// FormatDuration formats a duration in a human-readable format.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// FormatNumber formats a number with thousands separators.
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

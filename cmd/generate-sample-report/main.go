// Command generate-sample-report writes the HTML report of a canned local run,
// for previewing the report template without running k6.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/wesleyorama2/k6lunge/internal/metrics"
	"github.com/wesleyorama2/k6lunge/internal/output"
	"github.com/wesleyorama2/k6lunge/internal/runner"
)

func main() {
	result := createSampleRunResult()

	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	if err := output.GenerateHTML(result, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s\n", outputPath)
}

func createSampleRunResult() *runner.RunResult {
	now := time.Now()
	str := func(s string) *string { return &s }
	num := func(n int64) *int64 { return &n }

	return &runner.RunResult{
		Mode:        runner.ModeLocal,
		RunID:       "3f6c1a2e-8d4b-4c55-9a0e-5b7d2f1e9c40",
		Outcome:     runner.OutcomeSucceeded,
		Message:     "Test completed successfully",
		Environment: "stage",
		Application: "ab",
		StartedAt:   now.Add(-3 * time.Minute),
		FinishedAt:  now,
		Metrics: &metrics.Aggregate{
			DurationAvg: str("142.37ms"),
			DurationP90: str("288.1ms"),
			DurationP95: str("341.92ms"),
			FailureRate: str("1.20%"),
			Requests:    num(5847),
			Iterations:  num(1949),
			VUsMax:      num(20),
			VUs:         num(1),
		},
		URLMetrics: []metrics.EndpointMetric{
			{Label: "https://test.k6.io/", RequestsTotal: 1949, MeanDurationMs: 118, P95DurationMs: 276, ErrorCount: 0},
			{Label: "https://test.k6.io/contacts.php", RequestsTotal: 1949, MeanDurationMs: 131, P95DurationMs: 305, ErrorCount: 12},
			{Label: "https://test.k6.io/news.php", RequestsTotal: 1949, MeanDurationMs: 178, P95DurationMs: 412, ErrorCount: 58},
		},
	}
}

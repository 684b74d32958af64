package metrics

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

var (
	// metricNamePattern picks the metric name at the start of a summary line,
	// after an optional threshold check mark.
	metricNamePattern = regexp.MustCompile(`^\s*(?:[✓✗]\s*)?([a-z_]+)(?:[.\s:]|$)`)

	durationAvgPattern = regexp.MustCompile(`\bavg=([0-9.]+(?:[a-zµ]+[0-9.]*)*)`)
	durationP90Pattern = regexp.MustCompile(`\bp\(90\)=([0-9.]+(?:[a-zµ]+[0-9.]*)*)`)
	durationP95Pattern = regexp.MustCompile(`\bp\(95\)=([0-9.]+(?:[a-zµ]+[0-9.]*)*)`)

	percentPattern = regexp.MustCompile(`:\s+([0-9.]+%)`)
	countPattern   = regexp.MustCompile(`:\s+(\d+)`)
)

// ParseSummary reads the human-readable k6 summary and returns the aggregate
// values it finds. Markers may appear in any order; when one appears more
// than once the last occurrence wins.
func ParseSummary(output string) *Aggregate {
	agg := &Aggregate{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		parseSummaryLine(scanner.Text(), agg)
	}

	return agg
}

func parseSummaryLine(line string, agg *Aggregate) {
	m := metricNamePattern.FindStringSubmatch(line)
	if m == nil {
		return
	}

	switch m[1] {
	case "http_req_duration":
		if v := submatch(durationAvgPattern, line); v != nil {
			agg.DurationAvg = v
		}
		if v := submatch(durationP90Pattern, line); v != nil {
			agg.DurationP90 = v
		}
		if v := submatch(durationP95Pattern, line); v != nil {
			agg.DurationP95 = v
		}
	case "http_req_failed":
		if v := submatch(percentPattern, line); v != nil {
			agg.FailureRate = v
		}
	case "http_reqs":
		if v := count(line); v != nil {
			agg.Requests = v
		}
	case "iterations":
		if v := count(line); v != nil {
			agg.Iterations = v
		}
	case "vus_max":
		if v := count(line); v != nil {
			agg.VUsMax = v
		}
	case "vus":
		if v := count(line); v != nil {
			agg.VUs = v
		}
	}
}

func submatch(re *regexp.Regexp, line string) *string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return &m[1]
}

func count(line string) *int64 {
	s := submatch(countPattern, line)
	if s == nil {
		return nil
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

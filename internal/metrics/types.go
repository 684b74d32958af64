// Package metrics extracts structured results from k6 output: the
// end-of-test summary printed to stdout and the newline-delimited JSON event
// log written by `--out json=<file>`.
//
// Both parsers are lenient. Lines they do not recognise are ignored, so a
// change in k6's output format degrades the result instead of failing it.
package metrics

// Aggregate holds the run-wide values read from the k6 summary.
//
// Every field is optional: a value missing from the summary stays nil and is
// left out of the JSON encoding rather than reported as zero.
type Aggregate struct {
	DurationAvg *string `json:"http_req_duration_avg,omitempty" yaml:"http_req_duration_avg,omitempty"`
	DurationP90 *string `json:"http_req_duration_p90,omitempty" yaml:"http_req_duration_p90,omitempty"`
	DurationP95 *string `json:"http_req_duration_p95,omitempty" yaml:"http_req_duration_p95,omitempty"`

	// FailureRate is the percentage string k6 prints, e.g. "0.00%"
	FailureRate *string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	Requests   *int64 `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`
	Iterations *int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	VUsMax     *int64 `json:"vus_max,omitempty" yaml:"vus_max,omitempty"`
	VUs        *int64 `json:"vus,omitempty" yaml:"vus,omitempty"`
}

// Fields returns the values that are present, keyed by k6 metric name, in a
// fixed order.
func (a *Aggregate) Fields() []Field {
	if a == nil {
		return nil
	}

	var fields []Field
	addString := func(name string, v *string) {
		if v != nil {
			fields = append(fields, Field{Name: name, Value: *v})
		}
	}
	addInt := func(name string, v *int64) {
		if v != nil {
			fields = append(fields, Field{Name: name, Value: *v})
		}
	}

	addString("http_req_duration_avg", a.DurationAvg)
	addString("http_req_duration_p90", a.DurationP90)
	addString("http_req_duration_p95", a.DurationP95)
	addString("http_req_failed", a.FailureRate)
	addInt("http_reqs", a.Requests)
	addInt("iterations", a.Iterations)
	addInt("vus_max", a.VUsMax)
	addInt("vus", a.VUs)

	return fields
}

// Field is one named aggregate value.
type Field struct {
	Name  string
	Value interface{}
}

// EndpointMetric summarises the requests made to one URL.
type EndpointMetric struct {
	// Label is the request URL
	Label string `json:"label" yaml:"label"`

	RequestsTotal int64 `json:"requests_total" yaml:"requests_total"`

	// MeanDurationMs is the mean request duration rounded to whole milliseconds
	MeanDurationMs int64 `json:"request_duration_ms" yaml:"request_duration_ms"`

	// P95DurationMs is the 95th percentile request duration in milliseconds
	P95DurationMs int64 `json:"request_duration_p95_ms" yaml:"request_duration_p95_ms"`

	// ErrorCount counts responses with a 4xx or 5xx status
	ErrorCount int64 `json:"request_errors" yaml:"request_errors"`
}

// Result is everything extracted from one local run.
type Result struct {
	Aggregate *Aggregate
	Endpoints []EndpointMetric
}

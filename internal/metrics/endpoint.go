package metrics

import (
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds, in microseconds: 1µs to 1 hour at 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3_600_000_000
	histogramSigFigs = 3
)

// endpointAccumulator collects samples for one URL while the event log is read.
type endpointAccumulator struct {
	label    string
	requests int64
	samples  int64
	sumMs    float64
	errors   int64
	hist     *hdrhistogram.Histogram
}

func newEndpointAccumulator(label string) *endpointAccumulator {
	return &endpointAccumulator{
		label: label,
		hist:  hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// record adds one request. durationMs is nil when the point carried no value.
func (a *endpointAccumulator) record(durationMs *float64, failed bool) {
	a.requests++
	if failed {
		a.errors++
	}
	if durationMs == nil {
		return
	}

	a.samples++
	a.sumMs += *durationMs

	us := int64(math.Round(*durationMs * 1000))
	if us < histogramMin {
		us = histogramMin
	}
	if us > histogramMax {
		us = histogramMax
	}
	_ = a.hist.RecordValue(us)
}

func (a *endpointAccumulator) metric() EndpointMetric {
	m := EndpointMetric{
		Label:         a.label,
		RequestsTotal: a.requests,
		ErrorCount:    a.errors,
	}
	if a.samples > 0 {
		m.MeanDurationMs = int64(math.Round(a.sumMs / float64(a.samples)))
		m.P95DurationMs = int64(math.Round(float64(a.hist.ValueAtQuantile(95)) / 1000))
	}
	return m
}

// endpointSet keeps accumulators in first-seen order.
type endpointSet struct {
	order []*endpointAccumulator
	byURL map[string]*endpointAccumulator
}

func newEndpointSet() *endpointSet {
	return &endpointSet{byURL: make(map[string]*endpointAccumulator)}
}

func (s *endpointSet) get(label string) *endpointAccumulator {
	acc, ok := s.byURL[label]
	if !ok {
		acc = newEndpointAccumulator(label)
		s.byURL[label] = acc
		s.order = append(s.order, acc)
	}
	return acc
}

func (s *endpointSet) metrics() []EndpointMetric {
	out := make([]EndpointMetric, 0, len(s.order))
	for _, acc := range s.order {
		out = append(out, acc.metric())
	}
	return out
}

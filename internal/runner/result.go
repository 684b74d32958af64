package runner

import (
	"time"

	"github.com/wesleyorama2/k6lunge/internal/metrics"
)

// Mode selects where tests run.
type Mode string

const (
	ModeLocal   Mode = "local"
	ModeCluster Mode = "cluster"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeLocal, ModeCluster:
		return Mode(s), true
	}
	return "", false
}

// Outcome is the terminal state of a successful Run call.
type Outcome string

const (
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeThresholdViolated Outcome = "threshold_violated"
	OutcomeSubmitted         Outcome = "submitted"
)

// RunResult is returned by Dispatcher.Run. Local runs fill the output and
// metrics fields, cluster runs fill the job fields.
type RunResult struct {
	Mode    Mode    `json:"executionMode" yaml:"executionMode"`
	RunID   string  `json:"runId" yaml:"runId"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Message string  `json:"message" yaml:"message"`

	// local
	Output            string                   `json:"output,omitempty" yaml:"output,omitempty"`
	Metrics           *metrics.Aggregate       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	URLMetrics        []metrics.EndpointMetric `json:"urlMetrics,omitempty" yaml:"urlMetrics,omitempty"`
	ThresholdViolated bool                     `json:"thresholdViolated" yaml:"thresholdViolated"`

	// cluster
	JobID     string `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	ConfigMap string `json:"configMap,omitempty" yaml:"configMap,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// ScriptUsed names the script's source: the stored script ID,
	// "uploaded" or "inline"
	ScriptUsed  string    `json:"scriptUsed,omitempty" yaml:"scriptUsed,omitempty"`
	Environment string    `json:"environment,omitempty" yaml:"environment,omitempty"`
	Application string    `json:"application,omitempty" yaml:"application,omitempty"`
	StartedAt   time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt" yaml:"finishedAt"`
}

// Duration is the wall time spent in Dispatcher.Run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

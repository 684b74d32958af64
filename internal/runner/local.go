package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/wesleyorama2/k6lunge/internal/metrics"
)

// ThresholdExitCode is the k6 exit code for a run that finished with at least
// one failed threshold.
const ThresholdExitCode = 99

// CommandRunner starts a process and waits for it. err is non-nil only when
// the process could not be started; a non-zero exit is reported through
// exitCode.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.String(), stderr.String(), -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}

// LocalStrategy runs k6 as a child process and extracts metrics from its
// output.
type LocalStrategy struct {
	binary string
	runner CommandRunner
	logger *zap.SugaredLogger
}

// NewLocalStrategy returns a LocalStrategy invoking binary through runner.
// A nil runner uses ExecRunner.
func NewLocalStrategy(binary string, runner CommandRunner, logger *zap.SugaredLogger) *LocalStrategy {
	if binary == "" {
		binary = "k6"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LocalStrategy{binary: binary, runner: runner, logger: logger}
}

func (s *LocalStrategy) Mode() Mode { return ModeLocal }

// Execute runs `k6 run --out json=<events> <script>` and waits for it.
// Exit code 0 succeeds, ThresholdExitCode succeeds with ThresholdViolated
// set, anything else fails. Both per-run files are removed before returning.
func (s *LocalStrategy) Execute(ctx context.Context, run *Run) (*RunResult, error) {
	log := s.logger.With("runId", run.ID)
	eventsPath := EventLogPath(run.WorkDir, run.ID)

	defer removeFile(log, run.ScriptPath)
	defer removeFile(log, eventsPath)

	// A leftover log under this name would be read as this run's output.
	removeFile(log, eventsPath)

	log.Infow("Starting k6", "binary", s.binary, "script", run.ScriptPath)
	stdout, stderr, code, err := s.runner.Run(ctx, s.binary, "run", "--out", "json="+eventsPath, run.ScriptPath)
	if err != nil {
		e := newError(KindProcessSpawn, "Test failed to start", err)
		e.Stdout, e.Stderr = stdout, stderr
		return nil, e
	}

	res := &RunResult{Output: stdout}
	switch code {
	case 0:
		res.Outcome = OutcomeSucceeded
		res.Message = "Test completed successfully"
	case ThresholdExitCode:
		res.Outcome = OutcomeThresholdViolated
		res.Message = "Test completed with threshold violations"
		res.ThresholdViolated = true
	default:
		e := &Error{
			Kind:    KindProcessExecution,
			Message: "Test run failed",
			Detail:  fmt.Sprintf("k6 exited with code %d", code),
			Stdout:  stdout,
			Stderr:  stderr,
			Err:     ctx.Err(),
		}
		return nil, e
	}

	extracted, err := metrics.Extract(stdout, eventsPath, run.Script)
	if err != nil {
		log.Warnw("Event log unreadable, endpoints taken from script", "error", err)
	}
	res.Metrics = extracted.Aggregate
	res.URLMetrics = extracted.Endpoints

	log.Infow("k6 finished", "exitCode", code, "endpoints", len(res.URLMetrics))
	return res, nil
}

// Package runner executes k6 scripts under a load profile, either as a local
// k6 process or as a TestRun submitted to the k6 operator.
//
// A Dispatcher is built with exactly one Strategy. Every call to Run resolves
// the script, rewrites its options block, writes it to a file unique to the
// run and hands it to the strategy.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/k6lunge/internal/profile"
	"github.com/wesleyorama2/k6lunge/internal/script"
)

// Strategy executes a prepared run.
type Strategy interface {
	Mode() Mode
	Execute(ctx context.Context, run *Run) (*RunResult, error)
}

// Run is the prepared input handed to a Strategy. The strategy owns
// ScriptPath and removes it when done.
type Run struct {
	ID         string
	Script     string
	ScriptPath string
	WorkDir    string
}

// Observer is notified once per finished Run call. Outcome is the run
// outcome, or the error kind when the run failed.
type Observer interface {
	RunFinished(mode Mode, outcome string, elapsed time.Duration)
}

// Dispatcher turns run requests into strategy executions.
type Dispatcher struct {
	strategy    Strategy
	scripts     ScriptGetter
	transformer *script.Transformer
	workDir     string
	logger      *zap.SugaredLogger
	observer    Observer

	now   func() time.Time
	newID func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTransformer replaces the default script transformer.
func WithTransformer(t *script.Transformer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.transformer = t
		}
	}
}

// NewDispatcher returns a Dispatcher bound to one strategy. scripts may be
// nil when stored references are never used.
func NewDispatcher(strategy Strategy, scripts ScriptGetter, workDir string, opts ...Option) *Dispatcher {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "k6lunge")
	}

	d := &Dispatcher{
		strategy:    strategy,
		scripts:     scripts,
		transformer: script.NewTransformer(),
		workDir:     workDir,
		logger:      zap.NewNop().Sugar(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode reports the strategy's execution mode.
func (d *Dispatcher) Mode() Mode {
	return d.strategy.Mode()
}

// Run executes src under p. Any failure, including a panic in the strategy,
// is returned as a *Error.
func (d *Dispatcher) Run(ctx context.Context, src ScriptSource, p profile.LoadProfile) (res *RunResult, err error) {
	start := d.now()
	runID := d.newID()
	log := d.logger.With("runId", runID, "mode", d.strategy.Mode())

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Run panicked", "panic", r)
			res = nil
			err = &Error{Kind: KindInternal, Message: "Internal error", Detail: fmt.Sprint(r)}
		}

		var outcome string
		if err != nil {
			outcome = string(KindOf(err))
			log.Warnw("Run failed", "error", err)
		} else {
			outcome = string(res.Outcome)
			log.Infow("Run finished", "outcome", outcome, "elapsed", res.Duration())
		}
		if d.observer != nil {
			d.observer.RunFinished(d.strategy.Mode(), outcome, d.now().Sub(start))
		}
	}()

	if verr := p.Validate(); verr != nil {
		return nil, newError(KindInvalidProfile, "Invalid load profile", verr)
	}

	text, err := Resolve(src, d.scripts)
	if err != nil {
		return nil, err
	}

	transformed, err := d.transformer.Apply(text, p)
	if err != nil {
		return nil, newError(KindInternal, "Failed to apply load profile", err)
	}

	path, err := d.writeScript(runID, transformed)
	if err != nil {
		return nil, newError(KindInternal, "Failed to write script", err)
	}
	log.Debugw("Script prepared", "path", path, "stages", len(p.ActiveStages()))

	res, err = d.strategy.Execute(ctx, &Run{
		ID:         runID,
		Script:     transformed,
		ScriptPath: path,
		WorkDir:    d.workDir,
	})
	if err != nil {
		if _, ok := AsError(err); !ok {
			err = newError(KindInternal, "Run failed", err)
		}
		return nil, err
	}

	res.Mode = d.strategy.Mode()
	res.RunID = runID
	res.ScriptUsed = src.Label()
	if src.Uploaded == nil && src.Stored.complete() {
		res.Environment = src.Stored.Environment
		res.Application = src.Stored.Application
	}
	res.StartedAt = start
	res.FinishedAt = d.now()

	return res, nil
}

// ScriptPath returns the per-run script file name inside workDir.
func ScriptPath(workDir, runID string) string {
	return filepath.Join(workDir, "k6lunge-"+runID+".js")
}

// EventLogPath returns the per-run k6 JSON output file name inside workDir.
func EventLogPath(workDir, runID string) string {
	return filepath.Join(workDir, "k6lunge-"+runID+"-events.json")
}

func (d *Dispatcher) writeScript(runID, text string) (string, error) {
	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return "", err
	}
	path := ScriptPath(d.workDir, runID)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func removeFile(log *zap.SugaredLogger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnw("Failed to remove run file", "path", path, "error", err)
	}
}

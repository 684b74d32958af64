package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/k6lunge/internal/profile"
)

const testSummary = `
     http_req_duration..............: avg=150ms   min=100ms  med=150ms  max=200ms  p(90)=190ms  p(95)=195ms
     http_req_failed................: 50.00%  ✓ 1        ✗ 1
     http_reqs......................: 2       1/s
     iterations.....................: 2       1/s
     vus............................: 1       min=1      max=1
     vus_max........................: 1       min=1      max=1
`

const testEvents = `{"type":"Point","data":{"value":100,"tags":{"url":"https://a.example","status":"200"}},"metric":"http_req_duration"}
{"type":"Point","data":{"value":200,"tags":{"url":"https://a.example","status":"500"}},"metric":"http_req_duration"}
`

// fakeRunner stands in for the k6 binary.
type fakeRunner struct {
	mu       sync.Mutex
	stdout   string
	stderr   string
	exitCode int
	err      error
	events   string

	calls   [][]string
	scripts []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return "", "", -1, f.err
	}

	scriptPath := args[len(args)-1]
	data, _ := os.ReadFile(scriptPath)
	f.scripts = append(f.scripts, string(data))

	for _, a := range args {
		if strings.HasPrefix(a, "json=") && f.events != "" {
			_ = os.WriteFile(strings.TrimPrefix(a, "json="), []byte(f.events), 0644)
		}
	}
	return f.stdout, f.stderr, f.exitCode, nil
}

type fakeScripts map[string]string

func (f fakeScripts) Get(env, app, id string) (string, error) {
	s, ok := f[env+"/"+app+"/"+id]
	if !ok {
		return "", errors.Wrap(os.ErrNotExist, "script not found")
	}
	return s, nil
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) RunFinished(_ Mode, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func steadyProfile() profile.LoadProfile {
	return profile.LoadProfile{Steady: profile.Stage{VUs: profile.VUs(1), Duration: "2s"}}
}

func newLocalDispatcher(t *testing.T, fr *fakeRunner, opts ...Option) (*Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	scripts := fakeScripts{"stage/ab/plp": "export default function() { http.get('https://stored.example'); }"}
	return NewDispatcher(NewLocalStrategy("k6", fr, nil), scripts, dir, opts...), dir
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalRun_Succeeded(t *testing.T) {
	fr := &fakeRunner{stdout: testSummary, events: testEvents}
	obs := &recordingObserver{}
	d, dir := newLocalDispatcher(t, fr, WithObserver(obs))

	res, err := d.Run(context.Background(), ScriptSource{Inline: "export default function() {}"}, steadyProfile())
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, res.Mode)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "Test completed successfully", res.Message)
	assert.False(t, res.ThresholdViolated)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "inline", res.ScriptUsed)
	assert.Equal(t, testSummary, res.Output)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))

	require.NotNil(t, res.Metrics)
	require.NotNil(t, res.Metrics.DurationAvg)
	assert.Equal(t, "150ms", *res.Metrics.DurationAvg)
	require.Len(t, res.URLMetrics, 1)
	assert.Equal(t, int64(2), res.URLMetrics[0].RequestsTotal)
	assert.Equal(t, int64(150), res.URLMetrics[0].MeanDurationMs)
	assert.Equal(t, int64(1), res.URLMetrics[0].ErrorCount)

	require.Len(t, fr.calls, 1)
	call := fr.calls[0]
	assert.Equal(t, []string{"k6", "run", "--out"}, call[:3])
	assert.Equal(t, "json="+EventLogPath(dir, res.RunID), call[3])
	assert.Equal(t, ScriptPath(dir, res.RunID), call[4])

	assertWorkDirEmpty(t, dir)
	assert.Equal(t, []string{"succeeded"}, obs.outcomes)
}

func TestLocalRun_StaleEventLogIgnored(t *testing.T) {
	fr := &fakeRunner{stdout: testSummary}
	d, dir := newLocalDispatcher(t, fr)
	d.newID = func() string { return "fixed-run" }

	stale := `{"type":"Point","data":{"value":900,"tags":{"url":"https://stale.example","status":"200"}},"metric":"http_req_duration"}` + "\n"
	require.NoError(t, os.WriteFile(EventLogPath(dir, "fixed-run"), []byte(stale), 0644))

	res, err := d.Run(context.Background(), ScriptSource{
		Inline: "export default function() { http.get('https://fresh.example'); }",
	}, steadyProfile())
	require.NoError(t, err)

	require.Len(t, res.URLMetrics, 1)
	assert.Equal(t, "https://fresh.example", res.URLMetrics[0].Label)
	assert.Equal(t, int64(0), res.URLMetrics[0].RequestsTotal)
	for _, m := range res.URLMetrics {
		assert.NotEqual(t, "https://stale.example", m.Label)
	}
	assertWorkDirEmpty(t, dir)
}

func TestRunResult_ThresholdViolatedAlwaysEncoded(t *testing.T) {
	out, err := json.Marshal(&RunResult{Mode: ModeLocal, Outcome: OutcomeSucceeded})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"thresholdViolated":false`)
}

func TestLocalRun_ThresholdViolated(t *testing.T) {
	fr := &fakeRunner{stdout: testSummary, events: testEvents, exitCode: ThresholdExitCode}
	d, dir := newLocalDispatcher(t, fr)

	res, err := d.Run(context.Background(), ScriptSource{Inline: "export default function() {}"}, steadyProfile())
	require.NoError(t, err)

	assert.Equal(t, OutcomeThresholdViolated, res.Outcome)
	assert.True(t, res.ThresholdViolated)
	assert.Equal(t, "Test completed with threshold violations", res.Message)
	assert.NotNil(t, res.Metrics)
	assert.NotEmpty(t, res.URLMetrics)
	assertWorkDirEmpty(t, dir)
}

func TestLocalRun_NoEventLogFallsBackToScript(t *testing.T) {
	fr := &fakeRunner{stdout: testSummary}
	d, _ := newLocalDispatcher(t, fr)

	res, err := d.Run(context.Background(), ScriptSource{
		Inline: "export default function() { http.get('https://fallback.example/'); }",
	}, steadyProfile())
	require.NoError(t, err)

	require.Len(t, res.URLMetrics, 1)
	assert.Equal(t, "https://fallback.example/", res.URLMetrics[0].Label)
	assert.Zero(t, res.URLMetrics[0].RequestsTotal)
}

func TestLocalRun_ExecutionFailure(t *testing.T) {
	fr := &fakeRunner{stdout: "partial", stderr: "ReferenceError: foo is not defined", exitCode: 107}
	obs := &recordingObserver{}
	d, dir := newLocalDispatcher(t, fr, WithObserver(obs))

	res, err := d.Run(context.Background(), ScriptSource{Inline: "foo()"}, steadyProfile())
	require.Error(t, err)
	assert.Nil(t, res)

	re, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProcessExecution, re.Kind)
	assert.Equal(t, "partial", re.Stdout)
	assert.Contains(t, re.Stderr, "ReferenceError")
	assert.Contains(t, re.Detail, "107")
	assert.Equal(t, 500, re.Kind.HTTPStatus())

	assertWorkDirEmpty(t, dir)
	assert.Equal(t, []string{"process_execution"}, obs.outcomes)
}

func TestLocalRun_SpawnFailure(t *testing.T) {
	fr := &fakeRunner{err: errors.New(`exec: "k6": executable file not found in $PATH`)}
	d, dir := newLocalDispatcher(t, fr)

	_, err := d.Run(context.Background(), ScriptSource{Inline: "export default function() {}"}, steadyProfile())
	assert.Equal(t, KindProcessSpawn, KindOf(err))
	assertWorkDirEmpty(t, dir)
}

func TestRun_ScriptResolution(t *testing.T) {
	stored := &StoredRef{Environment: "stage", Application: "ab", ID: "plp"}

	tests := []struct {
		name     string
		src      ScriptSource
		contains string
		used     string
		wantKind Kind
	}{
		{"uploaded wins over stored and inline", ScriptSource{Uploaded: []byte("// uploaded"), Stored: stored, Inline: "// inline"}, "// uploaded", "uploaded", ""},
		{"uploaded wins over inline", ScriptSource{Uploaded: []byte("// uploaded"), Inline: "// inline"}, "// uploaded", "uploaded", ""},
		{"stored wins over inline", ScriptSource{Stored: stored, Inline: "// inline"}, "https://stored.example", "plp", ""},
		{"inline alone", ScriptSource{Inline: "// inline"}, "// inline", "inline", ""},
		{"incomplete reference uses inline", ScriptSource{Stored: &StoredRef{Environment: "stage"}, Inline: "// inline"}, "// inline", "inline", ""},
		{"missing stored script", ScriptSource{Stored: &StoredRef{Environment: "stage", Application: "ab", ID: "nope"}, Inline: "// inline"}, "", "", KindScriptResolution},
		{"nothing provided", ScriptSource{}, "", "", KindScriptResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{}
			d, _ := newLocalDispatcher(t, fr)

			res, err := d.Run(context.Background(), tt.src, steadyProfile())
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				assert.Equal(t, 400, KindOf(err).HTTPStatus())
				assert.Empty(t, fr.calls)
				return
			}

			require.NoError(t, err)
			require.Len(t, fr.scripts, 1)
			assert.Contains(t, fr.scripts[0], tt.contains)
			assert.Equal(t, tt.used, res.ScriptUsed)
		})
	}
}

func TestRun_StoredReferenceSetsEnvironment(t *testing.T) {
	d, _ := newLocalDispatcher(t, &fakeRunner{})

	res, err := d.Run(context.Background(), ScriptSource{
		Stored: &StoredRef{Environment: "stage", Application: "ab", ID: "plp"},
	}, steadyProfile())
	require.NoError(t, err)
	assert.Equal(t, "stage", res.Environment)
	assert.Equal(t, "ab", res.Application)
}

func TestRun_InvalidProfile(t *testing.T) {
	fr := &fakeRunner{}
	d, _ := newLocalDispatcher(t, fr)

	_, err := d.Run(context.Background(), ScriptSource{Inline: "// x"}, profile.LoadProfile{
		Steady: profile.Stage{VUs: profile.VUs(-2), Duration: "1m"},
	})
	assert.Equal(t, KindInvalidProfile, KindOf(err))
	assert.Empty(t, fr.calls)
}

type panickingStrategy struct{}

func (panickingStrategy) Mode() Mode { return ModeLocal }
func (panickingStrategy) Execute(context.Context, *Run) (*RunResult, error) {
	panic("boom")
}

func TestRun_PanicBecomesInternalError(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(panickingStrategy{}, nil, t.TempDir(), WithObserver(obs))

	res, err := d.Run(context.Background(), ScriptSource{Inline: "// x"}, steadyProfile())
	assert.Nil(t, res)

	re, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindInternal, re.Kind)
	assert.Equal(t, "boom", re.Detail)
	assert.Equal(t, []string{"internal"}, obs.outcomes)
}

func TestRun_ConcurrentRunsUseDistinctFiles(t *testing.T) {
	fr := &fakeRunner{}
	d, dir := newLocalDispatcher(t, fr)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Run(context.Background(), ScriptSource{Inline: "// x"}, steadyProfile())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, call := range fr.calls {
		script := call[len(call)-1]
		assert.False(t, seen[script], "script path %s reused", script)
		seen[script] = true
		assert.Equal(t, dir, filepath.Dir(script))
	}
	assert.Len(t, seen, 8)
	assertWorkDirEmpty(t, dir)
}

type fakeOrchestrator struct {
	configMapErr error
	testRunErr   error
	deleteErr    error

	configMaps map[string]string
	testRuns   map[string]string
	deleted    []string
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{configMaps: map[string]string{}, testRuns: map[string]string{}}
}

func (f *fakeOrchestrator) CreateScriptConfigMap(_ context.Context, ns, name, script string) error {
	if f.configMapErr != nil {
		return f.configMapErr
	}
	f.configMaps[ns+"/"+name] = script
	return nil
}

func (f *fakeOrchestrator) CreateTestRun(_ context.Context, ns, name, configMap string) error {
	if f.testRunErr != nil {
		return f.testRunErr
	}
	f.testRuns[ns+"/"+name] = configMap
	return nil
}

func (f *fakeOrchestrator) DeleteScriptConfigMap(_ context.Context, ns, name string) error {
	f.deleted = append(f.deleted, ns+"/"+name)
	return f.deleteErr
}

type statusError struct{ body string }

func (e statusError) Error() string  { return "the server rejected our request" }
func (e statusError) Detail() string { return e.body }

func TestClusterRun_Submitted(t *testing.T) {
	orch := newFakeOrchestrator()
	dir := t.TempDir()
	d := NewDispatcher(NewClusterStrategy(orch, "", true, nil), nil, dir)

	res, err := d.Run(context.Background(), ScriptSource{Inline: "export default function() {}"}, steadyProfile())
	require.NoError(t, err)

	assert.Equal(t, ModeCluster, res.Mode)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
	assert.Equal(t, "Test submitted to Kubernetes cluster", res.Message)
	assert.Equal(t, "k6", res.Namespace)
	assert.Regexp(t, `^k6-test-\d+-[0-9a-f]{8}$`, res.JobID)
	assert.Regexp(t, `^k6-script-\d+-[0-9a-f]{8}$`, res.ConfigMap)
	assert.Equal(t, strings.TrimPrefix(res.JobID, "k6-test-"), strings.TrimPrefix(res.ConfigMap, "k6-script-"))

	assert.Equal(t, "inline", res.ScriptUsed)
	assert.Contains(t, orch.configMaps["k6/"+res.ConfigMap], "vus: 1, duration: '2s'")
	assert.Equal(t, res.ConfigMap, orch.testRuns["k6/"+res.JobID])
	assert.Nil(t, res.Metrics)
	assertWorkDirEmpty(t, dir)
}

func TestClusterRun_UniqueJobNames(t *testing.T) {
	orch := newFakeOrchestrator()
	s := NewClusterStrategy(orch, "load", false, nil)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	d := NewDispatcher(s, nil, t.TempDir())
	first, err := d.Run(context.Background(), ScriptSource{Inline: "// a"}, steadyProfile())
	require.NoError(t, err)
	second, err := d.Run(context.Background(), ScriptSource{Inline: "// b"}, steadyProfile())
	require.NoError(t, err)

	assert.NotEqual(t, first.JobID, second.JobID)
	assert.Len(t, orch.testRuns, 2)
}

func TestClusterRun_ConfigMapFailure(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.configMapErr = errors.New("connection refused")
	d := NewDispatcher(NewClusterStrategy(orch, "k6", true, nil), nil, t.TempDir())

	_, err := d.Run(context.Background(), ScriptSource{Inline: "// x"}, steadyProfile())

	re, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindOrchestratorSubmission, re.Kind)
	assert.Equal(t, "connection refused", re.Detail)
	assert.Empty(t, orch.testRuns)
	assert.Empty(t, orch.deleted)
}

func TestClusterRun_TestRunFailureCleansUp(t *testing.T) {
	tests := []struct {
		name        string
		cleanup     bool
		wantDeleted int
	}{
		{"cleanup enabled", true, 1},
		{"cleanup disabled", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := newFakeOrchestrator()
			orch.testRunErr = errors.Wrap(statusError{body: `{"kind":"Status","reason":"Forbidden"}`}, "failed to create TestRun")
			d := NewDispatcher(NewClusterStrategy(orch, "k6", tt.cleanup, nil), nil, t.TempDir())

			_, err := d.Run(context.Background(), ScriptSource{Inline: "// x"}, steadyProfile())

			re, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindOrchestratorSubmission, re.Kind)
			assert.Equal(t, `{"kind":"Status","reason":"Forbidden"}`, re.Detail)
			assert.Equal(t, "Failed to submit test to cluster", re.Message)

			require.Len(t, orch.configMaps, 1)
			assert.Len(t, orch.deleted, tt.wantDeleted)
		})
	}
}

func TestKindHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindScriptResolution:       400,
		KindInvalidProfile:         400,
		KindProcessSpawn:           500,
		KindProcessExecution:       500,
		KindOrchestratorSubmission: 500,
		KindInternal:               500,
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.HTTPStatus(), string(kind))
	}
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("disk full")
	e := newError(KindInternal, "Failed to write script", cause)

	assert.Equal(t, "internal: Failed to write script: disk full", e.Error())
	assert.Equal(t, cause, errors.Cause(e))
	assert.True(t, errors.Is(e, cause))
	assert.Equal(t, KindInternal, KindOf(errors.Wrap(e, "outer")))
	assert.Equal(t, KindInternal, KindOf(errors.New("foreign")))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("cluster")
	assert.True(t, ok)
	assert.Equal(t, ModeCluster, m)

	_, ok = ParseMode("remote")
	assert.False(t, ok)
}

package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/k6lunge/internal/runner"
)

func TestRunFinished(t *testing.T) {
	r := NewRecorder()

	r.RunFinished(runner.ModeLocal, "succeeded", 2*time.Second)
	r.RunFinished(runner.ModeLocal, "succeeded", 3*time.Second)
	r.RunFinished(runner.ModeLocal, "process_execution", time.Second)
	r.RunFinished(runner.ModeCluster, "submitted", 200*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runs.WithLabelValues("local", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("local", "process_execution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("cluster", "submitted")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.RunFinished(runner.ModeCluster, "submitted", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `k6lunge_runs_total{mode="cluster",outcome="submitted"} 1`)
	assert.Contains(t, string(body), "k6lunge_run_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultNamespace is the namespace the k6 operator watches by default.
const DefaultNamespace = "k6"

// Orchestrator creates the Kubernetes objects of a cluster run.
type Orchestrator interface {
	CreateScriptConfigMap(ctx context.Context, namespace, name, script string) error
	CreateTestRun(ctx context.Context, namespace, name, configMap string) error
	DeleteScriptConfigMap(ctx context.Context, namespace, name string) error
}

// detailer is implemented by orchestrator errors that carry the API status body.
type detailer interface {
	Detail() string
}

// ClusterStrategy submits runs to the k6 operator and returns without
// waiting for them.
type ClusterStrategy struct {
	orchestrator     Orchestrator
	namespace        string
	cleanupOnFailure bool
	logger           *zap.SugaredLogger

	now func() time.Time
}

// NewClusterStrategy returns a ClusterStrategy submitting into namespace.
// With cleanupOnFailure set, a ConfigMap whose TestRun could not be created
// is deleted again.
func NewClusterStrategy(orch Orchestrator, namespace string, cleanupOnFailure bool, logger *zap.SugaredLogger) *ClusterStrategy {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ClusterStrategy{
		orchestrator:     orch,
		namespace:        namespace,
		cleanupOnFailure: cleanupOnFailure,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *ClusterStrategy) Mode() Mode { return ModeCluster }

// Execute creates the script ConfigMap, then the TestRun referencing it.
func (s *ClusterStrategy) Execute(ctx context.Context, run *Run) (*RunResult, error) {
	log := s.logger.With("runId", run.ID, "namespace", s.namespace)
	defer removeFile(log, run.ScriptPath)

	suffix := jobSuffix(s.now())
	configMap := "k6-script-" + suffix
	jobID := "k6-test-" + suffix

	if err := s.orchestrator.CreateScriptConfigMap(ctx, s.namespace, configMap, run.Script); err != nil {
		return nil, submissionError(err)
	}
	log.Infow("ConfigMap created", "configMap", configMap)

	if err := s.orchestrator.CreateTestRun(ctx, s.namespace, jobID, configMap); err != nil {
		log.Errorw("TestRun creation failed, ConfigMap left without a job", "configMap", configMap, "error", err)
		if s.cleanupOnFailure {
			s.deleteOrphan(log, configMap)
		}
		return nil, submissionError(err)
	}
	log.Infow("TestRun submitted", "jobId", jobID)

	return &RunResult{
		Outcome:   OutcomeSubmitted,
		Message:   "Test submitted to Kubernetes cluster",
		JobID:     jobID,
		ConfigMap: configMap,
		Namespace: s.namespace,
	}, nil
}

// deleteOrphan runs on its own context so that a cancelled request still
// cleans up.
func (s *ClusterStrategy) deleteOrphan(log *zap.SugaredLogger, configMap string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.orchestrator.DeleteScriptConfigMap(ctx, s.namespace, configMap); err != nil {
		log.Warnw("Failed to delete orphan ConfigMap", "configMap", configMap, "error", err)
		return
	}
	log.Infow("Orphan ConfigMap deleted", "configMap", configMap)
}

func submissionError(err error) *Error {
	e := newError(KindOrchestratorSubmission, "Failed to submit test to cluster", err)
	var d detailer
	if errors.As(err, &d) && d.Detail() != "" {
		e.Detail = d.Detail()
	}
	return e
}

// jobSuffix is unix milliseconds followed by eight hex characters, so that
// two submissions in the same millisecond still get distinct names.
func jobSuffix(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%s", now.UnixMilli(), id[:8])
}

// Package cluster talks to the Kubernetes API on behalf of cluster runs: it
// stores scripts in ConfigMaps and creates k6 operator TestRun resources
// that reference them.
package cluster

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/wesleyorama2/k6lunge/internal/runner"
)

// ScriptKey is the ConfigMap data key, and the file name the TestRun reads.
const ScriptKey = "test.js"

const managedByLabel = "app.kubernetes.io/managed-by"

// TestRunGVR identifies the k6 operator's TestRun resource.
var TestRunGVR = schema.GroupVersionResource{
	Group:    "k6.io",
	Version:  "v1alpha1",
	Resource: "testruns",
}

var _ runner.Orchestrator = (*Orchestrator)(nil)

// Orchestrator implements runner.Orchestrator with client-go.
type Orchestrator struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
}

// New wraps existing clients.
func New(clientset kubernetes.Interface, dyn dynamic.Interface) *Orchestrator {
	return &Orchestrator{clientset: clientset, dynamic: dyn}
}

// NewFromKubeconfig builds the clients from kubeconfig. An empty path tries
// the in-cluster service account first, then the default loading rules
// ($KUBECONFIG, ~/.kube/config).
func NewFromKubeconfig(kubeconfig string) (*Orchestrator, error) {
	cfg, err := restConfig(kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load Kubernetes configuration")
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kubernetes client")
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dynamic client")
	}

	return New(clientset, dyn), nil
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// CreateScriptConfigMap stores script under ScriptKey in a new ConfigMap.
func (o *Orchestrator) CreateScriptConfigMap(ctx context.Context, namespace, name, script string) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{managedByLabel: "k6lunge"},
		},
		Data: map[string]string{ScriptKey: script},
	}

	if _, err := o.clientset.CoreV1().ConfigMaps(namespace).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		return newAPIError(err, "failed to create ConfigMap %s/%s", namespace, name)
	}
	return nil
}

// CreateTestRun creates a TestRun with parallelism 1 running the script held
// in configMap.
func (o *Orchestrator) CreateTestRun(ctx context.Context, namespace, name, configMap string) error {
	obj := TestRun(namespace, name, configMap)

	if _, err := o.dynamic.Resource(TestRunGVR).Namespace(namespace).Create(ctx, obj, metav1.CreateOptions{}); err != nil {
		return newAPIError(err, "failed to create TestRun %s/%s", namespace, name)
	}
	return nil
}

// DeleteScriptConfigMap removes a ConfigMap. A ConfigMap that is already
// gone is not an error.
func (o *Orchestrator) DeleteScriptConfigMap(ctx context.Context, namespace, name string) error {
	err := o.clientset.CoreV1().ConfigMaps(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return newAPIError(err, "failed to delete ConfigMap %s/%s", namespace, name)
	}
	return nil
}

// TestRun returns the TestRun manifest submitted for a run.
func TestRun(namespace, name, configMap string) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": TestRunGVR.GroupVersion().String(),
			"kind":       "TestRun",
			"metadata": map[string]interface{}{
				"name":      name,
				"namespace": namespace,
				"labels": map[string]interface{}{
					managedByLabel: "k6lunge",
				},
			},
			"spec": map[string]interface{}{
				"parallelism": int64(1),
				"script": map[string]interface{}{
					"configMap": map[string]interface{}{
						"name": configMap,
						"file": ScriptKey,
					},
				},
			},
		},
	}
}

// APIError wraps a Kubernetes API failure and keeps the status body the
// server answered with.
type APIError struct {
	err  error
	body string
}

func newAPIError(err error, format string, args ...interface{}) *APIError {
	e := &APIError{err: errors.Wrapf(err, format, args...)}

	if status, ok := err.(apierrors.APIStatus); ok {
		if b, merr := json.Marshal(status.Status()); merr == nil {
			e.body = string(b)
		}
	}
	return e
}

func (e *APIError) Error() string { return e.err.Error() }

func (e *APIError) Unwrap() error { return e.err }

// Detail returns the API status body, or the error text when the request
// never reached the server.
func (e *APIError) Detail() string {
	if e.body != "" {
		return e.body
	}
	return e.err.Error()
}

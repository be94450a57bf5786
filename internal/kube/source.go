// Package kube is the workload source: it enumerates CronJobs per
// kubeconfig context and namespace and writes ping identifiers back into
// their container environments.
package kube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"

	"github.com/Jezza/healthkube/pkg/logging"
)

const requestTimeout = 30 * time.Second

// defaultBackoff retries transient API server failures up to four times
// with exponential backoff and jitter.
var defaultBackoff = wait.Backoff{
	Steps:    4,
	Duration: 500 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// isTransient reports whether a Kubernetes API error should be retried.
// Server timeouts, throttling, and unavailability are; any other status
// the server managed to return is not, and neither is cancellation.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if apierrors.IsServerTimeout(err) || apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err) {
		return true
	}
	var statusErr *apierrors.StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	// No API status means the request never completed.
	return true
}

// Workload is a normalized view of one CronJob at enumeration time.
// It is re-fetched every run and never cached across runs.
type Workload struct {
	// Context is the kubeconfig context the workload was listed from.
	Context string

	// Namespace and Name identify the CronJob inside that context.
	Namespace string
	Name      string

	// Schedule is the CronJob's cron expression, verbatim.
	Schedule string

	// Suspended mirrors spec.suspend.
	Suspended bool

	// Containers lists the container names in the job template.
	Containers []string

	// EnvValue is the current value of the ping environment variable, or
	// "" when absent. A value is only reported when every container
	// agrees on it, so a half-patched workload is treated as unpatched
	// and converges on the next write.
	EnvValue string
}

// Source lists and patches CronJobs in one kubeconfig context.
type Source struct {
	contextName string
	clientset   kubernetes.Interface
	backoff     wait.Backoff
}

// SourceOption customizes a Source.
type SourceOption func(*Source)

// WithRetryBackoff replaces the retry policy for transient API server
// failures.
func WithRetryBackoff(backoff wait.Backoff) SourceOption {
	return func(s *Source) {
		s.backoff = backoff
	}
}

// NewSource builds a Source for the named kubeconfig context, using the
// standard kubeconfig loading rules (KUBECONFIG, ~/.kube/config).
func NewSource(contextName string) (*Source, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig for context %q: %w", contextName, err)
	}
	config.Timeout = requestTimeout

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create client for context %q: %w", contextName, err)
	}

	return NewSourceWithClientset(contextName, clientset), nil
}

// NewSourceWithClientset wires an existing clientset, used by tests with
// the fake clientset.
func NewSourceWithClientset(contextName string, clientset kubernetes.Interface, opts ...SourceOption) *Source {
	source := &Source{
		contextName: contextName,
		clientset:   clientset,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(source)
	}
	return source
}

// Context returns the kubeconfig context this source is bound to.
func (s *Source) Context() string {
	return s.contextName
}

// ListCronJobs enumerates the CronJobs in a namespace and normalizes
// them into Workloads. An empty namespace lists across all namespaces.
// envKey names the environment variable whose current value is captured
// for idempotence checks.
func (s *Source) ListCronJobs(ctx context.Context, namespace, envKey string) ([]Workload, error) {
	if namespace == "" {
		namespace = metav1.NamespaceAll
	}

	var list *batchv1.CronJobList
	err := retry.OnError(s.backoff, isTransient, func() error {
		var listErr error
		list, listErr = s.clientset.BatchV1().CronJobs(namespace).List(ctx, metav1.ListOptions{})
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list cronjobs in %s/%s: %w", s.contextName, namespaceDisplay(namespace), err)
	}

	workloads := make([]Workload, 0, len(list.Items))
	for i := range list.Items {
		workloads = append(workloads, s.normalize(&list.Items[i], envKey))
	}

	logging.Debug("Kube", "Listed %d cronjobs in %s/%s", len(workloads), s.contextName, namespaceDisplay(namespace))
	return workloads, nil
}

func (s *Source) normalize(job *batchv1.CronJob, envKey string) Workload {
	workload := Workload{
		Context:   s.contextName,
		Namespace: job.Namespace,
		Name:      job.Name,
		Schedule:  job.Spec.Schedule,
	}
	if job.Spec.Suspend != nil {
		workload.Suspended = *job.Spec.Suspend
	}

	containers := job.Spec.JobTemplate.Spec.Template.Spec.Containers
	agreed := ""
	consistent := true
	for i := range containers {
		container := &containers[i]
		workload.Containers = append(workload.Containers, container.Name)

		value := ""
		for _, env := range container.Env {
			if env.Name == envKey {
				value = env.Value
				break
			}
		}
		if i == 0 {
			agreed = value
		} else if value != agreed {
			consistent = false
		}
	}
	if consistent {
		workload.EnvValue = agreed
	}
	return workload
}

// envPatch mirrors the CronJob spec path down to container env. The
// strategic merge keys (container name, env name) confine the patch to
// the single variable, leaving all unrelated spec fields untouched.
type envPatch struct {
	Spec struct {
		JobTemplate struct {
			Spec struct {
				Template struct {
					Spec struct {
						Containers []containerEnvPatch `json:"containers"`
					} `json:"spec"`
				} `json:"template"`
			} `json:"spec"`
		} `json:"jobTemplate"`
	} `json:"spec"`
}

type containerEnvPatch struct {
	Name string        `json:"name"`
	Env  []envVarPatch `json:"env"`
}

type envVarPatch struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PatchPingEnv sets envKey=value in every listed container of the named
// CronJob via a strategic merge patch.
func (s *Source) PatchPingEnv(ctx context.Context, namespace, name, envKey, value string, containers []string) error {
	var patch envPatch
	for _, container := range containers {
		patch.Spec.JobTemplate.Spec.Template.Spec.Containers = append(
			patch.Spec.JobTemplate.Spec.Template.Spec.Containers,
			containerEnvPatch{
				Name: container,
				Env:  []envVarPatch{{Name: envKey, Value: value}},
			},
		)
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode env patch for %s/%s: %w", namespace, name, err)
	}

	err = retry.OnError(s.backoff, isTransient, func() error {
		_, patchErr := s.clientset.BatchV1().CronJobs(namespace).Patch(ctx, name, types.StrategicMergePatchType, payload, metav1.PatchOptions{})
		return patchErr
	})
	if err != nil {
		return fmt.Errorf("patch cronjob %s/%s in %s: %w", namespace, name, s.contextName, err)
	}

	logging.Debug("Kube", "Patched %s=%s into %s/%s (%d containers)", envKey, value, namespace, name, len(containers))
	return nil
}

func namespaceDisplay(namespace string) string {
	if namespace == metav1.NamespaceAll {
		return "(all namespaces)"
	}
	return namespace
}

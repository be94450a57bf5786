package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jezza/healthkube/internal/healthchecks"
	"github.com/Jezza/healthkube/internal/kube"
)

func TestKeyV1_Injective(t *testing.T) {
	// Valid Kubernetes names cannot contain '/', so distinct
	// (namespace, name) pairs always produce distinct keys.
	seen := map[string]string{}
	for _, namespace := range []string{"batch", "batch-jobs", "etl"} {
		for _, name := range []string{"report", "jobs-report", "sync"} {
			key := KeyV1(namespace, name)
			previous, dup := seen[key]
			require.False(t, dup, "key %q produced by both %s and %s/%s", key, previous, namespace, name)
			seen[key] = namespace + "|" + name
		}
	}
}

func TestKeyV1_Stable(t *testing.T) {
	assert.Equal(t, "batch/nightly-report", KeyV1("batch", "nightly-report"))
}

func TestBuild_JoinsByKey(t *testing.T) {
	workloads := []kube.Workload{
		workload("batch", "nightly-report", "30 3 * * *"),
		workload("etl", "hourly-sync", "0 * * * *"),
	}
	checks := []healthchecks.Check{
		{Name: "batch/nightly-report", PingURL: pingURL(pingA)},
		{Name: "etl/retired", PingURL: pingURL(pingB)},
	}

	correspondence, err := Build(workloads, checks)
	require.NoError(t, err)
	require.Len(t, correspondence.Pairs, 2)

	assert.Equal(t, "batch/nightly-report", correspondence.Pairs[0].Key)
	require.NotNil(t, correspondence.Pairs[0].Check)
	assert.Equal(t, pingA, correspondence.Pairs[0].Check.ID())

	assert.Equal(t, "etl/hourly-sync", correspondence.Pairs[1].Key)
	assert.Nil(t, correspondence.Pairs[1].Check)

	require.Len(t, correspondence.Orphans, 1)
	assert.Equal(t, "etl/retired", correspondence.Orphans[0].Name)
}

func TestBuild_DuplicateScanCollapses(t *testing.T) {
	job := workload("batch", "nightly-report", "30 3 * * *")

	// The same context:namespace listed twice, e.g. overlapping targets.
	correspondence, err := Build([]kube.Workload{job, job}, nil)
	require.NoError(t, err)
	assert.Len(t, correspondence.Pairs, 1)
}

func TestBuild_CollisionIsFatal(t *testing.T) {
	first := workload("batch", "nightly-report", "30 3 * * *")
	second := workload("batch", "nightly-report", "30 3 * * *")
	second.Context = "staging"

	_, err := Build([]kube.Workload{first, second}, nil)
	require.Error(t, err)

	var collision *IdentityCollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, "batch/nightly-report", collision.Key)
	assert.Equal(t, "prod", collision.First.Context)
	assert.Equal(t, "staging", collision.Second.Context)
}

func TestBuild_ScalesLinearly(t *testing.T) {
	// A smoke test for the O(W + M) join: large disjoint inputs still
	// pair up correctly.
	var workloads []kube.Workload
	var checks []healthchecks.Check
	for i := 0; i < 1000; i++ {
		workloads = append(workloads, workload("batch", fmt.Sprintf("job-%04d", i), "* * * * *"))
		checks = append(checks, healthchecks.Check{Name: KeyV1("batch", fmt.Sprintf("job-%04d", i))})
	}

	correspondence, err := Build(workloads, checks)
	require.NoError(t, err)
	assert.Len(t, correspondence.Pairs, 1000)
	assert.Empty(t, correspondence.Orphans)
	for _, pair := range correspondence.Pairs {
		assert.NotNil(t, pair.Check)
	}
}

package kube

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/Jezza/healthkube/internal/target"
)

func fakeFleet(t *testing.T, clientsets map[string]*fake.Clientset) *Fleet {
	t.Helper()
	return NewFleetWithFactory(func(contextName string) (*Source, error) {
		clientset, ok := clientsets[contextName]
		if !ok {
			return nil, errors.New("unknown context " + contextName)
		}
		return NewSourceWithClientset(contextName, clientset), nil
	})
}

func TestScan_MergesAcrossTargets(t *testing.T) {
	fleet := fakeFleet(t, map[string]*fake.Clientset{
		"prod": fake.NewSimpleClientset(
			newCronJob("batch", "a", "* * * * *", false, nil),
			newCronJob("etl", "b", "* * * * *", false, nil),
		),
		"staging": fake.NewSimpleClientset(
			newCronJob("batch", "c", "* * * * *", false, nil),
		),
	})

	specs, err := target.Resolve([]string{"prod:batch,etl", "staging:batch"})
	require.NoError(t, err)

	workloads, err := Scan(context.Background(), fleet, specs, "HC_PING_ID", 2)
	require.NoError(t, err)
	require.Len(t, workloads, 3)

	contexts := map[string]int{}
	for _, workload := range workloads {
		contexts[workload.Context]++
	}
	assert.Equal(t, 2, contexts["prod"])
	assert.Equal(t, 1, contexts["staging"])
}

func TestScan_AllNamespacesTarget(t *testing.T) {
	fleet := fakeFleet(t, map[string]*fake.Clientset{
		"prod": fake.NewSimpleClientset(
			newCronJob("batch", "a", "* * * * *", false, nil),
			newCronJob("etl", "b", "* * * * *", false, nil),
		),
	})

	specs, err := target.Resolve([]string{"prod"})
	require.NoError(t, err)

	workloads, err := Scan(context.Background(), fleet, specs, "HC_PING_ID", 0)
	require.NoError(t, err)
	assert.Len(t, workloads, 2)
}

func TestScan_UnknownContextFailsScan(t *testing.T) {
	fleet := fakeFleet(t, map[string]*fake.Clientset{
		"prod": fake.NewSimpleClientset(),
	})

	specs, err := target.Resolve([]string{"prod", "missing"})
	require.NoError(t, err)

	_, err = Scan(context.Background(), fleet, specs, "HC_PING_ID", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestFleet_ReusesSources(t *testing.T) {
	built := 0
	fleet := NewFleetWithFactory(func(contextName string) (*Source, error) {
		built++
		return NewSourceWithClientset(contextName, fake.NewSimpleClientset()), nil
	})

	first, err := fleet.Source("prod")
	require.NoError(t, err)
	second, err := fleet.Source("prod")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}

func TestFleet_PatchRoutesByWorkloadContext(t *testing.T) {
	prod := fake.NewSimpleClientset(newCronJob("batch", "a", "* * * * *", false, nil))
	fleet := fakeFleet(t, map[string]*fake.Clientset{"prod": prod})

	workload := Workload{
		Context:    "prod",
		Namespace:  "batch",
		Name:       "a",
		Containers: []string{"worker"},
	}
	err := fleet.PatchPingEnv(context.Background(), workload, "HC_PING_ID", "uuid-1")
	require.NoError(t, err)

	err = fleet.PatchPingEnv(context.Background(), Workload{Context: "unknown"}, "HC_PING_ID", "uuid-1")
	assert.Error(t, err)
}

package kube

import (
	"context"
	"sync"
)

// Fleet hands out one Source per kubeconfig context, constructing each
// lazily and reusing it across targets. It also routes env patches back
// to the context a workload was listed from, which lets the reconciler
// treat the whole fleet as a single patcher.
type Fleet struct {
	mu      sync.Mutex
	sources map[string]*Source
	factory func(contextName string) (*Source, error)
}

// NewFleet creates a Fleet backed by the standard kubeconfig loading
// rules.
func NewFleet() *Fleet {
	return NewFleetWithFactory(NewSource)
}

// NewFleetWithFactory creates a Fleet with a custom source constructor,
// used by tests to inject fake clientsets.
func NewFleetWithFactory(factory func(contextName string) (*Source, error)) *Fleet {
	return &Fleet{
		sources: make(map[string]*Source),
		factory: factory,
	}
}

// Source returns the Source for a context, creating it on first use.
func (f *Fleet) Source(contextName string) (*Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if source, ok := f.sources[contextName]; ok {
		return source, nil
	}
	source, err := f.factory(contextName)
	if err != nil {
		return nil, err
	}
	f.sources[contextName] = source
	return source, nil
}

// PatchPingEnv routes the env write-back to the workload's own context.
func (f *Fleet) PatchPingEnv(ctx context.Context, workload Workload, envKey, value string) error {
	source, err := f.Source(workload.Context)
	if err != nil {
		return err
	}
	return source.PatchPingEnv(ctx, workload.Namespace, workload.Name, envKey, value, workload.Containers)
}

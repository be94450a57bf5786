package reconcile

import (
	"fmt"

	"github.com/Jezza/healthkube/internal/healthchecks"
	"github.com/Jezza/healthkube/internal/kube"
)

// KeyV1 derives the identity key linking a workload to its remote check.
// Version 1 is the namespace-qualified name, "namespace/name". The
// derivation is injective for valid Kubernetes names (which cannot
// contain '/') and must stay stable across runs: the key is the only
// link between the two systems, there is no persisted ID mapping. Any
// change to the derivation is a new versioned function plus a deliberate
// migration, never an edit to this one.
func KeyV1(namespace, name string) string {
	return namespace + "/" + name
}

// IdentityCollisionError reports two distinct workloads mapping to the
// same identity key. It is fatal for the run: reconciling either
// workload would clobber the other's check.
type IdentityCollisionError struct {
	Key    string
	First  kube.Workload
	Second kube.Workload
}

func (e *IdentityCollisionError) Error() string {
	return fmt.Sprintf("identity key collision on %q: %s/%s/%s and %s/%s/%s",
		e.Key,
		e.First.Context, e.First.Namespace, e.First.Name,
		e.Second.Context, e.Second.Namespace, e.Second.Name)
}

// Pair joins one workload with its existing remote check, if any.
// Pairs only live within a single reconciliation pass.
type Pair struct {
	Key      string
	Workload kube.Workload

	// Check is the existing remote check, nil when none matched.
	Check *healthchecks.Check
}

// Correspondence is the joined view of one pass: every workload paired
// with its check, plus the remote checks no workload claimed.
type Correspondence struct {
	Pairs []Pair

	// Orphans are checks whose name matches no scanned workload. They
	// are reported, and deleted only under an explicit opt-in.
	Orphans []healthchecks.Check
}

// Build joins workloads and checks by identity key in O(W + M). The
// same workload observed twice (overlapping targets) collapses to one
// pair; two different workloads on one key is a collision and fails the
// run.
func Build(workloads []kube.Workload, checks []healthchecks.Check) (Correspondence, error) {
	byKey := make(map[string]*healthchecks.Check, len(checks))
	for i := range checks {
		byKey[checks[i].Name] = &checks[i]
	}

	var correspondence Correspondence
	seen := make(map[string]kube.Workload, len(workloads))
	claimed := make(map[string]bool, len(workloads))

	for _, workload := range workloads {
		key := KeyV1(workload.Namespace, workload.Name)

		if first, ok := seen[key]; ok {
			if sameWorkload(first, workload) {
				// The same job scanned via overlapping targets.
				continue
			}
			return Correspondence{}, &IdentityCollisionError{Key: key, First: first, Second: workload}
		}
		seen[key] = workload
		claimed[key] = true

		correspondence.Pairs = append(correspondence.Pairs, Pair{
			Key:      key,
			Workload: workload,
			Check:    byKey[key],
		})
	}

	for i := range checks {
		if !claimed[checks[i].Name] {
			correspondence.Orphans = append(correspondence.Orphans, checks[i])
		}
	}

	return correspondence, nil
}

func sameWorkload(a, b kube.Workload) bool {
	return a.Context == b.Context && a.Namespace == b.Namespace && a.Name == b.Name
}

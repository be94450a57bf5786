// Package reconcile implements the diffing-and-convergence core of
// healthkube.
//
// # Overview
//
// One reconciliation pass takes the full list of scanned workloads and
// the full list of remote checks, joins them by a versioned identity key
// (KeyV1, "namespace/name"), and decides one action per pair: create a
// missing check, replace a drifted one, pause or skip a suspended
// workload's check, or leave a converged pair alone. Remote checks no
// workload claims are reported as orphans and deleted only under an
// explicit opt-in.
//
// # Guarantees
//
//   - Idempotence: a second pass over unchanged inputs issues zero
//     mutations.
//   - Ordering: the ping identifier is written into a workload only
//     after the create or update call for that pair has succeeded. A
//     crash in between is repaired by the next pass, which finds the
//     check by identity key and retries only the env patch.
//   - Isolation: pairs reconcile independently with bounded
//     concurrency; one pair's failure never stops the others. Failures
//     are collected and reported together.
//   - Collisions are fatal: two distinct workloads deriving the same
//     identity key abort the run before any mutation.
//
// Updates use replace semantics. The full desired configuration is sent
// every time a field differs, so manual edits to managed checks cannot
// drift half-tracked.
package reconcile

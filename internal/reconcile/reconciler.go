package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kushsharma/parallel"

	"github.com/Jezza/healthkube/internal/healthchecks"
	"github.com/Jezza/healthkube/internal/kube"
	"github.com/Jezza/healthkube/pkg/logging"
)

const (
	// defaultConcurrency bounds how many pairs reconcile at once. Pairs
	// are independent; only the create-then-patch ordering inside one
	// pair is sequential.
	defaultConcurrency = 4

	// statusPaused is the remote status of a paused check.
	statusPaused = "paused"
)

// ReconcileError is a per-pair mutation failure. It is isolated: other
// pairs keep reconciling, and the run reports a partial failure.
type ReconcileError struct {
	Key string
	Err error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Key, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// PatchError is an env write-back failure after the check itself was
// reconciled. It leaves a recoverable inconsistency: the next run finds
// the check by identity key and retries only the patch.
type PatchError struct {
	Key string
	Err error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch env for %s: %v", e.Key, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// MonitorAPI is the mutation surface of the health-check service the
// reconciler needs.
type MonitorAPI interface {
	CreateCheck(ctx context.Context, params healthchecks.CheckParams) (healthchecks.Check, error)
	UpdateCheck(ctx context.Context, id string, params healthchecks.CheckParams) (healthchecks.Check, error)
	PauseCheck(ctx context.Context, id string) (healthchecks.Check, error)
	DeleteCheck(ctx context.Context, id string) error
}

// EnvPatcher writes a confirmed ping identifier back into a workload.
type EnvPatcher interface {
	PatchPingEnv(ctx context.Context, workload kube.Workload, envKey, value string) error
}

// Options configure one reconciliation pass.
type Options struct {
	// EnvKey is the environment variable receiving the ping ID. Empty
	// disables the write-back entirely.
	EnvKey string

	// Timezone applied to every check's cron schedule.
	Timezone string

	// GraceMargin is added to the derived cadence to form the grace
	// period.
	GraceMargin time.Duration

	// Channels are the integration IDs to assign to every check.
	Channels []string

	// TagRank is the occurrence threshold above which a name segment
	// becomes a tag.
	TagRank int

	// SuspendedPolicy decides how suspended workloads are treated.
	SuspendedPolicy SuspendedPolicy

	// DeleteOrphans enables deletion of checks with no matching
	// workload. Orphans are otherwise only reported.
	DeleteOrphans bool

	// DryRun computes and reports every action without issuing any
	// mutating call, remote or cluster.
	DryRun bool

	// Concurrency bounds parallel pair reconciliation. Zero means the
	// default.
	Concurrency int
}

// Outcome is the result of reconciling one pair.
type Outcome struct {
	Key    string
	Action Action

	// PingID is the confirmed ping identifier, "" when the check was
	// not materialized (dry run, skip, failure).
	PingID string

	// Patched is true when the env write-back was issued this run.
	Patched bool

	// Err is the pair's failure, nil on success.
	Err error
}

// OrphanOutcome reports one unmatched remote check.
type OrphanOutcome struct {
	Check   healthchecks.Check
	Deleted bool
	Err     error
}

// Result aggregates a whole pass.
type Result struct {
	Outcomes []Outcome
	Orphans  []OrphanOutcome

	// Err collects every per-pair and per-orphan failure.
	Err error
}

// Failed reports whether any pair or orphan failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Reconciler converges remote checks onto the scanned workloads.
type Reconciler struct {
	monitors MonitorAPI
	patcher  EnvPatcher
	opts     Options
}

// New creates a Reconciler. patcher may be nil when opts.EnvKey is
// empty.
func New(monitors MonitorAPI, patcher EnvPatcher, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.SuspendedPolicy == "" {
		opts.SuspendedPolicy = SuspendSkip
	}
	return &Reconciler{monitors: monitors, patcher: patcher, opts: opts}
}

// Run executes one pass over a built correspondence. Pairs reconcile
// with bounded concurrency; a failed pair never stops the others. The
// returned Result carries one Outcome per pair in input order.
func (r *Reconciler) Run(ctx context.Context, correspondence Correspondence) Result {
	names := make([]string, 0, len(correspondence.Pairs))
	for _, pair := range correspondence.Pairs {
		names = append(names, pair.Workload.Name)
	}
	common := CommonSegments(names, r.opts.TagRank)

	runner := parallel.NewRunner(parallel.WithLimit(r.opts.Concurrency))
	for _, pair := range correspondence.Pairs {
		runner.Add(func(p Pair) func() (interface{}, error) {
			return func() (interface{}, error) {
				// Failures travel inside the Outcome; per-pair isolation
				// means the runner itself never sees them.
				return r.reconcilePair(ctx, p, common), nil
			}
		}(pair))
	}

	var result Result
	var errs error
	for _, state := range runner.Run() {
		outcome := state.Val.(Outcome)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Err != nil {
			errs = multierror.Append(errs, outcome.Err)
		}
	}

	for _, orphan := range correspondence.Orphans {
		outcome := r.handleOrphan(ctx, orphan)
		result.Orphans = append(result.Orphans, outcome)
		if outcome.Err != nil {
			errs = multierror.Append(errs, outcome.Err)
		}
	}

	result.Err = errs
	return result
}

// reconcilePair decides and executes the minimal mutation for one pair.
// The env write-back only ever runs after the check mutation for the
// same pair has been confirmed, so a crash in between leaves a state the
// next run repairs.
func (r *Reconciler) reconcilePair(ctx context.Context, pair Pair, common map[string]int) Outcome {
	if pair.Workload.Suspended {
		return r.reconcileSuspended(ctx, pair)
	}

	desired, err := desiredParams(pair, TagsFor(pair.Workload.Name, common), r.opts.Channels, r.opts.Timezone, r.opts.GraceMargin)
	if err != nil {
		return Outcome{Key: pair.Key, Err: &ReconcileError{Key: pair.Key, Err: err}}
	}

	outcome := Outcome{Key: pair.Key}
	switch {
	case pair.Check == nil:
		outcome.Action = ActionCreate
		if r.opts.DryRun {
			logging.Info("Reconciler", "[dry-run] would create check %s", pair.Key)
			return outcome
		}
		check, err := r.monitors.CreateCheck(ctx, desired)
		if err != nil {
			outcome.Err = &ReconcileError{Key: pair.Key, Err: err}
			return outcome
		}
		outcome.PingID = check.ID()
		logging.Info("Reconciler", "Created check %s", pair.Key)

	case needsUpdate(*pair.Check, desired):
		outcome.Action = ActionUpdate
		if r.opts.DryRun {
			logging.Info("Reconciler", "[dry-run] would update check %s", pair.Key)
			return outcome
		}
		id := pair.Check.ID()
		if id == "" {
			outcome.Err = &ReconcileError{Key: pair.Key, Err: fmt.Errorf("existing check has no parseable ping ID")}
			return outcome
		}
		check, err := r.monitors.UpdateCheck(ctx, id, desired)
		if err != nil {
			outcome.Err = &ReconcileError{Key: pair.Key, Err: err}
			return outcome
		}
		outcome.PingID = check.ID()
		logging.Info("Reconciler", "Updated check %s", pair.Key)

	default:
		outcome.Action = ActionNoOp
		outcome.PingID = pair.Check.ID()
	}

	if outcome.PingID == "" {
		outcome.Err = &ReconcileError{Key: pair.Key, Err: fmt.Errorf("service returned no parseable ping ID")}
		return outcome
	}

	r.patchEnv(ctx, pair, &outcome)
	return outcome
}

// reconcileSuspended applies the configured policy uniformly: skip
// leaves the check alone, pause pauses a running check. Suspended
// workloads never get a new check and never get env patches; both would
// reference a job that is not producing pings.
func (r *Reconciler) reconcileSuspended(ctx context.Context, pair Pair) Outcome {
	outcome := Outcome{Key: pair.Key, Action: ActionSkip}
	if r.opts.SuspendedPolicy != SuspendPause {
		return outcome
	}

	outcome.Action = ActionPause
	if pair.Check == nil || pair.Check.Status == statusPaused {
		return outcome
	}
	if r.opts.DryRun {
		logging.Info("Reconciler", "[dry-run] would pause check %s", pair.Key)
		return outcome
	}

	id := pair.Check.ID()
	if id == "" {
		outcome.Err = &ReconcileError{Key: pair.Key, Err: fmt.Errorf("existing check has no parseable ping ID")}
		return outcome
	}
	if _, err := r.monitors.PauseCheck(ctx, id); err != nil {
		outcome.Err = &ReconcileError{Key: pair.Key, Err: err}
		return outcome
	}
	logging.Info("Reconciler", "Paused check %s for suspended cronjob", pair.Key)
	return outcome
}

// patchEnv writes the confirmed ping ID back into the workload when it
// differs from the current value. Repeated runs with no drift issue no
// writes.
func (r *Reconciler) patchEnv(ctx context.Context, pair Pair, outcome *Outcome) {
	if r.opts.EnvKey == "" || r.opts.DryRun {
		return
	}
	if pair.Workload.EnvValue == outcome.PingID {
		return
	}

	if err := r.patcher.PatchPingEnv(ctx, pair.Workload, r.opts.EnvKey, outcome.PingID); err != nil {
		outcome.Err = &PatchError{Key: pair.Key, Err: err}
		return
	}
	outcome.Patched = true
	logging.Info("Reconciler", "Patched %s into %s", r.opts.EnvKey, pair.Key)
}

func (r *Reconciler) handleOrphan(ctx context.Context, check healthchecks.Check) OrphanOutcome {
	outcome := OrphanOutcome{Check: check}
	if !r.opts.DeleteOrphans {
		logging.Warn("Reconciler", "Orphaned check %q has no matching cronjob", check.Name)
		return outcome
	}
	if r.opts.DryRun {
		logging.Info("Reconciler", "[dry-run] would delete orphaned check %q", check.Name)
		return outcome
	}

	id := check.ID()
	if id == "" {
		outcome.Err = &ReconcileError{Key: check.Name, Err: fmt.Errorf("orphaned check has no parseable ping ID")}
		return outcome
	}
	if err := r.monitors.DeleteCheck(ctx, id); err != nil {
		outcome.Err = &ReconcileError{Key: check.Name, Err: err}
		return outcome
	}
	outcome.Deleted = true
	logging.Info("Reconciler", "Deleted orphaned check %q", check.Name)
	return outcome
}

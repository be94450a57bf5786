package reconcile

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Jezza/healthkube/internal/healthchecks"
	"github.com/Jezza/healthkube/internal/schedule"
)

// Action is the mutation decided for one pair.
type Action string

const (
	// ActionCreate creates a missing check.
	ActionCreate Action = "Create"

	// ActionUpdate replaces the configuration of a drifted check.
	ActionUpdate Action = "Update"

	// ActionNoOp leaves a converged check untouched.
	ActionNoOp Action = "NoOp"

	// ActionSkip leaves a suspended workload's check untouched (skip
	// policy).
	ActionSkip Action = "Skip"

	// ActionPause pauses a suspended workload's check (pause policy).
	ActionPause Action = "Pause"

	// ActionOrphan marks a check with no matching workload.
	ActionOrphan Action = "Orphan"
)

// SuspendedPolicy decides what happens to checks of suspended CronJobs.
// It is applied uniformly to every suspended workload in a run.
type SuspendedPolicy string

const (
	// SuspendSkip leaves the remote check exactly as it is.
	SuspendSkip SuspendedPolicy = "skip"

	// SuspendPause pauses the remote check so it does not alert while
	// the job is suspended. A paused check resumes on its next ping.
	SuspendPause SuspendedPolicy = "pause"
)

// Valid reports whether the policy is one of the known values.
func (p SuspendedPolicy) Valid() bool {
	return p == SuspendSkip || p == SuspendPause
}

// desiredParams computes the full desired check configuration for a
// workload. Updates send this configuration wholesale (replace
// semantics), so every field compared by needsUpdate must be set here.
func desiredParams(pair Pair, tags []string, channels []string, timezone string, margin time.Duration) (healthchecks.CheckParams, error) {
	spec, err := schedule.Parse(pair.Workload.Schedule)
	if err != nil {
		return healthchecks.CheckParams{}, err
	}
	timing := schedule.DeriveTiming(spec, margin)

	// Channels are compared as a set against the remote's stored list, so
	// a repeated ID must not survive into the desired configuration or
	// the pair would read as drifted forever.
	sortedChannels := append([]string(nil), channels...)
	sort.Strings(sortedChannels)
	sortedChannels = slices.Compact(sortedChannels)

	return healthchecks.CheckParams{
		Name:     pair.Key,
		Tags:     strings.Join(tags, " "),
		Schedule: pair.Workload.Schedule,
		TZ:       timezone,
		Grace:    int(timing.Grace / time.Second),
		Channels: strings.Join(sortedChannels, ","),
		Unique:   []string{"name"},
	}, nil
}

// needsUpdate compares an existing check against the desired
// configuration field by field: schedule, timezone, grace, tag set, and
// channel set. Any difference triggers a full replace.
func needsUpdate(existing healthchecks.Check, desired healthchecks.CheckParams) bool {
	if existing.Schedule != desired.Schedule {
		return true
	}
	if existing.TZ != desired.TZ {
		return true
	}
	if existing.Grace != desired.Grace {
		return true
	}
	if !sameSet(existing.TagList(), strings.Fields(desired.Tags)) {
		return true
	}
	if !sameSet(existing.ChannelList(), splitChannels(desired.Channels)) {
		return true
	}
	return false
}

func splitChannels(channels string) []string {
	if channels == "" {
		return nil
	}
	return strings.Split(channels, ",")
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Package schedule parses cron expressions and derives check timing
// (expected period and grace) from a job's cadence.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Timing bounds accepted by the Healthchecks API, in seconds.
const (
	minPeriod = time.Minute
	maxPeriod = 365 * 24 * time.Hour
)

// anchor is the fixed reference time used for cadence sampling. Deriving
// from a constant instead of time.Now keeps the computation deterministic
// across runs, which in turn keeps repeated reconciliations idempotent.
var anchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// sampleCount is the number of consecutive fire times inspected when
// searching for the smallest gap. Large enough to cover a full cycle of
// minute/hour/day-of-week patterns without scanning a whole year.
const sampleCount = 64

// Spec wraps a parsed cron schedule.
type Spec struct {
	expression string
	schd       cron.Schedule
}

// Parse parses a standard five-field cron expression or a descriptor
// such as "@daily". It returns a descriptive error for invalid input.
func Parse(expression string) (*Spec, error) {
	schd, err := cron.ParseStandard(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	// Impossible field combinations ("0 0 30 2 *") parse but never
	// produce a fire time; a check for such a schedule would carry a
	// meaningless grace, so fail here instead.
	if schd.Next(anchor).IsZero() {
		return nil, fmt.Errorf("cron expression %q never fires", expression)
	}
	return &Spec{expression: expression, schd: schd}, nil
}

// Expression returns the original cron expression.
func (s *Spec) Expression() string {
	return s.expression
}

// Next returns the next fire time strictly after t.
func (s *Spec) Next(t time.Time) time.Time {
	return s.schd.Next(t)
}

// MinInterval returns the smallest gap between consecutive fire times,
// sampled over a fixed window from the anchor time. For schedules with a
// constant cadence this is exactly the cadence; for irregular schedules
// it is the tightest spacing the check has to tolerate.
func (s *Spec) MinInterval() time.Duration {
	min := time.Duration(0)
	prev := s.schd.Next(anchor)
	for i := 0; i < sampleCount; i++ {
		next := s.schd.Next(prev)
		gap := next.Sub(prev)
		if min == 0 || gap < min {
			min = gap
		}
		prev = next
	}
	return min
}

// Timing is the derived check timing sent to the remote service.
type Timing struct {
	// Period is the expected interval between pings.
	Period time.Duration

	// Grace is how long a ping may be late before the check alerts.
	Grace time.Duration
}

// DeriveTiming computes check timing for a cron cadence. The period is
// the smallest fire interval; the grace is that interval plus the given
// safety margin, so a check is never marked down between two legitimate
// consecutive runs. Both values are clamped to the bounds the remote
// service accepts. The computation is a pure function of its inputs.
func DeriveTiming(s *Spec, margin time.Duration) Timing {
	interval := s.MinInterval()
	return Timing{
		Period: clamp(interval),
		Grace:  clamp(interval + margin),
	}
}

func clamp(d time.Duration) time.Duration {
	if d < minPeriod {
		return minPeriod
	}
	if d > maxPeriod {
		return maxPeriod
	}
	return d
}

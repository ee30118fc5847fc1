// Package lifecycle implements the age/state classification policy for
// workspace apps.
package lifecycle

import "time"

// Excluder reports whether an app identifier is currently shielded from
// lifecycle actions. Satisfied by exception.Index.
type Excluder interface {
	IsExcluded(appURL string) bool
}

// Result pairs a decision with the inputs that produced it, so callers can
// log a reason without recomputing ages.
type Result struct {
	Decision Decision
	AgeDays  int
	Reason   string
}

// Classify decides the lifecycle action for one app. Evaluation order, first
// match wins:
//
//  1. excluded -> SKIP
//  2. ACTIVE and older than MaxAgeBeforeStop -> STOP
//  3. STOPPED and older than MaxAppAge -> DELETE
//  4. otherwise -> NONE
//
// Ages are whole days, truncated toward zero; an age exactly equal to a
// threshold does not trigger an action. States other than ACTIVE/STOPPED
// always yield NONE. Classify has no side effects.
func Classify(app App, index Excluder, thresholds Thresholds, now time.Time) Result {
	ageDays := AgeDays(app.UpdatedAt, now)

	if index != nil && index.IsExcluded(app.URL) {
		return Result{Decision: DecisionSkip, AgeDays: ageDays, Reason: "active exception"}
	}

	switch app.State {
	case StateActive:
		if ageDays > thresholds.MaxAgeBeforeStop {
			return Result{Decision: DecisionStop, AgeDays: ageDays, Reason: "active and stale"}
		}
	case StateStopped:
		if ageDays > thresholds.MaxAppAge {
			return Result{Decision: DecisionDelete, AgeDays: ageDays, Reason: "stopped and stale"}
		}
	default:
		return Result{Decision: DecisionNone, AgeDays: ageDays, Reason: "no transition for state " + string(app.State)}
	}

	return Result{Decision: DecisionNone, AgeDays: ageDays, Reason: "within thresholds"}
}

// AgeDays returns the whole number of days between then and now, truncated
// toward zero. Negative spans (clock skew, future timestamps) yield negative
// or zero ages and therefore never trigger an action.
func AgeDays(then, now time.Time) int {
	return int(now.Sub(then).Hours() / 24)
}

package lifecycle

import "time"

// State is the compute state of an app as reported by the workspace service.
type State string

const (
	StateActive  State = "ACTIVE"
	StateStopped State = "STOPPED"
)

// App is a read-only snapshot of a deployed workspace application.
// It is fetched once per workspace per run and never mutated locally;
// state changes happen only through the service's stop/delete calls.
type App struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"create_time"`
	UpdatedAt time.Time `json:"update_time"`
}

// Decision is the outcome of classifying a single app.
type Decision string

const (
	// DecisionSkip means the app is shielded by an active exception.
	DecisionSkip Decision = "SKIP"
	// DecisionStop means the app is ACTIVE and stale enough to stop.
	DecisionStop Decision = "STOP"
	// DecisionDelete means the app is STOPPED and stale enough to delete.
	DecisionDelete Decision = "DELETE"
	// DecisionNone means no transition applies.
	DecisionNone Decision = "NONE"
)

// Thresholds holds the age limits, in whole days, for the two transitions.
type Thresholds struct {
	// MaxAgeBeforeStop is the number of days an ACTIVE app may go without
	// an update before it is stopped.
	MaxAgeBeforeStop int
	// MaxAppAge is the number of days a STOPPED app may go without an
	// update before it is deleted.
	MaxAppAge int
}

// DefaultThresholds returns the stock stop-after-3 / delete-after-7 policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxAgeBeforeStop: 3,
		MaxAppAge:        7,
	}
}

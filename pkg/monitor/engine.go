// Package monitor decides when a balance reading warrants an alert and
// drives the poll cycle cadence.
package monitor

import "github.com/weilai0412/dormwatt/pkg/portal"

// Decision is the outcome of evaluating one reading against the threshold.
// Only triggered decisions are forwarded for dispatch.
type Decision struct {
	Room      string
	Balance   float64
	Threshold float64
	Triggered bool
}

// Evaluate compares a reading against the alert threshold. Strict less-than:
// a balance exactly equal to the threshold does not trigger. There is no
// cross-cycle cooldown; operators control alert frequency through the check
// interval.
func Evaluate(r portal.Reading, threshold float64) Decision {
	return Decision{
		Room:      r.Room,
		Balance:   r.Balance,
		Threshold: threshold,
		Triggered: r.Balance < threshold,
	}
}

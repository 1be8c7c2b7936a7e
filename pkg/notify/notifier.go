// Package notify delivers low-balance alerts to email and push recipients
// with per-target failure isolation.
package notify

import (
	"context"
	"time"
)

// Alert is a triggered low-balance notification for one room.
type Alert struct {
	Room      string
	Balance   float64
	Threshold float64
	At        time.Time
}

// Notifier delivers an alert to a single recipient over one channel.
type Notifier interface {
	// Name identifies the channel and recipient for logs.
	Name() string

	// Send delivers the alert. A failure concerns this target only and
	// must not affect delivery to other targets.
	Send(ctx context.Context, alert Alert) error
}

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/weilai0412/dormwatt/internal/config"
	"github.com/weilai0412/dormwatt/pkg/monitor"
)

// Dispatcher fans a triggered decision out to every configured recipient on
// every enabled channel for the room.
type Dispatcher struct {
	smtp   config.SMTPConfig
	build  func(q config.RoomQuery) []Notifier
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher sending email through the given SMTP
// settings and push through ServerChan.
func NewDispatcher(smtp config.SMTPConfig, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{smtp: smtp, logger: logger}
	d.build = d.Targets
	return d
}

// NewDispatcherWithTargets creates a dispatcher with a custom target
// builder. Used by tests to substitute mock notifiers.
func NewDispatcherWithTargets(build func(q config.RoomQuery) []Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{build: build, logger: logger}
}

// Targets enumerates the notification targets for a room: one email
// notifier per recipient, plus one push notifier per ServerChan recipient
// when push is enabled for the room.
func (d *Dispatcher) Targets(q config.RoomQuery) []Notifier {
	var ns []Notifier
	for _, rcpt := range q.Recipients {
		ns = append(ns, NewEmailNotifier(d.smtp, rcpt))
	}
	if q.ServerChan.Enabled {
		for _, r := range q.ServerChan.Recipients {
			ns = append(ns, NewServerChanNotifier(r.UID, ServerChanEndpoint(r.UID, r.SendKey)))
		}
	}
	return ns
}

// Dispatch attempts delivery to every target. A failed send is logged with
// room and target context and does not block the remaining targets; there
// are no retries within a cycle (the next poll re-dispatches if the
// condition persists). Returns the number of failed sends.
func (d *Dispatcher) Dispatch(ctx context.Context, dec monitor.Decision, q config.RoomQuery) int {
	alert := Alert{
		Room:      dec.Room,
		Balance:   dec.Balance,
		Threshold: dec.Threshold,
		At:        time.Now(),
	}

	failed := 0
	for _, n := range d.build(q) {
		if err := n.Send(ctx, alert); err != nil {
			failed++
			d.logger.Error("notification failed", "room", dec.Room, "target", n.Name(), "error", err)
			continue
		}
		d.logger.Info("notification sent", "room", dec.Room, "target", n.Name())
	}
	return failed
}

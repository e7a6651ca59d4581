package realtime

import (
	"log/slog"

	"github.com/mcoot/bananaclick/internal/model"
)

// Dispatcher delivers events to connections in the hub. Delivery is best
// effort: a full queue drops the frame and nothing is retried.
type Dispatcher struct {
	hub    *Hub
	logger *slog.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(hub *Hub, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hub:    hub,
		logger: logger.With(slog.String("component", "dispatcher")),
	}
}

// NotifyAll sends event to every open connection and returns how many
// accepted it
func (d *Dispatcher) NotifyAll(event string, payload any) int {
	return d.broadcast(event, payload, func(Conn) bool { return true })
}

// NotifyRole sends event to every open connection whose identity has role
func (d *Dispatcher) NotifyRole(role model.Role, event string, payload any) int {
	return d.broadcast(event, payload, func(c Conn) bool { return c.Identity().Role == role })
}

// Unicast sends event to a single connection
func (d *Dispatcher) Unicast(c Conn, event string, payload any) bool {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		d.logger.Error("failed to encode frame", slog.String("event", event), slog.Any("error", err))
		return false
	}
	if !c.Send(frame) {
		d.logger.Warn("message dropped - client buffer full",
			slog.String("event", event),
			slog.String("conn_id", c.ID()),
			slog.String("account_id", string(c.Identity().ID)))
		return false
	}
	return true
}

func (d *Dispatcher) broadcast(event string, payload any, include func(Conn) bool) int {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		d.logger.Error("failed to encode frame", slog.String("event", event), slog.Any("error", err))
		return 0
	}

	sent, dropped := 0, 0
	for _, c := range d.hub.Snapshot() {
		if !include(c) {
			continue
		}
		if c.Send(frame) {
			sent++
		} else {
			dropped++
			d.logger.Warn("message dropped - client buffer full",
				slog.String("event", event),
				slog.String("conn_id", c.ID()))
		}
	}
	if dropped > 0 {
		d.logger.Warn("broadcast partial failure",
			slog.String("event", event),
			slog.Int("sent", sent),
			slog.Int("dropped", dropped))
	}
	return sent
}

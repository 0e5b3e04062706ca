// README: At-most-once notification dispatcher over the presence registry.
package realtime

import (
	"go.uber.org/zap"

	"presto/internal/types"
)

// Dispatcher delivers events to currently connected participants. Delivery is
// best-effort: an offline recipient or a full send buffer drops the event and
// is never surfaced as an error to the triggering mutation.
type Dispatcher struct {
	registry *Registry
	log      *zap.Logger
}

func NewDispatcher(registry *Registry, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{registry: registry, log: log}
}

// Notify delivers ev to one participant if present. It reports whether the
// event was queued for delivery.
func (d *Dispatcher) Notify(id types.ID, role types.Role, ev Event) bool {
	h, ok := d.registry.Lookup(id, role)
	if !ok {
		d.log.Debug("notify dropped: recipient offline",
			zap.String("id", string(id)), zap.String("role", string(role)), zap.String("event", ev.Name))
		return false
	}
	if !h.Send(ev) {
		d.log.Debug("notify dropped: send buffer full",
			zap.String("id", string(id)), zap.String("role", string(role)), zap.String("event", ev.Name))
		return false
	}
	return true
}

// Broadcast delivers ev to every currently registered member of a pool and
// returns the number of queued deliveries.
func (d *Dispatcher) Broadcast(role types.Role, ev Event) int {
	sent := 0
	for _, h := range d.registry.handles(role) {
		if h.Send(ev) {
			sent++
		}
	}
	d.log.Debug("pool broadcast",
		zap.String("role", string(role)), zap.String("event", ev.Name), zap.Int("sent", sent))
	return sent
}

// BroadcastAll delivers ev to every connection in every pool.
func (d *Dispatcher) BroadcastAll(ev Event) int {
	sent := 0
	for _, h := range d.registry.handles("") {
		if h.Send(ev) {
			sent++
		}
	}
	return sent
}

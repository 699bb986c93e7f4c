package rooms

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Bus is the slice of the transport layer the reaper needs: it must be
// able to notify and drop every remaining subscriber of a room that is
// being evicted.
type Bus interface {
	// EvictRoom sends each subscriber of the room an unsubscribe notice
	// exactly once and removes the room's broadcast group.
	EvictRoom(roomID string)
}

// Reaper periodically destroys rooms idle past a threshold. A sweep is a
// single full scan of the registry and always completes one pass; there
// is no partial state to resume.
type Reaper struct {
	app       *App
	bus       Bus
	clock     clockwork.Clock
	interval  time.Duration
	threshold time.Duration
}

func NewReaper(app *App, bus Bus, clock clockwork.Clock, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		app:       app,
		bus:       bus,
		clock:     clock,
		interval:  interval,
		threshold: threshold,
	}
}

// Run sweeps on a fixed period until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", r.interval).
		Dur("threshold", r.threshold).
		Msg("inactivity reaper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("inactivity reaper stopped")
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Sweep evicts every room idle longer than the threshold: remaining
// subscribers are notified and unsubscribed first, then the room and both
// of its tokens are destroyed. Destruction re-checks idleness under the
// registry mutex, so a subscribe that races the sweep keeps its room
// alive instead of ending up attached to a destroyed one.
func (r *Reaper) Sweep() {
	destroyed := 0
	for _, id := range r.app.IdleRoomIDs(r.threshold) {
		r.bus.EvictRoom(id)
		if r.app.DestroyIfIdle(id, r.threshold) {
			destroyed++
		}
	}
	if destroyed > 0 {
		log.Info().Int("rooms", destroyed).Msg("evicted idle rooms")
	}
}

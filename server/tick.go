package server

import (
	"context"
	"time"
)

// run is the single loop that owns the world. Client events, persistence
// completions and the broadcast tick are handled strictly one at a time.
func (w *World) run(ctx context.Context) {
	defer close(w.stopped)

	interval := w.cfg.BroadcastInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case fn := <-w.inbox:
			w.step(fn)
		case <-ticker.C:
			w.step(func(w *World, fx *effects) { w.tick(fx) })
			// interval can change through /admin/config
			if w.cfg.BroadcastInterval != interval {
				interval = w.cfg.BroadcastInterval
				ticker.Reset(interval)
			}
		}
	}
}

// tick expires stale chat bubbles, then sends updatePlayers if anything visible
// changed since the last one.
func (w *World) tick(fx *effects) {
	now := w.now()
	for _, id := range w.registry.IDs() {
		p, _ := w.registry.Get(id)
		if expireChat(p, now, w.cfg) {
			w.dirty = true
		}
	}
	if w.dirty {
		w.broadcastPlayers(fx)
	}
}

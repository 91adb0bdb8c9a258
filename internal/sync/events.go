//go:build moire_instrument

package sync

import (
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// recordEvent stamps a fresh event id and records an event against target,
// swallowing the (practically unreachable) id-exhaustion error — observation
// events are best-effort relative to the mutation they describe.
func recordEvent(store *graph.Store, target ptime.EntityID, tag model.EventKindTag) {
	evID, err := ptime.NextEventID()
	if err != nil {
		return
	}
	store.RecordEvent(model.Event{
		ID:     evID,
		At:     ptime.Now(),
		Target: model.EntityTarget(target),
		Kind:   model.EventKind{Tag: tag},
	})
}

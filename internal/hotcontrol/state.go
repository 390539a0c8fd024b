package hotcontrol

import (
	"time"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

// connInfo tracks one live browser connection's resolved target and
// focus-priority timestamp, realizing spec.md §4.I's priority map.
type connInfo struct {
	target   types.TargetID
	priority time.Time
}

// state is the controller's single owned Model, extended with the
// connection bookkeeping spec.md §3 assigns to "Mutable" (watcher handle,
// WS server, worker-pool handle, connections list) but which the reducer
// still owns exclusively since it is only ever touched from the one event
// loop goroutine (spec.md §9's single-writer discipline).
type state struct {
	model *types.Model

	connections map[interfaces.WSConnection]*connInfo

	version string
	wsToken string

	watchConfigChanged bool
	lastWSClosedAt     time.Time
}

func newState(model *types.Model, version, wsToken string) *state {
	return &state{
		model:       model,
		connections: make(map[interfaces.WSConnection]*connInfo),
		version:     version,
		wsToken:     wsToken,
	}
}

// priorityMap implements spec.md §4.I's "For each live connection with a
// resolved target, priority = max(existing, connection.priority)".
func (s *state) priorityMap() map[types.TargetID]uint64 {
	out := make(map[types.TargetID]uint64, len(s.connections))
	for _, c := range s.connections {
		ts := uint64(c.priority.UnixNano())
		if existing, ok := out[c.target]; !ok || ts > existing {
			out[c.target] = ts
		}
	}
	return out
}

// liveTargetCount returns the number of distinct targets with at least one
// connected client, used by the worker-pool right-sizing calculation.
func (s *state) liveTargetCount() int {
	seen := make(map[types.TargetID]struct{}, len(s.connections))
	for _, c := range s.connections {
		seen[c.target] = struct{}{}
	}
	return len(seen)
}

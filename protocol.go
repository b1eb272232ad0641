package coherence

// The protocol table (peerTransition, below) is a data-driven lookup for how a peer's coherence state
// downgrades when another processor's miss snoops it, generated from the
// §4.3 prose algorithm rather than spread across if-chains. This mirrors
// the teacher's cpu_6502_opcode_table_gen.go: dispatch-by-table instead of
// dispatch-by-switch, so the transition matrix is a single data structure
// that can be unit-tested exhaustively over every (state, event) pair.
type snoopEvent int

const (
	// snoopRead is a peer's READ miss snooping this cache's line.
	snoopRead snoopEvent = iota
	// snoopWrite is a peer's WRITE miss (or upgrade) invalidating this line.
	snoopWrite
)

// peerTransition maps (current state, snoop event) to the resulting state.
// Absence of an entry means "no transition" (the state is left unchanged);
// States not reachable under a given event (e.g. Invalid, which is never a
// sharer) simply aren't looked up by the engine.
var peerTransition = map[State]map[snoopEvent]State{
	Modified: {
		snoopRead:  Owned,
		snoopWrite: Invalid,
	},
	Exclusive: {
		snoopRead:  Shared,
		snoopWrite: Invalid,
	},
	Owned: {
		snoopWrite: Invalid,
		// snoopRead: Owned (unchanged) — no entry needed.
	},
	Shared: {
		snoopWrite: Invalid,
		// snoopRead: Shared (unchanged) — no entry needed.
	},
}

// downgrade returns the state a peer transitions to (and whether any
// transition applies) when it is snooped by ev while holding cur.
func downgrade(cur State, ev snoopEvent) (State, bool) {
	if cur == Invalid {
		return Invalid, false
	}
	if row, ok := peerTransition[cur]; ok {
		if next, ok := row[ev]; ok {
			return next, true
		}
	}
	return cur, false
}

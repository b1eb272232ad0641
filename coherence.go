package coherence

// Peer names one processor's cache for the purposes of a coherence
// transaction: its id (for the deterministic ascending-id scan order of
// §4.3) and the cache itself.
type Peer struct {
	ID    int
	Cache *Cache
}

// Engine is the coherence engine (§4.3): invoked by a processor that has
// already acquired the bus and is servicing a miss (or a hit that needs to
// invalidate peers). It classifies the request as READ or WRITE, mutates
// every peer's line for the target address, and reports what the
// requester itself should install.
//
// Engine holds no per-transaction state of its own — callers hold the bus
// for the whole transaction, so Engine's methods are plain synchronous
// functions rather than anything with its own lifecycle.
type Engine struct {
	memory *Memory
}

// NewEngine builds a coherence engine backed by memory.
func NewEngine(memory *Memory) *Engine {
	return &Engine{memory: memory}
}

// ServiceReadMiss runs the §4.3 READ-miss algorithm: every peer holding
// the line downgrades (E→S, M→O; S and O are left alone), and returns the
// data word the requester should install along with the state it should
// install it in (E if there were no sharers, S otherwise).
//
// peers must be every other processor's Peer, in ascending id order — the
// engine does not sort them, so that tie-breaking is visibly the caller's
// responsibility (System builds this slice once, in construction order).
func (e *Engine) ServiceReadMiss(peers []Peer, addr int) (data uint16, newState State) {
	sawSharer := false
	haveOwnerData := false
	var ownerData uint16

	for _, p := range peers {
		v, ok := p.Cache.Lookup(addr)
		if !ok {
			continue
		}
		sawSharer = true

		if v.State == Modified || v.State == Owned {
			ownerData = v.Data
			haveOwnerData = true
		}

		if next, changed := downgrade(v.State, snoopRead); changed {
			p.Cache.SetState(addr, next)
		}
	}

	if haveOwnerData {
		data = ownerData
	} else {
		// No peer held dirty data: memory is not written on a read miss
		// even when an M peer downgrades to O (§4.3 step 4, and §9 open
		// question (c): clean transfer, never a writeback).
		data = e.memory.Read(addr)
	}

	if sawSharer {
		newState = Shared
	} else {
		newState = Exclusive
	}
	return data, newState
}

// InvalidatePeers invalidates every peer's line for addr, the shared first
// step of both a WRITE miss and a WRITE hit that needs to widen to
// exclusive access (§4.3 WRITE miss step 1, WRITE hit paragraph).
func (e *Engine) InvalidatePeers(peers []Peer, addr int) {
	for _, p := range peers {
		if _, ok := p.Cache.Lookup(addr); ok {
			p.Cache.SetState(addr, Invalid)
		}
	}
}

// ServiceWriteMiss runs the §4.3 WRITE-miss algorithm: invalidate every
// peer, then write the new data through to memory. The requester's own
// install (into state Modified) is left to the caller, which already
// knows whether it's installing fresh or overwriting a tag it owned.
//
// Memory is written through on a genuine WRITE miss — a simplification
// from strict MOESI, intentional per §4.3 step 3, so the bus's work is
// visible in the simulation rather than hidden until eviction.
func (e *Engine) ServiceWriteMiss(peers []Peer, addr int, data uint16) {
	e.InvalidatePeers(peers, addr)
	e.memory.Write(addr, data)
}

package coherence

import "sync"

// Block is one cache line: an address tag, a data word, a coherence
// state, and the lock that guards all three against concurrent mutation.
//
// A Block is mutated by two different actors: the owning processor's
// goroutine (on install/hit commit) and a remote requester's goroutine
// running the coherence engine during a bus transaction (on snoop). Both
// paths, and any observer snapshot, go through the lock — there is no
// lock-free fast path here, unlike the teacher's VBlank-polling bus reads,
// because the payload (five-way state plus data) cannot be packed into a
// single word cheaply.
type Block struct {
	mu      sync.Mutex
	address int
	data    uint16
	state   State
}

// View is a frozen copy of a Block at the moment it was read.
type View struct {
	Address int
	Data    uint16
	State   State
}

// newBlock returns a block in its reset lifecycle position: state I, zeroed
// data, tagged with its slot's natural address (overwritten on first
// install).
func newBlock(address int) *Block {
	return &Block{address: address, state: Invalid}
}

// View returns a locked, consistent snapshot of the block.
func (b *Block) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return View{Address: b.address, Data: b.data, State: b.state}
}

// StateOf returns just the current state, for coherence-engine peer scans
// that don't need the data word.
func (b *Block) StateOf() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Install overwrites the block's tag, data and state — used on miss
// service (§4.2 install).
func (b *Block) Install(address int, data uint16, state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.address = address
	b.data = data
	b.state = state
}

// SetState transitions the block's state in place without touching its
// data or tag, and returns the state that was replaced. Used by remote
// coherence transitions (through Cache.SetState).
func (b *Block) SetState(state State) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.state
	b.state = state
	return old
}

// SetData overwrites the data word in place (a local write hit on an
// already-owned line), leaving the tag untouched and setting the state
// explicitly since a write hit always ends in Modified.
func (b *Block) SetData(data uint16, state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	b.state = state
}

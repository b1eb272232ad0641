package coherence

import (
	"sync"
	"sync/atomic"
)

// Bus is the single, simulator-wide mutual-exclusion channel over which
// main-memory transfers and coherence state changes occur (§4.4). It is
// embedded in Memory because the spec exposes it as part of memory's
// contract (acquire_bus/release_bus/bus_busy), not as a free-standing
// component.
//
// busy is tracked as an atomic.Bool alongside the mutex so that Busy() is
// a true non-blocking probe: sync.Mutex alone has no peek, and TryLock
// would have to immediately Unlock again, which both misleads a reader
// and doesn't match §4.4's "any peer attempting bus_busy() observes true"
// wording for a bus currently held by someone else.
type Bus struct {
	mu   sync.Mutex
	busy atomic.Bool
}

// Acquire blocks until the bus is free, then takes it. Fair in the sense
// that sync.Mutex is: FIFO-ish under the runtime's contention handling,
// best-effort otherwise.
func (b *Bus) Acquire() {
	b.mu.Lock()
	b.busy.Store(true)
}

// Release gives up the bus.
func (b *Bus) Release() {
	b.busy.Store(false)
	b.mu.Unlock()
}

// Busy is a non-blocking probe: true iff some processor currently holds
// the bus. A processor that observes true must not spin — per §4.4 it
// transitions to WAITING_BUS and retries on its next tick.
func (b *Bus) Busy() bool {
	return b.busy.Load()
}

// Memory is a block-addressed word store with a bus lock (§4.1). One
// instance is shared by every processor in a System.
type Memory struct {
	mu    sync.RWMutex
	words []uint16
	Bus   *Bus
}

// NewMemory builds a memory of size words, all initialized to zero.
func NewMemory(size int) *Memory {
	return &Memory{words: make([]uint16, size), Bus: &Bus{}}
}

// Size returns the number of addressable words.
func (m *Memory) Size() int {
	return len(m.words)
}

// Read returns the word at addr. It has no side effects and, per §4.1, may
// be called by an observer (the UI snapshot) without holding the bus — the
// simulator itself never issues a coherence-affecting read without first
// acquiring the bus.
func (m *Memory) Read(addr int) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.words[addr]
}

// Write overwrites the word at addr. Coherence-affecting writes are only
// ever issued by a caller holding the bus (§3 invariant 6); Write itself
// does not enforce that — it is a private contract between the engine and
// its caller, the same separation the teacher draws between MachineBus's
// raw Read8/Write8 and the MMIO callbacks layered on top.
func (m *Memory) Write(addr int, word uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[addr] = word
}

// Clear resets every word to zero. Used only on system reset.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.words {
		m.words[i] = 0
	}
}

package coherence

import (
	"fmt"
	"sync/atomic"
)

// Phase is one state in the processor execution state machine (§4.5).
type Phase int

const (
	Idle Phase = iota
	Executing
	ReadingCache
	WritingCache
	Miss
	WaitingBus
	ReadingMemory
	WritingMemory
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Executing:
		return "EXECUTING"
	case ReadingCache:
		return "READING_CACHE"
	case WritingCache:
		return "WRITING_CACHE"
	case Miss:
		return "MISS"
	case WaitingBus:
		return "WAITING_BUS"
	case ReadingMemory:
		return "READING_MEMORY"
	case WritingMemory:
		return "WRITING_MEMORY"
	default:
		return "UNKNOWN"
	}
}

// ProcessorView is an immutable, atomically-published snapshot of a
// processor's execution state, instruction history and any address it is
// currently missing on. Readers (the Snapshot surface) load it without
// ever taking a lock; the owning processor goroutine is the only writer,
// and it always publishes a brand new value rather than mutating a shared
// one — the same "observer reads a frozen copy" contract Block.View gives
// cache lines, applied here with an atomic pointer swap instead of a mutex
// since a ProcessorView is cheap to allocate once per tick.
type ProcessorView struct {
	Phase    Phase
	MissAddr int
	Current  *Instruction
	Previous *Instruction
}

// Label renders the processor's state string for the observation surface
// (§6: "one of the execution states in §4.5 plus MISS <addr> when that
// applies"). addrWidth controls how MissAddr is zero-padded.
func (v ProcessorView) Label(addrWidth int) string {
	switch v.Phase {
	case Miss, WaitingBus:
		return fmt.Sprintf("MISS %s", AddressBits(v.MissAddr, addrWidth))
	default:
		return v.Phase.String()
	}
}

// Processor models one core: an id, its private cache, and the execution
// phase that drives it (§3, §4.5). Exactly one goroutine ever calls Tick
// on a given Processor — System.TurnOn starts that goroutine, and it is
// the only writer of every unexported field below.
type Processor struct {
	id        int
	cache     *Cache
	memory    *Memory
	engine    *Engine
	addrWidth int
	source    InstructionSource

	peers []Peer // every other processor, ascending id order

	phase    Phase
	current  *Instruction
	previous *Instruction
	missAddr int

	view atomic.Pointer[ProcessorView]
}

// NewProcessor builds processor id with a fresh L1 cache of the given size
// and associativity (informational — §4.2), wired to the shared memory,
// coherence engine and instruction source.
func NewProcessor(id int, cacheSize, associativity int, memory *Memory, engine *Engine, addrWidth int, source InstructionSource) *Processor {
	p := &Processor{
		id:        id,
		cache:     NewCache(cacheSize, associativity),
		memory:    memory,
		engine:    engine,
		addrWidth: addrWidth,
		source:    source,
	}
	p.publish()
	return p
}

// ID returns the processor's 1-based identifier.
func (p *Processor) ID() int { return p.id }

// Cache returns the processor's private L1 cache.
func (p *Processor) Cache() *Cache { return p.cache }

// SetPeers installs the list of every other processor's Peer handle, in
// ascending id order. Called once by System after every processor in a
// generation has been constructed.
func (p *Processor) SetPeers(peers []Peer) {
	p.peers = peers
}

// SetSource replaces the processor's instruction generator, e.g. to plug
// in a LuaWorkloadSource or a FixedSource in place of the default
// GaussianSource. Like every other unexported-field mutation, this is
// only safe while no driver goroutine is ticking this processor (before
// System.TurnOn, or after TurnOff has been joined).
func (p *Processor) SetSource(src InstructionSource) {
	p.source = src
}

// View returns the processor's current published state.
func (p *Processor) View() ProcessorView {
	return *p.view.Load()
}

func (p *Processor) publish() {
	v := ProcessorView{
		Phase:    p.phase,
		MissAddr: p.missAddr,
		Current:  p.current,
		Previous: p.previous,
	}
	p.view.Store(&v)
}

// Tick advances the processor's state machine by exactly one tick (§4.5).
// It never blocks except inside Bus.Acquire, and only when transitioning
// out of Miss/WaitingBus with the bus observed free.
func (p *Processor) Tick() {
	switch p.phase {
	case Idle:
		p.previous = p.current
		instr := p.source.Next(p.id, p.addrWidth)
		p.current = &instr
		p.phase = Executing

	case Executing:
		p.stepExecuting()

	case ReadingCache, WritingCache:
		p.phase = Idle

	case Miss, WaitingBus:
		if p.memory.Bus.Busy() {
			p.phase = WaitingBus
		} else {
			p.memory.Bus.Acquire()
			if p.current.Type == Read {
				p.phase = ReadingMemory
			} else {
				p.phase = WritingMemory
			}
		}

	case ReadingMemory:
		data, state := p.engine.ServiceReadMiss(p.peers, p.missAddr)
		p.cache.Install(p.missAddr, data, state)
		p.memory.Bus.Release()
		p.phase = Idle

	case WritingMemory:
		// Both a genuine write miss and a write hit on S/O arbitrate
		// identically from here: invalidate every peer, then write the new
		// data through to memory (§4.3).
		p.engine.ServiceWriteMiss(p.peers, p.missAddr, p.current.Data)
		p.cache.Install(p.missAddr, p.current.Data, Modified)
		p.memory.Bus.Release()
		p.phase = Idle
	}

	p.publish()
}

// stepExecuting handles the EXECUTING phase: CALC finishes in one tick;
// READ/WRITE consult the local cache and either commit on a hit or fall
// through to MISS (§4.5).
func (p *Processor) stepExecuting() {
	instr := p.current

	switch instr.Type {
	case Calc:
		p.phase = Idle
		return

	case Read:
		if _, ok := p.cache.Lookup(instr.Address); ok {
			p.phase = ReadingCache
			return
		}
		p.missAddr = instr.Address
		p.phase = Miss

	case Write:
		if v, ok := p.cache.Lookup(instr.Address); ok {
			if v.State == Modified || v.State == Exclusive {
				// Hit on M or E: commits locally without the bus (§4.3).
				p.cache.Install(instr.Address, instr.Data, Modified)
				p.phase = WritingCache
				return
			}
			// Hit on S or O: must invalidate peers and write through, so
			// it's arbitrated exactly like a write miss (§4.3 WRITE HIT
			// paragraph).
			p.missAddr = instr.Address
			p.phase = Miss
			return
		}
		p.missAddr = instr.Address
		p.phase = Miss
	}
}
